package srp6

import (
	"crypto/subtle"
	"io"
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"badc0de.net/pkg/go-logon/secrets"
)

// Client is the client side of one SRP6 exchange. The server never needs
// it; it drives the exchange in tests and tooling.
type Client struct {
	A          *big.Int
	proof      []byte
	sessionKey []byte
	serverWant []byte
}

// NewClient answers a challenge carrying salt and the server's B
// (big-endian).
func NewClient(username, password string, salt, B []byte, rand io.Reader) (*Client, error) {
	N := secrets.SRP6Modulus
	g := secrets.SRP6Generator

	b := new(big.Int).SetBytes(B)
	if new(big.Int).Mod(b, N).Sign() == 0 {
		return nil, errors.Wrap(ErrInvalidPublicEphemeral, "server B")
	}

	a, err := randomExponent(rand)
	if err != nil {
		return nil, err
	}
	A := new(big.Int).Exp(g, a, N)

	aLE := le(A, KeySize)
	bLE := le(b, KeySize)
	u := leInt(hash(aLE, bLE))

	h := hash(salt, CredentialsHash(username, password))
	x := leInt(h)

	// S = (B - k*g^x)^(a + u*x) mod N
	base := new(big.Int).Exp(g, x, N)
	base.Mul(base, secrets.SRP6Multiplier)
	base.Sub(b, base)
	base.Mod(base, N)
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)
	S := new(big.Int).Exp(base, exp, N)

	K := interleave(le(S, KeySize))
	M1 := clientProof(strings.ToUpper(username), salt, aLE, bLE, K)

	return &Client{
		A:          A,
		proof:      M1,
		sessionKey: K,
		serverWant: hash(aLE, M1, K),
	}, nil
}

// PublicA returns A as KeySize big-endian bytes.
func (c *Client) PublicA() []byte { return c.A.FillBytes(make([]byte, KeySize)) }

// Proof returns M1.
func (c *Client) Proof() []byte { return c.proof }

// SessionKey returns K.
func (c *Client) SessionKey() []byte { return c.sessionKey }

// VerifyServer reports whether M2 proves the server derived the same key.
func (c *Client) VerifyServer(M2 []byte) bool {
	return subtle.ConstantTimeCompare(c.serverWant, M2) == 1
}
