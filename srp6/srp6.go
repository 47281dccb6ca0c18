// Package srp6 implements the SRP6 arithmetic used by the logon protocol.
//
// Integers are exchanged as big-endian byte slices padded to KeySize; the
// hashes that make up the transcript are computed over the little-endian
// form the client puts on the wire.
package srp6

import (
	"crypto/sha1"
	"crypto/subtle"
	"io"
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"badc0de.net/pkg/go-logon/secrets"
)

const (
	// KeySize is the byte length of N, A, B, S and the salt.
	KeySize = 32
	// ProofSize is the byte length of M1 and M2.
	ProofSize = sha1.Size
	// SessionKeySize is the byte length of the interleaved session key K.
	SessionKeySize = 2 * sha1.Size
)

var (
	// ErrInvalidPublicEphemeral is returned when the client's A is
	// congruent to zero modulo N.
	ErrInvalidPublicEphemeral = errors.New("srp6: public ephemeral is 0 mod N")

	// ErrProofMismatch is returned when the client's M1 does not match the
	// transcript.
	ErrProofMismatch = errors.New("srp6: client proof mismatch")
)

// CredentialsHash returns P = H(UPPER(username) ":" UPPER(password)), the
// form in which account passwords are stored.
func CredentialsHash(username, password string) []byte {
	h := sha1.Sum([]byte(strings.ToUpper(username) + ":" + strings.ToUpper(password)))
	return h[:]
}

// Verifier computes v = g^x mod N with x = H(s | P).
func Verifier(credentialsHash, salt []byte) *big.Int {
	h := sha1.New()
	h.Write(salt)
	h.Write(credentialsHash)
	x := leInt(h.Sum(nil))
	return new(big.Int).Exp(secrets.SRP6Generator, x, secrets.SRP6Modulus)
}

// Server is the server side of one SRP6 exchange.
type Server struct {
	username string
	salt     []byte
	v        *big.Int
	b        *big.Int
	B        *big.Int

	sessionKey []byte
	proof      []byte
}

// NewServer draws a private ephemeral b from rand and computes
// B = (k*v + g^b) mod N. A b for which B is 0 mod N is discarded and drawn
// again.
func NewServer(username string, credentialsHash, salt []byte, rand io.Reader) (*Server, error) {
	return newServer(username, credentialsHash, salt, rand, publicB)
}

func newServer(username string, credentialsHash, salt []byte, rand io.Reader, pub func(v, b *big.Int) *big.Int) (*Server, error) {
	if len(salt) != KeySize {
		return nil, errors.Errorf("srp6: salt is %d bytes, want %d", len(salt), KeySize)
	}
	if len(credentialsHash) != sha1.Size {
		return nil, errors.Errorf("srp6: credentials hash is %d bytes, want %d", len(credentialsHash), sha1.Size)
	}
	s := &Server{
		username: strings.ToUpper(username),
		salt:     append([]byte(nil), salt...),
		v:        Verifier(credentialsHash, salt),
	}
	for {
		b, err := randomExponent(rand)
		if err != nil {
			return nil, err
		}
		B := pub(s.v, b)
		if B.Sign() != 0 {
			s.b, s.B = b, B
			return s, nil
		}
	}
}

func publicB(v, b *big.Int) *big.Int {
	N := secrets.SRP6Modulus
	B := new(big.Int).Mul(secrets.SRP6Multiplier, v)
	B.Add(B, new(big.Int).Exp(secrets.SRP6Generator, b, N))
	return B.Mod(B, N)
}

func randomExponent(rand io.Reader) (*big.Int, error) {
	buf := make([]byte, KeySize)
	for {
		if _, err := io.ReadFull(rand, buf); err != nil {
			return nil, errors.Wrap(err, "srp6: reading private ephemeral")
		}
		b := new(big.Int).SetBytes(buf)
		b.Mod(b, secrets.SRP6Modulus)
		if b.Sign() != 0 {
			return b, nil
		}
	}
}

// PublicB returns B as KeySize big-endian bytes.
func (s *Server) PublicB() []byte { return s.B.FillBytes(make([]byte, KeySize)) }

// Salt returns the account salt.
func (s *Server) Salt() []byte { return append([]byte(nil), s.salt...) }

// Generator returns g as a single byte.
func Generator() []byte { return []byte{byte(secrets.SRP6Generator.Uint64())} }

// Modulus returns N as KeySize big-endian bytes.
func Modulus() []byte { return secrets.SRP6Modulus.FillBytes(make([]byte, KeySize)) }

// SessionKey returns K once VerifyClient has succeeded.
func (s *Server) SessionKey() []byte { return s.sessionKey }

// ServerProof returns M2 once VerifyClient has succeeded.
func (s *Server) ServerProof() []byte { return s.proof }

// VerifyClient checks the client's public ephemeral A (big-endian) and proof
// M1. On success it returns the server proof M2 = H(A | M1 | K).
func (s *Server) VerifyClient(A, M1 []byte) ([]byte, error) {
	N := secrets.SRP6Modulus
	a := new(big.Int).SetBytes(A)
	if new(big.Int).Mod(a, N).Sign() == 0 {
		return nil, ErrInvalidPublicEphemeral
	}

	aLE := le(a, KeySize)
	bLE := le(s.B, KeySize)

	u := leInt(hash(aLE, bLE))
	S := new(big.Int).Exp(s.v, u, N)
	S.Mul(S, a)
	S.Exp(S, s.b, N)

	K := interleave(le(S, KeySize))
	want := clientProof(s.username, s.salt, aLE, bLE, K)
	if subtle.ConstantTimeCompare(want, M1) != 1 {
		return nil, ErrProofMismatch
	}

	s.sessionKey = K
	s.proof = hash(aLE, M1, K)
	return s.proof, nil
}

// clientProof computes M1 = H(H(N) xor H(g) | H(I) | s | A | B | K).
func clientProof(username string, salt, aLE, bLE, K []byte) []byte {
	hN := hash(le(secrets.SRP6Modulus, KeySize))
	hG := hash(Generator())
	for i := range hN {
		hN[i] ^= hG[i]
	}
	hI := hash([]byte(username))
	return hash(hN, hI, salt, aLE, bLE, K)
}

// interleave derives the session key from S: the even and odd bytes are
// hashed separately, skipping leading zero pairs, and the digests are woven
// back together.
func interleave(S []byte) []byte {
	p := 0
	for p < len(S) && S[p] == 0 {
		p++
	}
	if p&1 == 1 {
		p++
	}
	p /= 2

	half := len(S) / 2
	even := make([]byte, half)
	odd := make([]byte, half)
	for i := 0; i < half; i++ {
		even[i] = S[2*i]
		odd[i] = S[2*i+1]
	}
	h0 := hash(even[p:])
	h1 := hash(odd[p:])

	K := make([]byte, SessionKeySize)
	for i := 0; i < sha1.Size; i++ {
		K[2*i] = h0[i]
		K[2*i+1] = h1[i]
	}
	return K
}

func hash(parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// le returns x as n little-endian bytes.
func le(x *big.Int, n int) []byte {
	b := x.FillBytes(make([]byte, n))
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}

func leInt(b []byte) *big.Int {
	r := make([]byte, len(b))
	for i := range b {
		r[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(r)
}
