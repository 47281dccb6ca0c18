package srp6

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"badc0de.net/pkg/go-logon/ttesting"
)

// Reference values computed independently from the protocol definition for
// account TEST/TEST, salt 00 01 .. 1f, b = 11..11 and a = 22..22.
const (
	refCredentials = "3d0d99423e31fcc67a6745ec89d70d700344bc76"
	refVerifier    = "14b628f1e64287f3273431f1b05b6291360f343b7b47a621f9ddfe2f477970a5"
	refB           = "2a13622f26d32822472ab8967608bdcd51d40d55130adb1038f20bc54bcb223c"
	refA           = "53e43f4d820d82c6c0fd95758d88e0bd00f8e47a63eede4298458df75defe088"
	refK           = "be56334d522341c90a80c69f1803ade29c547f4c2ddc9a3177416305d94ae383b388d5cb6cdfb128"
	refM1          = "3878b36633f0f42e167d6afdb07c005a33497c6a"
	refM2          = "550cee7e5c2307641e3ab2ee9e789e21297802df"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func testSalt() []byte {
	salt := make([]byte, KeySize)
	for i := range salt {
		salt[i] = byte(i)
	}
	return salt
}

func fixedReader(b byte) *bytes.Reader {
	return bytes.NewReader(bytes.Repeat([]byte{b}, KeySize))
}

func TestCredentialsHash(t *testing.T) {
	ttesting.AssertEqualBytes(t, "TEST:TEST", CredentialsHash("test", "Test"), mustHex(t, refCredentials))
}

func TestVerifier(t *testing.T) {
	v := Verifier(mustHex(t, refCredentials), testSalt())
	ttesting.AssertEqualBytes(t, "v", v.FillBytes(make([]byte, KeySize)), mustHex(t, refVerifier))
}

func TestPublicB(t *testing.T) {
	s, err := NewServer("test", mustHex(t, refCredentials), testSalt(), fixedReader(0x11))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ttesting.AssertEqualBytes(t, "B", s.PublicB(), mustHex(t, refB))
	ttesting.AssertEqualBytes(t, "salt", s.Salt(), testSalt())
	ttesting.AssertEqualBytes(t, "g", Generator(), []byte{7})
	ttesting.AssertEqualInt(t, "N size", len(Modulus()), KeySize)
}

func TestZeroPublicBIsRegenerated(t *testing.T) {
	calls := 0
	zeroFirst := func(v, b *big.Int) *big.Int {
		calls++
		if calls == 1 {
			return new(big.Int)
		}
		return publicB(v, b)
	}
	rand := bytes.NewReader(append(bytes.Repeat([]byte{0x33}, KeySize), bytes.Repeat([]byte{0x11}, KeySize)...))
	s, err := newServer("test", mustHex(t, refCredentials), testSalt(), rand, zeroFirst)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	ttesting.AssertEqualInt(t, "attempts", calls, 2)
	ttesting.AssertEqualBytes(t, "B from second draw", s.PublicB(), mustHex(t, refB))
}

func TestExchange(t *testing.T) {
	s, err := NewServer("TEST", mustHex(t, refCredentials), testSalt(), fixedReader(0x11))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	c, err := NewClient("test", "test", testSalt(), s.PublicB(), fixedReader(0x22))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ttesting.AssertEqualBytes(t, "A", c.PublicA(), mustHex(t, refA))
	ttesting.AssertEqualBytes(t, "M1", c.Proof(), mustHex(t, refM1))

	M2, err := s.VerifyClient(c.PublicA(), c.Proof())
	if err != nil {
		t.Fatalf("VerifyClient: %v", err)
	}
	ttesting.AssertEqualBytes(t, "M2", M2, mustHex(t, refM2))
	ttesting.AssertEqualBytes(t, "server K", s.SessionKey(), mustHex(t, refK))
	ttesting.AssertEqualBytes(t, "client K", c.SessionKey(), mustHex(t, refK))
	if !c.VerifyServer(M2) {
		t.Errorf("client rejected server proof")
	}
}

func TestWrongPassword(t *testing.T) {
	s, err := NewServer("TEST", mustHex(t, refCredentials), testSalt(), fixedReader(0x11))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	c, err := NewClient("test", "wrong", testSalt(), s.PublicB(), fixedReader(0x22))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = s.VerifyClient(c.PublicA(), c.Proof())
	ttesting.AssertErrorIs(t, "mismatch", err, ErrProofMismatch)
	if s.SessionKey() != nil {
		t.Errorf("session key set after failed proof")
	}
}

func TestDegenerateA(t *testing.T) {
	s, err := NewServer("TEST", mustHex(t, refCredentials), testSalt(), fixedReader(0x11))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	_, err = s.VerifyClient(make([]byte, KeySize), make([]byte, ProofSize))
	ttesting.AssertErrorIs(t, "A = 0", err, ErrInvalidPublicEphemeral)

	_, err = s.VerifyClient(Modulus(), make([]byte, ProofSize))
	ttesting.AssertErrorIs(t, "A = N", err, ErrInvalidPublicEphemeral)
}
