package logon

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"badc0de.net/pkg/go-logon/accounts"
	tnet "badc0de.net/pkg/go-logon/net"
	"badc0de.net/pkg/go-logon/realms"
	"badc0de.net/pkg/go-logon/srp6"
	"badc0de.net/pkg/go-logon/wire"
)

var (
	// ErrUnsupportedOpcode ends a session which sent a packet the logon
	// server does not know.
	ErrUnsupportedOpcode = errors.New("logon: unsupported opcode")

	// ErrMalformedPacket ends a session which sent a packet that is not
	// valid at this point of the exchange.
	ErrMalformedPacket = errors.New("logon: malformed packet")
)

const fillerSize = 16

// AuthState is the SRP6 state of one connection. It exists from a
// successful challenge until the session ends.
type AuthState struct {
	account   *accounts.Account
	srp       *srp6.Server
	confirmed bool
}

// Confirmed reports whether the client proved knowledge of the password.
func (a *AuthState) Confirmed() bool {
	return a != nil && a.confirmed
}

// SessionKey returns the shared key K, or nil until the proof was verified.
func (a *AuthState) SessionKey() []byte {
	if !a.Confirmed() {
		return nil
	}
	return a.srp.SessionKey()
}

// Account returns the account named in the challenge.
func (a *AuthState) Account() *accounts.Account {
	if a == nil {
		return nil
	}
	return a.account
}

// connection handles the packets of a single session. It is only used from
// the session's goroutine, except for the account name which the status
// pages read.
type connection struct {
	server *LogonServer
	auth   *AuthState

	nameLock sync.Mutex
	name     string
}

func (c *connection) accountName() string {
	c.nameLock.Lock()
	defer c.nameLock.Unlock()
	return c.name
}

func (c *connection) setAccountName(name string) {
	c.nameLock.Lock()
	defer c.nameLock.Unlock()
	c.name = name
}

func (c *connection) HandleEnvelope(ctx context.Context, s *tnet.Session, env *tnet.Envelope) error {
	op, ok := env.Opcode()
	if !ok {
		return errors.Wrap(ErrMalformedPacket, "empty packet")
	}
	switch op {
	case OpcodeChallenge:
		return c.challenge(ctx, s, env)
	case OpcodeProof:
		return c.proof(ctx, s, env)
	case OpcodeRealmList:
		return c.realmList(ctx, s, env)
	default:
		env.TerminateConnection = true
		return errors.Wrapf(ErrUnsupportedOpcode, "0x%02x", op)
	}
}

func (c *connection) challenge(ctx context.Context, s *tnet.Session, env *tnet.Envelope) error {
	req, err := wire.Decode[ChallengeRequest](env.Payload)
	if err != nil {
		return errors.Wrap(err, "decoding challenge")
	}
	glog.V(1).Infof("%s: challenge from %q: game %q version %d.%d.%d build %d platform %q os %q locale %q tz %d ip %s",
		s, req.AccountName, req.Game, req.Version[0], req.Version[1], req.Version[2], req.Build,
		req.Platform, req.OS, req.Locale, req.TimezoneBias, req.ClientIP())

	if c.auth.Confirmed() {
		return errors.Wrap(ErrMalformedPacket, "challenge after successful proof")
	}
	c.auth = nil

	acct, err := c.server.accounts.FindByName(ctx, req.AccountName)
	if errors.Is(err, accounts.ErrNotFound) {
		glog.Infof("%s: account %q does not exist", s, req.AccountName)
		return c.sendChallengeFailure(ctx, s, ResultNoSuchAccount)
	}
	if err != nil {
		return errors.Wrapf(err, "looking up account %q", req.AccountName)
	}
	c.setAccountName(acct.Username)
	if acct.Banned {
		glog.Infof("%s: account %q is closed", s, acct.Username)
		env.TerminateConnection = true
		return c.sendChallengeFailure(ctx, s, ResultAccountClosed)
	}

	credentials, err := acct.CredentialsHash()
	if err != nil {
		return err
	}
	salt := acct.Salt
	if len(salt) == 0 {
		if salt, err = c.server.randomBytes(srp6.KeySize); err != nil {
			return err
		}
	}
	srv, err := srp6.NewServer(acct.Username, credentials, salt, c.server.rand)
	if err != nil {
		return errors.Wrapf(err, "account %q", acct.Username)
	}
	filler, err := c.server.randomBytes(fillerSize)
	if err != nil {
		return err
	}

	c.auth = &AuthState{account: acct, srp: srv}
	return c.sendChallenge(ctx, s, srv, filler)
}

func (c *connection) proof(ctx context.Context, s *tnet.Session, env *tnet.Envelope) error {
	req, err := wire.Decode[ProofRequest](env.Payload)
	if err != nil {
		return errors.Wrap(err, "decoding proof")
	}
	if c.auth.Confirmed() {
		return errors.Wrap(ErrMalformedPacket, "proof after successful proof")
	}
	if c.auth == nil {
		glog.Infof("%s: proof without a challenge", s)
		env.TerminateConnection = true
		return c.sendProofFailure(ctx, s, ResultNoSuchAccount)
	}

	M2, err := c.auth.srp.VerifyClient(req.A, req.M1)
	if err != nil {
		glog.Infof("%s: authentication of %q failed: %v", s, c.auth.account.Username, err)
		env.TerminateConnection = true
		return c.sendProofFailure(ctx, s, ResultNoSuchAccount)
	}

	c.auth.confirmed = true
	s.SetState(tnet.StateDispatching)
	glog.Infof("%s: %q authenticated", s, c.auth.account.Username)
	return c.sendProof(ctx, s, M2)
}

func (c *connection) realmList(ctx context.Context, s *tnet.Session, env *tnet.Envelope) error {
	if !c.auth.Confirmed() {
		return errors.Wrap(ErrMalformedPacket, "realm list before authentication")
	}
	list, err := c.server.realms.ListRealms(ctx)
	if err != nil {
		return errors.Wrap(err, "listing realms")
	}
	b, err := realms.ListResponse(list)
	if err != nil {
		return err
	}
	glog.V(1).Infof("%s: sending %d realms", s, len(list))
	return s.Send(ctx, tnet.NewEnvelope(b))
}

func readFull(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrap(err, "reading random bytes")
	}
	return b, nil
}
