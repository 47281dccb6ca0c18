package logon

import (
	"context"

	"github.com/pkg/errors"

	tnet "badc0de.net/pkg/go-logon/net"
	"badc0de.net/pkg/go-logon/srp6"
	"badc0de.net/pkg/go-logon/wire"
)

func (c *connection) sendChallengeFailure(ctx context.Context, s *tnet.Session, code ResultCode) error {
	b, err := wire.Encode(challengeFailure{Opcode: OpcodeChallenge, Result: code})
	if err != nil {
		return errors.Wrap(err, "encoding challenge failure")
	}
	return s.Send(ctx, tnet.NewEnvelope(b))
}

func (c *connection) sendChallenge(ctx context.Context, s *tnet.Session, srv *srp6.Server, filler []byte) error {
	g := srp6.Generator()
	N := srp6.Modulus()
	b, err := wire.Encode(challengeResponse{
		Opcode:          OpcodeChallenge,
		Result:          ResultSuccess,
		B:               srv.PublicB(),
		GeneratorLength: uint8(len(g)),
		Generator:       g,
		ModulusLength:   uint8(len(N)),
		Modulus:         N,
		Salt:            srv.Salt(),
		Filler:          filler,
	})
	if err != nil {
		return errors.Wrap(err, "encoding challenge")
	}
	return s.Send(ctx, tnet.NewEnvelope(b))
}

func (c *connection) sendProofFailure(ctx context.Context, s *tnet.Session, code ResultCode) error {
	b, err := wire.Encode(proofFailure{Opcode: OpcodeProof, Result: code})
	if err != nil {
		return errors.Wrap(err, "encoding proof failure")
	}
	return s.Send(ctx, tnet.NewEnvelope(b))
}

func (c *connection) sendProof(ctx context.Context, s *tnet.Session, M2 []byte) error {
	b, err := wire.Encode(proofResponse{Opcode: OpcodeProof, Result: ResultSuccess, M2: M2})
	if err != nil {
		return errors.Wrap(err, "encoding proof")
	}
	return s.Send(ctx, tnet.NewEnvelope(b))
}
