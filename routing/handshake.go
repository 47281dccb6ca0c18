package routing

import (
	"context"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	tnet "badc0de.net/pkg/go-logon/net"
	"badc0de.net/pkg/go-logon/wire"
)

const (
	OpcodeClientHandshakeBegin  Opcode = 0x0001
	OpcodeServerHandshakeResult Opcode = 0x0002
)

// ProtocolVersion is the inter-server protocol version spoken here.
const ProtocolVersion = 1

// ErrHandshakeRejected is returned when the peer refused the handshake.
var ErrHandshakeRejected = errors.New("routing: handshake rejected")

// ClientHandshakeBegin opens an inter-server connection.
type ClientHandshakeBegin struct {
	Opcode  Opcode
	Version uint32
}

// ServerHandshakeResult answers ClientHandshakeBegin. On success it carries
// the id both ends use for the connection.
type ServerHandshakeResult struct {
	Opcode   Opcode
	Accepted bool
	ClientID [16]byte
}

// NewHandshakeRouter returns a router serving both ends of the handshake.
// The accepting end allocates a fresh id for its session and sends it back;
// the connecting end adopts the id it receives.
func NewHandshakeRouter() *Router[*tnet.Session] {
	return NewRouter(
		Handle(OpcodeClientHandshakeBegin, handshakeBegin),
		Handle(OpcodeServerHandshakeResult, handshakeResult),
	)
}

func handshakeBegin(ctx context.Context, pkt *ClientHandshakeBegin, s *tnet.Session) error {
	if pkt.Version != ProtocolVersion {
		glog.Infof("%s: rejecting handshake for protocol version %d", s, pkt.Version)
		b, err := wire.Encode(ServerHandshakeResult{Opcode: OpcodeServerHandshakeResult})
		if err != nil {
			return err
		}
		env := tnet.NewEnvelope(b)
		env.TerminateConnection = true
		return s.Send(ctx, env)
	}

	id := uuid.New()
	if err := s.SetGuid(id); err != nil {
		return err
	}
	glog.V(1).Infof("%s: handshake accepted", s)
	b, err := wire.Encode(ServerHandshakeResult{Opcode: OpcodeServerHandshakeResult, Accepted: true, ClientID: id})
	if err != nil {
		return err
	}
	return s.Send(ctx, tnet.NewEnvelope(b))
}

func handshakeResult(ctx context.Context, pkt *ServerHandshakeResult, s *tnet.Session) error {
	if !pkt.Accepted {
		return errors.Wrapf(ErrHandshakeRejected, "%s", s)
	}
	if err := s.SetGuid(uuid.UUID(pkt.ClientID)); err != nil {
		return err
	}
	s.SetState(tnet.StateDispatching)
	glog.V(1).Infof("%s: handshake complete", s)
	return nil
}

// BeginHandshake sends the opening packet of the handshake on s.
func BeginHandshake(ctx context.Context, s *tnet.Session) error {
	b, err := wire.Encode(ClientHandshakeBegin{Opcode: OpcodeClientHandshakeBegin, Version: ProtocolVersion})
	if err != nil {
		return err
	}
	return s.Send(ctx, tnet.NewEnvelope(b))
}
