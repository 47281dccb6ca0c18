// Package routing dispatches packets of the inter-server protocol, whose
// packets start with a 16-bit little-endian opcode, to typed handlers.
package routing

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	tnet "badc0de.net/pkg/go-logon/net"
	"badc0de.net/pkg/go-logon/wire"
)

// ErrUnhandledOpcode is returned for packets no route was registered for.
var ErrUnhandledOpcode = errors.New("routing: unhandled opcode")

type Opcode uint16

func (op Opcode) String() string {
	switch op {
	case OpcodeClientHandshakeBegin:
		return "ClientHandshakeBegin"
	case OpcodeServerHandshakeResult:
		return "ServerHandshakeResult"
	default:
		return fmt.Sprintf("Opcode(0x%04x)", uint16(op))
	}
}

// Route binds an opcode to a handler receiving a per-connection context C.
type Route[C any] struct {
	Opcode Opcode
	handle func(ctx context.Context, b []byte, c C) error
}

// Handle returns a route decoding packets with opcode op into T before
// passing them to fn. T's first field must be the opcode.
func Handle[T any, C any](op Opcode, fn func(ctx context.Context, pkt *T, c C) error) Route[C] {
	return Route[C]{
		Opcode: op,
		handle: func(ctx context.Context, b []byte, c C) error {
			pkt, err := wire.Decode[T](b)
			if err != nil {
				return errors.Wrapf(err, "decoding %s", op)
			}
			return fn(ctx, &pkt, c)
		},
	}
}

// Router is an immutable opcode to handler table.
type Router[C any] struct {
	routes map[Opcode]func(ctx context.Context, b []byte, c C) error
}

// NewRouter builds a router. Registering an opcode twice is a programming
// error and panics.
func NewRouter[C any](routes ...Route[C]) *Router[C] {
	r := &Router[C]{routes: make(map[Opcode]func(context.Context, []byte, C) error, len(routes))}
	for _, rt := range routes {
		if rt.handle == nil {
			panic(fmt.Sprintf("routing: route for %s has no handler", rt.Opcode))
		}
		if _, dup := r.routes[rt.Opcode]; dup {
			panic(fmt.Sprintf("routing: %s registered twice", rt.Opcode))
		}
		r.routes[rt.Opcode] = rt.handle
	}
	return r
}

// HandlePacket looks up the opcode of env and runs its handler.
func (r *Router[C]) HandlePacket(ctx context.Context, env *tnet.Envelope, c C) error {
	if len(env.Payload) < 2 {
		return errors.Wrap(wire.ErrTruncatedPacket, "routing opcode")
	}
	op := Opcode(binary.LittleEndian.Uint16(env.Payload))
	h, ok := r.routes[op]
	if !ok {
		return errors.Wrapf(ErrUnhandledOpcode, "%s", op)
	}
	return h(ctx, env.Payload, c)
}

// SessionHandler lets a router handle the packets of a session.
func SessionHandler(r *Router[*tnet.Session]) tnet.Handler {
	return tnet.HandlerFunc(func(ctx context.Context, s *tnet.Session, env *tnet.Envelope) error {
		return r.HandlePacket(ctx, env, s)
	})
}
