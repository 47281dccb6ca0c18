package net

import (
	"context"
	"fmt"
	"io"
	gonet "net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/net/trace"
)

// DefaultBufferSize is the largest packet a single read accepts.
const DefaultBufferSize = 4096

// ErrInvalidSessionId is returned when a session id is allocated twice or
// set to uuid.Nil. It indicates a routing bug, not a client error.
var ErrInvalidSessionId = errors.New("net: invalid session id")

// State is the lifecycle stage of a session.
type State int32

const (
	StateConnected State = iota
	StateAuthenticating
	StateDispatching
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateDispatching:
		return "dispatching"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Handler receives the inbound envelopes that were not consumed by the
// inbound pipeline. An error ends the session.
type Handler interface {
	HandleEnvelope(ctx context.Context, s *Session, env *Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, s *Session, env *Envelope) error

func (f HandlerFunc) HandleEnvelope(ctx context.Context, s *Session, env *Envelope) error {
	return f(ctx, s, env)
}

// SessionConfig configures a session. The zero value is usable.
type SessionConfig struct {
	Inbound  *Pipeline
	Outbound *Pipeline

	// ReadTimeout closes sessions idle for longer than this. Zero
	// disables the deadline.
	ReadTimeout time.Duration

	// BufferSize defaults to DefaultBufferSize.
	BufferSize int
}

// Session owns one accepted connection.
//
// Each successful read is treated as exactly one packet: there is no
// reassembly of fragmented packets nor splitting of coalesced ones.
type Session struct {
	conn    gonet.Conn
	cfg     SessionConfig
	handler Handler

	idLock sync.Mutex
	id     uuid.UUID

	state atomic.Int32

	// writeLock serializes writes, so handlers and unsolicited pushes
	// never interleave their bytes.
	writeLock sync.Mutex

	closeOnce sync.Once
	closeErr  error

	eventsLock sync.Mutex
	events     trace.EventLog

	connectedAt time.Time
}

// NewSession wraps an accepted connection. The session takes ownership of
// conn and closes it when Run returns or Close is called.
func NewSession(conn gonet.Conn, h Handler, cfg SessionConfig) *Session {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	s := &Session{
		conn:        conn,
		cfg:         cfg,
		handler:     h,
		events:      trace.NewEventLog("logon.Session", conn.RemoteAddr().String()),
		connectedAt: time.Now(),
	}
	s.state.Store(int32(StateConnected))
	return s
}

// ID returns the session id, or uuid.Nil if none was allocated yet.
func (s *Session) ID() uuid.UUID {
	s.idLock.Lock()
	defer s.idLock.Unlock()
	return s.id
}

// SetGuid allocates the session id. It succeeds exactly once.
func (s *Session) SetGuid(id uuid.UUID) error {
	if id == uuid.Nil {
		return errors.Wrap(ErrInvalidSessionId, "nil id")
	}
	s.idLock.Lock()
	defer s.idLock.Unlock()
	if s.id != uuid.Nil {
		return errors.Wrapf(ErrInvalidSessionId, "id already allocated as %s", s.id)
	}
	s.id = id
	return nil
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// SetState moves the session to st. A disconnected session stays
// disconnected.
func (s *Session) SetState(st State) {
	for {
		cur := s.state.Load()
		if State(cur) == StateDisconnected {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			s.eventf("state %s -> %s", State(cur), st)
			return
		}
	}
}

func (s *Session) RemoteAddr() gonet.Addr {
	return s.conn.RemoteAddr()
}

// ConnectedAt returns the time the session was created.
func (s *Session) ConnectedAt() time.Time {
	return s.connectedAt
}

func (s *Session) String() string {
	return fmt.Sprintf("<session %s %s>", s.ID(), s.conn.RemoteAddr())
}

func (s *Session) eventf(format string, args ...interface{}) {
	s.eventsLock.Lock()
	defer s.eventsLock.Unlock()
	if s.events != nil {
		s.events.Printf(format, args...)
	}
}

func (s *Session) errorf(format string, args ...interface{}) {
	s.eventsLock.Lock()
	defer s.eventsLock.Unlock()
	if s.events != nil {
		s.events.Errorf(format, args...)
	}
}

// Run reads and dispatches packets until the peer disconnects, a packet
// asks for termination, ctx is cancelled, or an error occurs. A clean end
// of the connection returns nil. The session is closed when Run returns.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	if s.State() == StateDisconnected {
		return nil
	}
	s.SetState(StateAuthenticating)

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	buf := make([]byte, s.cfg.BufferSize)
	for {
		if s.cfg.ReadTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		n, readErr := s.conn.Read(buf)
		if n > 0 {
			env := NewEnvelope(append([]byte(nil), buf[:n]...))
			if err := s.dispatch(ctx, env); err != nil {
				s.errorf("%v", err)
				return err
			}
			if env.TerminateConnection {
				s.eventf("terminated by packet handling")
				return nil
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || s.State() == StateDisconnected {
				return nil
			}
			return errors.Wrapf(readErr, "%s: read", s)
		}
		if n == 0 {
			return nil
		}
	}
}

func (s *Session) dispatch(ctx context.Context, env *Envelope) error {
	s.eventf("recv %d bytes", len(env.Payload))

	d, err := s.cfg.Inbound.Run(ctx, env, s)
	if err != nil {
		return errors.Wrap(err, "inbound pipeline")
	}
	if d == Handled {
		glog.V(2).Infof("%s: inbound middleware handled packet", s)
		return nil
	}
	return s.handler.HandleEnvelope(ctx, s, env)
}

// Send passes env through the outbound pipeline and writes its payload.
// Nothing is written if a processor handled the envelope.
func (s *Session) Send(ctx context.Context, env *Envelope) error {
	d, err := s.cfg.Outbound.Run(ctx, env, s)
	if err != nil {
		return errors.Wrap(err, "outbound pipeline")
	}
	if d == Handled {
		glog.V(2).Infof("%s: outbound middleware handled packet", s)
		return nil
	}

	if err := s.write(ctx, env.Payload); err != nil {
		return err
	}
	if env.TerminateConnection {
		return s.Close()
	}
	return nil
}

func (s *Session) write(ctx context.Context, b []byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if s.State() == StateDisconnected {
		return errors.Wrapf(gonet.ErrClosed, "%s: send", s)
	}
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
		defer s.conn.SetWriteDeadline(time.Time{})
	}
	n, err := s.conn.Write(b)
	if err != nil {
		return errors.Wrapf(err, "%s: write", s)
	}
	s.eventf("sent %d bytes", n)
	glog.V(2).Infof("%s: written %d bytes", s, n)
	return nil
}

// Close shuts the connection down in both directions. It is safe to call
// any number of times, from any goroutine.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateDisconnected))

		if hc, ok := s.conn.(interface{ CloseWrite() error }); ok {
			hc.CloseWrite()
		}
		if err := s.conn.Close(); err != nil && !errors.Is(err, gonet.ErrClosed) {
			s.closeErr = err
		}

		s.eventsLock.Lock()
		s.events.Finish()
		s.events = nil
		s.eventsLock.Unlock()

		glog.V(1).Infof("%s: closed after %s", s, time.Since(s.connectedAt))
	})
	return s.closeErr
}
