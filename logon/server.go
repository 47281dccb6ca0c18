package logon

import (
	"context"
	"crypto/rand"
	"io"
	gonet "net"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"badc0de.net/pkg/go-logon/accounts"
	tnet "badc0de.net/pkg/go-logon/net"
	"badc0de.net/pkg/go-logon/realms"
)

type LogonServer struct {
	accounts accounts.Store
	realms   realms.Directory
	rand     io.Reader

	inbound     []tnet.Processor
	outbound    []tnet.Processor
	readTimeout time.Duration

	maxConns int
	limiter  *rate.Limiter

	sessionsLock sync.Mutex
	sessions     map[uuid.UUID]*sessionEntry
}

type sessionEntry struct {
	session *tnet.Session
	conn    *connection
}

// SessionInfo describes a live session for status pages.
type SessionInfo struct {
	ID          uuid.UUID `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	State       string    `json:"state"`
	Account     string    `json:"account,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

type Option func(*LogonServer)

// WithInbound appends processors run on every received packet before it is
// handled.
func WithInbound(ps ...tnet.Processor) Option {
	return func(s *LogonServer) { s.inbound = append(s.inbound, ps...) }
}

// WithOutbound appends processors run on every packet before it is written.
func WithOutbound(ps ...tnet.Processor) Option {
	return func(s *LogonServer) { s.outbound = append(s.outbound, ps...) }
}

// WithReadTimeout closes sessions which stay silent for longer than d.
func WithReadTimeout(d time.Duration) Option {
	return func(s *LogonServer) { s.readTimeout = d }
}

// WithRand replaces the source of salts, ephemeral keys and filler.
func WithRand(r io.Reader) Option {
	return func(s *LogonServer) { s.rand = r }
}

// WithMaxConnections limits the number of simultaneously served
// connections. Zero means no limit.
func WithMaxConnections(n int) Option {
	return func(s *LogonServer) { s.maxConns = n }
}

// WithAcceptRate limits how quickly new connections are accepted.
func WithAcceptRate(r rate.Limit, burst int) Option {
	return func(s *LogonServer) { s.limiter = rate.NewLimiter(r, burst) }
}

func NewServer(accts accounts.Store, dir realms.Directory, opts ...Option) (*LogonServer, error) {
	if accts == nil {
		return nil, errors.New("logon: no account store")
	}
	if dir == nil {
		return nil, errors.New("logon: no realm directory")
	}
	s := &LogonServer{
		accounts: accts,
		realms:   dir,
		rand:     rand.Reader,
		sessions: make(map[uuid.UUID]*sessionEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *LogonServer) randomBytes(n int) ([]byte, error) {
	return readFull(s.rand, n)
}

func (s *LogonServer) sessionConfig() tnet.SessionConfig {
	in := append([]tnet.Processor{tnet.LogPackets("recv"), tnet.DropEmpty()}, s.inbound...)
	out := append(append([]tnet.Processor(nil), s.outbound...), tnet.LogPackets("send"))
	return tnet.SessionConfig{
		Inbound:     tnet.NewPipeline(in...),
		Outbound:    tnet.NewPipeline(out...),
		ReadTimeout: s.readTimeout,
	}
}

// Serve runs the logon exchange on conn until the client goes away. The
// connection is closed when Serve returns.
func (s *LogonServer) Serve(ctx context.Context, conn gonet.Conn) error {
	glog.Infoln("accepted connection from ", conn.RemoteAddr())

	c := &connection{server: s}
	sess := tnet.NewSession(conn, c, s.sessionConfig())
	id := uuid.New()
	if err := sess.SetGuid(id); err != nil {
		sess.Close()
		return err
	}

	s.sessionsLock.Lock()
	s.sessions[id] = &sessionEntry{session: sess, conn: c}
	s.sessionsLock.Unlock()
	defer func() {
		s.sessionsLock.Lock()
		delete(s.sessions, id)
		s.sessionsLock.Unlock()
	}()

	err := sess.Run(ctx)
	if err != nil {
		glog.Errorf("%s: %v", sess, err)
	}
	return err
}

// ServeListener accepts connections on l until ctx is cancelled or accepting
// fails. Sessions still running when it returns are closed.
func (s *LogonServer) ServeListener(ctx context.Context, l gonet.Listener) error {
	cfg := tnet.AcceptConfig{MaxConns: s.maxConns, Limiter: s.limiter}
	return tnet.Serve(ctx, l, cfg, func(ctx context.Context, conn gonet.Conn) {
		s.Serve(ctx, conn)
	})
}

// ListenAndServe listens on address and serves it. See ServeListener.
func (s *LogonServer) ListenAndServe(ctx context.Context, address string) error {
	l, err := tnet.Listen(ctx, address)
	if err != nil {
		return err
	}
	glog.Infof("logon server listening on %s", l.Addr())
	return s.ServeListener(ctx, l)
}

// Sessions returns a snapshot of the live sessions, oldest first.
func (s *LogonServer) Sessions() []SessionInfo {
	s.sessionsLock.Lock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for id, e := range s.sessions {
		out = append(out, SessionInfo{
			ID:          id,
			RemoteAddr:  e.session.RemoteAddr().String(),
			State:       e.session.State().String(),
			Account:     e.conn.accountName(),
			ConnectedAt: e.session.ConnectedAt(),
		})
	}
	s.sessionsLock.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}
