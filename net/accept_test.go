package net

import (
	"context"
	gonet "net"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"badc0de.net/pkg/go-logon/ttesting"
)

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	var served int32
	done := make(chan error, 1)
	cfg := AcceptConfig{MaxConns: 2, Limiter: rate.NewLimiter(rate.Inf, 1)}
	go func() {
		done <- Serve(ctx, l, cfg, func(ctx context.Context, conn gonet.Conn) {
			atomic.AddInt32(&served, 1)
			s := NewSession(conn, HandlerFunc(func(ctx context.Context, s *Session, env *Envelope) error {
				return s.Send(ctx, NewEnvelope(env.Payload))
			}), SessionConfig{})
			s.Run(ctx)
		})
	}()

	for i := 0; i < 2; i++ {
		conn, err := gonet.Dial("tcp", l.Addr().String())
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		defer conn.Close()
		ttesting.WritePacket(t, conn, []byte{byte(i), 0xAA})
		ttesting.AssertEqualBytes(t, "echo", ttesting.ReadPacket(t, conn), []byte{byte(i), 0xAA})
	}
	ttesting.AssertEqualInt(t, "served", int(atomic.LoadInt32(&served)), 2)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}
