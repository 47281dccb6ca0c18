package net

import (
	"context"
	gonet "net"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// AcceptConfig limits an accept loop. The zero value accepts as fast as
// connections arrive, without a cap.
type AcceptConfig struct {
	// MaxConns caps simultaneously open connections.
	MaxConns int

	// Limiter paces accepts.
	Limiter *rate.Limiter
}

// Serve accepts connections on l and passes each to serve on its own
// goroutine until ctx is cancelled or accepting fails. l is closed, and
// every serve call has returned, by the time Serve returns. Cancellation is
// not an error.
func Serve(ctx context.Context, l gonet.Listener, cfg AcceptConfig, serve func(context.Context, gonet.Conn)) error {
	if cfg.MaxConns > 0 {
		l = netutil.LimitListener(l, cfg.MaxConns)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		l.Close()
		return nil
	})

	var wg sync.WaitGroup
	g.Go(func() error {
		for {
			if cfg.Limiter != nil {
				if err := cfg.Limiter.Wait(ctx); err != nil {
					return err
				}
			}
			conn, err := l.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				var ne gonet.Error
				if errors.As(err, &ne) && ne.Timeout() {
					glog.Errorln(err)
					continue
				}
				return errors.Wrapf(err, "accepting on %s", l.Addr())
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				serve(ctx, conn)
			}()
		}
	})

	err := g.Wait()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
