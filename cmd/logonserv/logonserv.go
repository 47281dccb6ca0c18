// Command logonserv runs the logon server: it authenticates clients and
// hands them the realm list.
package main

import (
	"context"
	"flag"
	"math"
	gonet "net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"badc0de.net/pkg/flagutil/v1"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"badc0de.net/pkg/go-logon/accounts"
	"badc0de.net/pkg/go-logon/logon"
	tnet "badc0de.net/pkg/go-logon/net"
	"badc0de.net/pkg/go-logon/paths"
	"badc0de.net/pkg/go-logon/realms"
	"badc0de.net/pkg/go-logon/routing"
	"badc0de.net/pkg/go-logon/web"
)

var (
	realmsPath   string
	accountsPath string

	listenAddress        = flag.String("listen_address", ":3724", "where the logon server will listen")
	routingListenAddress = flag.String("routing_listen_address", "", "where inter-server handshakes are accepted; empty disables")
	debugWebServer       = flag.String("debug_web_server_listen_address", "", "where the debug server will listen")

	redisAddress   = flag.String("redis_address", "", "if set, accounts are read from this redis server instead of the accounts file")
	redisKeyPrefix = flag.String("redis_key_prefix", "logon:account:", "prefix of account keys in redis")
	seedRedis      = flag.Bool("seed_redis", false, "copy the accounts file into redis on startup")

	readTimeout    = flag.Duration("read_timeout", 2*time.Minute, "idle sessions are closed after this long")
	maxConnections = flag.Int("max_connections", 1024, "most simultaneously served connections; 0 for no limit")
	acceptRate     = flag.Float64("accept_rate", 50, "connections accepted per second; 0 for no limit")
)

func setupFilePathFlags() {
	paths.SetupFilePathFlag(flag.CommandLine, "realms.toml", "realms_path", &realmsPath)
	paths.SetupFilePathFlag(flag.CommandLine, "accounts.toml", "accounts_path", &accountsPath)
}

func main() {
	setupFilePathFlags()
	flagutil.Parse()
	defer glog.Flush()

	glog.Infoln("starting logonserv")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		glog.Errorln(err)
		glog.Flush()
		os.Exit(1)
	}
	glog.Infoln("logonserv stopped")
}

func run(ctx context.Context) error {
	if realmsPath == "" {
		return errors.New("no realm list; pass -realms_path")
	}
	dir, err := realms.LoadFile(realmsPath)
	if err != nil {
		return err
	}
	glog.Infof("loaded %d realms from %s", len(dir), realmsPath)

	store, err := openAccounts(ctx)
	if err != nil {
		return err
	}

	opts := []logon.Option{
		logon.WithReadTimeout(*readTimeout),
		logon.WithMaxConnections(*maxConnections),
	}
	if *acceptRate > 0 {
		opts = append(opts, logon.WithAcceptRate(rate.Limit(*acceptRate), int(math.Ceil(*acceptRate))))
	}
	srv, err := logon.NewServer(store, dir, opts...)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, *listenAddress)
	})
	if *routingListenAddress != "" {
		g.Go(func() error {
			return serveRouting(ctx, *routingListenAddress)
		})
	}
	if *debugWebServer != "" {
		hs := &http.Server{
			Addr:              *debugWebServer,
			Handler:           web.NewServeMux(srv, dir),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			glog.Infof("debug web server listening on %s", *debugWebServer)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "debug web server")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return hs.Shutdown(context.Background())
		})
	}
	return g.Wait()
}

func openAccounts(ctx context.Context) (accounts.Store, error) {
	var file *accounts.MemoryStore
	if accountsPath != "" {
		var err error
		if file, err = accounts.LoadFile(accountsPath); err != nil {
			return nil, err
		}
	}

	if *redisAddress == "" {
		if file == nil {
			return nil, errors.New("no account source; pass -accounts_path or -redis_address")
		}
		glog.Infof("accounts from %s", accountsPath)
		return file, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{*redisAddress}})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "redis at %s", *redisAddress)
	}
	store := accounts.NewRedisStore(client, *redisKeyPrefix)
	if *seedRedis && file != nil {
		for _, a := range file.All() {
			if err := store.Put(ctx, a); err != nil {
				return nil, err
			}
		}
		glog.Infof("seeded redis with %d accounts from %s", len(file.All()), accountsPath)
	}
	glog.Infof("accounts from redis at %s", *redisAddress)
	return store, nil
}

// serveRouting accepts inter-server connections and performs the handshake
// on them.
func serveRouting(ctx context.Context, address string) error {
	l, err := tnet.Listen(ctx, address)
	if err != nil {
		return err
	}
	glog.Infof("routing listener on %s", l.Addr())

	h := routing.SessionHandler(routing.NewHandshakeRouter())
	cfg := tnet.SessionConfig{
		Inbound:     tnet.NewPipeline(tnet.LogPackets("recv"), tnet.DropEmpty()),
		Outbound:    tnet.NewPipeline(tnet.LogPackets("send")),
		ReadTimeout: *readTimeout,
	}
	return tnet.Serve(ctx, l, tnet.AcceptConfig{}, func(ctx context.Context, conn gonet.Conn) {
		s := tnet.NewSession(conn, h, cfg)
		if err := s.Run(ctx); err != nil {
			glog.Errorf("%s: %v", s, err)
		}
	})
}
