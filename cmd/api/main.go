package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"scholarportal.org/internal/auth"
	"scholarportal.org/internal/config"
	"scholarportal.org/internal/httpapi"
	"scholarportal.org/internal/migrate"
	"scholarportal.org/internal/notify"
	"scholarportal.org/internal/obs"
	"scholarportal.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		obs.Error("portal-api stopped", map[string]any{"error": err})
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadAPI()
	if err != nil {
		return err
	}
	if cfg.Version != "" {
		version = cfg.Version
	}

	// metrics and build info
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store auth.Store
		ready httpapi.ReadyProbe
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		if cfg.AutoMigrate {
			applied, err := migrate.NewManager(pgStore.DB(), nil).Up(ctx)
			if err != nil {
				return err
			}
			obs.Info("migrations applied", map[string]any{"applied": applied})
		}
		store, ready = pgStore, httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		obs.Warn("PORTAL_PG_DSN not set, accounts are kept in memory", nil)
		store = auth.NewMemoryStore()
	}

	sender, closeSender, err := codeSender(cfg)
	if err != nil {
		return err
	}
	defer closeSender()

	svc, err := auth.NewService(store,
		auth.WithSessionSecret(cfg.SessionSecret),
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithCodeTTL(cfg.CodeTTL),
		auth.WithCodeSender(sender),
	)
	if err != nil {
		return err
	}

	api := httpapi.New(svc,
		httpapi.WithReadiness(ready),
		httpapi.WithVersion(version),
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins),
		httpapi.WithCookieSecure(cfg.CookieSecure),
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSecond),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := httpapi.NewHealthServer(ready)
	grpcSrv := grpc.NewServer()
	health.Register(grpcSrv)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs.Info("http listening", map[string]any{"addr": srv.Addr, "version": version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		obs.Info("grpc listening", map[string]any{"addr": grpcLis.Addr().String()})
		return grpcSrv.Serve(grpcLis)
	})
	g.Go(func() error {
		return health.Run(gctx, cfg.ReadyInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		obs.Info("shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		grpcSrv.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	obs.Info("stopped", nil)
	return nil
}

// codeSender publishes codes over NATS when configured and otherwise falls back to
// the log sender, which prints codes in clear text.
func codeSender(cfg config.API) (auth.CodeSender, func(), error) {
	if cfg.NATSURL == "" {
		obs.Warn("PORTAL_NATS_URL not set, verification codes are written to the log", nil)
		return notify.LogSender{}, func() {}, nil
	}
	nc, err := notify.Dial(cfg.NATSURL, "portal-api")
	if err != nil {
		return nil, nil, err
	}
	sender, err := notify.NewNATSSender(nc, cfg.NATSSubject)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return sender, func() { _ = nc.Drain() }, nil
}
