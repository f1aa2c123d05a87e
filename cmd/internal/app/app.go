// Package app wires the babilado server runtime: config, logging, stores,
// HTTP routes and the realtime gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/grebenindmitry/babilado-backend/cmd/identity"
	authapi "github.com/grebenindmitry/babilado-backend/cmd/internal/auth/api"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/auth/session"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/messages"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/realtime"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/telemetry"
	"github.com/grebenindmitry/babilado-backend/cmd/security/password"
)

// App owns the HTTP server and every long-lived dependency behind it.
type App struct {
	cfg Config
	log Logger

	dbPool  *pgxpool.Pool
	promReg *prometheus.Registry
	metrics *telemetry.Metrics

	users    identity.Store
	msgStore messages.Store
	sessions *session.Authority
	registry *realtime.Registry
	pipeline *messages.Service

	gateway *realtime.Gateway
	api     *authapi.Handler
}

// New constructs a fully wired App. An empty DatabaseURL selects in-memory
// stores; otherwise users and messages live in Postgres.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	wsCfg, err := realtime.LoadGatewayConfig()
	if err != nil {
		return nil, err
	}
	apiCfg := authapi.LoadConfigFromEnv()

	a := &App{cfg: cfg, log: log}

	if cfg.MetricsEnabled {
		a.promReg = prometheus.NewRegistry()
		a.promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = telemetry.New(a.promReg)
	}

	if err := a.openStores(context.Background(), pwCfg); err != nil {
		return nil, err
	}

	a.sessions = session.NewAuthority(sessCfg, a.users,
		session.WithLogger(log),
		session.WithMetrics(a.metrics),
	)
	a.registry = realtime.NewRegistry(log, a.metrics)
	a.pipeline = messages.NewService(a.msgStore, a.registry,
		messages.WithLogger(log),
		messages.WithMetrics(a.metrics),
		messages.WithUserDirectory(a.users),
	)
	a.gateway = realtime.NewGateway(wsCfg, a.registry, a.sessions, a.pipeline,
		realtime.WithGatewayLogger(log),
		realtime.WithGatewayMetrics(a.metrics),
	)

	a.api, err = authapi.NewHandler(apiCfg, a.users, a.sessions, a.pipeline, authapi.WithLogger(log))
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context, pwCfg password.Config) error {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
		users := identity.NewInMemoryStore(pwCfg)
		a.users = users
		a.msgStore = messages.NewInMemoryStore(users, messages.WithStoreLogger(a.log))
		return nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return err
	}

	users, err := identity.NewPostgresStore(pool,
		identity.WithSchema(a.cfg.DBSchema),
		identity.WithPasswordConfig(pwCfg),
		identity.WithLogger(a.log),
	)
	if err != nil {
		pool.Close()
		return err
	}
	msgs, err := messages.NewPostgresStore(pool, messages.WithSchema(a.cfg.DBSchema))
	if err != nil {
		pool.Close()
		return err
	}

	a.log.Info("db.enabled.postgres_store", "schema", a.cfg.DBSchema)
	a.dbPool = pool
	a.users = users
	a.msgStore = msgs
	return nil
}

// Close releases store resources. The pool is owned here; store Close is a no-op.
func (a *App) Close() {
	if a.msgStore != nil {
		_ = a.msgStore.Close()
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// down gracefully within cfg.ShutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.newHandler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	srv.RegisterOnShutdown(func() {
		n := a.registry.CloseAll()
		a.log.Info("ws.close_all", "connections", n)
	})

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.dbPool != nil,
		"metrics_enabled", a.promReg != nil,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done", "connections", a.registry.Len())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		if err := a.drainConnections(shutdownCtx); err != nil {
			a.log.Warn("ws.drain.timeout", "connections", a.registry.Len())
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("server.stopped")
	return nil
}

// drainConnections waits until every websocket handler has unregistered.
func (a *App) drainConnections(ctx context.Context) error {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for a.registry.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
