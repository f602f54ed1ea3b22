// Package app wires the Tether server runtime: config, logging, HTTP routes,
// the pairing registries, and the push-channel gateway.
//
// It is intentionally small and deterministic to keep behavior predictable.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tether/cmd/internal/pairing"
	pairingapi "tether/cmd/internal/pairing/api"
	"tether/cmd/internal/push"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the Tether server runtime. It owns the HTTP server wiring and the
// lifecycle of the pairing service and delivery tracker; no state is ambient.
type App struct {
	cfg Config
	log *slog.Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	svc     *pairing.Service
	hub     *push.Hub
	tracker *push.Tracker
	ws      *push.WSGateway
	api     *pairingapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	mirror, dbPool, dbEnabled, err := newMirror(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	svc := pairing.NewService(log, pairing.Config{
		SessionTTL:            cfg.SessionTTL,
		DefaultRequestTimeout: cfg.RequestTimeout,
		SweepInterval:         cfg.ExpirySweep,
	}, nil, mirror)

	hub := push.NewHub(log)
	tracker := push.NewTracker(log, hub, push.TrackerConfig{
		AckWindow:     cfg.AckWindow,
		RetryInterval: cfg.RetryInterval,
		MaxRetries:    cfg.MaxRetries,
	})

	// The transport registers itself as the registries' event sink; the
	// registries notify unconditionally.
	svc.SetSink(push.NewNotifier(log, hub, tracker))

	ws := push.NewWSGateway(log, hub, tracker, svc)
	api := pairingapi.NewHandler(log, svc)

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		svc:       svc,
		hub:       hub,
		tracker:   tracker,
		ws:        ws,
		api:       api,
	}, nil
}

// Run starts the background sweepers and the HTTP server, then blocks until
// context cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	a.svc.Start()
	a.tracker.Start()

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.api, a.ws)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.tracker.Stop()
	a.svc.Stop()

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
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

// newMirror decides between the Postgres audit mirror and the no-op one.
func newMirror(ctx context.Context, cfg Config, log *slog.Logger) (pairing.Mirror, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.nop_mirror")
		return pairing.NopMirror{}, nil, false, nil
	}

	pool, err := NewMirrorPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	mirror, err := pairing.NewPostgresMirror(pool, pairing.WithMirrorSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_mirror", "schema", cfg.DBSchema)
	return mirror, pool, true, nil
}
