// Command flaresync serves the social platform token exchange backend.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/config"
	"github.com/goliatone/flaresync/encryption"
	"github.com/goliatone/flaresync/exchange"
	"github.com/goliatone/flaresync/kv"
	"github.com/goliatone/flaresync/logging"
	"github.com/goliatone/flaresync/metrics"
	"github.com/goliatone/flaresync/repository"
	"github.com/goliatone/flaresync/social"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config  *config.Config
	logger  *logging.Logger
	db      *bun.DB
	kv      *badger.DB
	repo    *repository.Manager
	cipher  *encryption.Service
	srv     router.Server[*fiber.App]
	metrics *http.Server
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) GetLogger(name string) *logging.Logger {
	return a.logger.With("logger", name)
}

func (a *App) SetDB(db *bun.DB) {
	a.db = db
}

func (a *App) SetRepository(repo *repository.Manager) {
	a.repo = repo
}

func (a *App) SetHTTPServer(srv router.Server[*fiber.App]) {
	a.srv = srv
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: logging.New(cfg.Logging),
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		app.logger.Error("persistence setup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := WithEncryption(ctx, app); err != nil {
		app.logger.Error("encryption setup failed", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := WithHTTPServer(ctx, app, metrics.New(reg)); err != nil {
		app.logger.Error("http setup failed", "error", err)
		os.Exit(1)
	}

	WithMetricsServer(app, reg)

	go func() {
		app.logger.Info("serving backend functions", "addr", cfg.Server.Addr)
		if err := app.srv.Serve(cfg.Server.Addr); err != nil {
			app.logger.Error("http server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	app.logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("http shutdown failed", "error", err)
	}
	if app.metrics != nil {
		_ = app.metrics.Shutdown(shutdownCtx)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.Config()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Database.DSN)
	if err != nil {
		return err
	}

	if err := repository.Migrate(ctx, sqldb); err != nil {
		return err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if cfg.Database.Debug {
		db.AddQueryHook(queryLogger{logger: app.GetLogger("persistence")})
	}

	repo := repository.NewManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	app.SetDB(db)
	app.SetRepository(repo)

	if cfg.Encryption.KeyStore == config.StoreBadger {
		store, err := kv.Open(kv.Options{Path: cfg.KV.Path, SyncWrites: cfg.KV.SyncWrites})
		if err != nil {
			return err
		}
		app.kv = store
	}
	return nil
}

func WithEncryption(ctx context.Context, app *App) error {
	cfg := app.Config()
	logger := app.GetLogger("encryption")

	var keys encryption.KeyStore
	switch cfg.Encryption.KeyStore {
	case config.StoreBadger:
		keys = kv.NewKeyStore(app.kv)
	case config.StoreFile:
		keys = encryption.NewFileKeyStore(cfg.Encryption.Path)
	default:
		keys = encryption.NewMemoryKeyStore()
	}

	app.cipher = encryption.NewService(keys,
		encryption.WithLogger(logger),
		encryption.WithRecordStore(app.repo.Records()),
		encryption.WithReporter(encryption.ReporterFunc(func(message string) {
			logger.Warn(message)
		})),
	)

	// Degraded mode is allowed: connect requests fail with an encryption
	// error instead of storing plaintext.
	if !app.cipher.Initialize(ctx) {
		logger.Warn("encryption unavailable, connect requests will be rejected")
	}
	return nil
}

func WithHTTPServer(_ context.Context, app *App, m *metrics.Metrics) error {
	cfg := app.Config()

	sessions := flaresync.NewTokenService(
		[]byte(cfg.Session.SigningKey),
		cfg.Session.TTL,
		cfg.Session.Issuer,
		cfg.Session.Audience,
		app.GetLogger("session"),
	)

	registry := cfg.Platforms.Registry()
	activity := app.GetLogger("activity")

	service := exchange.NewService(sessions, registry, app.repo.Profiles(), app.cipher,
		exchange.WithLogger(app.GetLogger("exchange")),
		exchange.WithMetrics(m),
		exchange.WithBreakerConfig(exchange.BreakerConfig{
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		}),
		exchange.WithActivitySink(flaresync.ActivitySinkFunc(func(_ context.Context, event flaresync.ActivityEvent) error {
			log := activity.Info
			if event.EventType.Failure() {
				log = activity.Warn
			}
			log(string(event.EventType),
				"user_id", event.UserID,
				"platform", event.Platform,
				"metadata", event.Metadata,
			)
			return nil
		})),
	)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
			ReadTimeout:   cfg.Server.ReadTimeout,
			WriteTimeout:  cfg.Server.WriteTimeout,
		}))
	})

	srv.Router().Use(exchange.CORS())

	exchange.NewHTTPController(service, app.GetLogger("controller")).RegisterRoutes(srv.Router())

	for _, p := range registry.Platforms() {
		adapter, _ := registry.Get(p)
		app.logger.Info("platform adapter", "platform", p, "configured", social.IsConfigured(adapter))
	}

	app.SetHTTPServer(srv)
	return nil
}

func WithMetricsServer(app *App, reg *prometheus.Registry) {
	cfg := app.Config().Metrics
	if !cfg.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	app.metrics = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		app.logger.Info("serving metrics", "addr", cfg.Addr, "path", cfg.Path)
		if err := app.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error("metrics server stopped", "error", err)
		}
	}()
}

func (a *App) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
