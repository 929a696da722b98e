package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/neomorfeo/boxsync/internal/adapter/credential"
	"github.com/neomorfeo/boxsync/internal/adapter/fsm"
	"github.com/neomorfeo/boxsync/internal/adapter/media"
	"github.com/neomorfeo/boxsync/internal/adapter/metrics"
	"github.com/neomorfeo/boxsync/internal/adapter/sqlite"
	"github.com/neomorfeo/boxsync/internal/adapter/tickettailor"
	"github.com/neomorfeo/boxsync/internal/app"
	"github.com/neomorfeo/boxsync/internal/config"
	"github.com/neomorfeo/boxsync/internal/domain"
	"github.com/neomorfeo/boxsync/internal/logging"
	"github.com/neomorfeo/boxsync/internal/supervisor"

	handler "github.com/neomorfeo/boxsync/internal/adapter/http"
	oteladapter "github.com/neomorfeo/boxsync/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/boxsync/internal/adapter/river"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log := logging.Logger()
		log.Error().Err(err).Msg("boxsync exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("boxsync", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (default $"+config.PathEnvVar+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logging.WithComponent("main")

	providers, err := oteladapter.Setup(ctx, oteladapter.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		Exporter:       cfg.Telemetry.Exporter,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	db, err := oteladapter.OpenDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	a, err := build(ctx, cfg, db)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	tree := supervisor.New("boxsync",
		logging.NewSlogLogger(logging.WithComponent("supervisor")),
		supervisor.Config{ShutdownTimeout: cfg.Server.ShutdownTimeout},
	)
	tree.Add(supervisor.NewHTTPService(srv, cfg.Server.ShutdownTimeout))
	tree.Add(supervisor.NewQueueService(a.queue, cfg.Server.ShutdownTimeout))

	log.Info().
		Str("addr", srv.Addr).
		Str("database", cfg.Database.Path).
		Dur("sync_interval", cfg.Sync.Interval).
		Msg("boxsync starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("boxsync stopped")
	return nil
}

// application is the wired object graph behind the process.
type application struct {
	handler http.Handler
	queue   *riveradapter.Client
	store   *sqlite.Store
	metrics *metrics.Recorder
}

// build wires adapters and services on db. It does not start anything.
func build(ctx context.Context, cfg *config.Config, db *sql.DB) (*application, error) {
	log := logging.WithComponent("main")

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	cipher, err := credential.New(cfg.Security.Secret)
	if err != nil {
		return nil, fmt.Errorf("credential cipher: %w", err)
	}
	if cipher.Insecure() {
		log.Warn().Msg("security.secret is not set; stored API keys are only obfuscated")
	}

	recorder := metrics.New()

	var breakers *tickettailor.Breakers
	if cfg.Breaker.Enabled {
		breakers = tickettailor.NewBreakers(tickettailor.BreakerSettings{
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
		}, recorder)
	}
	sources := oteladapter.NewTracingSourceFactory(tickettailor.NewFactory(tickettailor.Options{
		BaseURL:           cfg.Remote.BaseURL,
		Timeout:           cfg.Remote.Timeout,
		PageSize:          cfg.Remote.PageSize,
		MaxPages:          cfg.Remote.MaxPages,
		RequestsPerSecond: cfg.Remote.RequestsPerSecond,
	}, breakers))

	var images domain.ImageFetcher
	if cfg.Media.Enabled {
		images = media.New(media.Options{
			AllowedHosts: cfg.Media.AllowedHosts,
			MaxBytes:     cfg.Media.MaxBytes,
			Timeout:      cfg.Media.Timeout,
		})
	}

	machine := fsm.New()
	registry := app.NewTenantRegistry(
		oteladapter.NewTracingRepository(store.Tenants()),
		store.Documents(),
		cipher,
		sources,
		machine,
	)
	engine := app.NewSyncEngine(store.Documents(), images)
	orchestrator := app.NewOrchestrator(registry, engine, sources, store.State(), store.Logs(), recorder, app.OrchestratorConfig{
		LegacyAPIKey: cfg.Remote.LegacyAPIKey,
		Concurrency:  cfg.Sync.Concurrency,
		LockTTL:      cfg.Sync.LockTTL,
		LogEnabled:   cfg.SyncLog.Enabled,
	})
	logs := app.NewLogService(store.Logs())

	queue, err := riveradapter.Setup(ctx, db, riveradapter.Deps{
		Syncer:    orchestrator,
		Snapshots: store.State(),
		Purger:    logs,
	}, riveradapter.Config{
		SyncInterval:  cfg.Sync.Interval,
		SyncTimeout:   cfg.Sync.LockTTL,
		RunOnStart:    cfg.Sync.RunOnStart,
		PurgeInterval: cfg.SyncLog.PurgeInterval,
		RetentionDays: cfg.SyncLog.RetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("job queue: %w", err)
	}

	router := handler.NewRouter(handler.Services{
		Registry:  registry,
		Compare:   app.NewCompareService(registry, store.Documents(), sources),
		Logs:      logs,
		Snapshots: store.State(),
		Trigger:   oteladapter.NewTracingTrigger(riveradapter.NewTrigger(queue)),
		Machine:   machine,
	}, handler.RouterConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Version:        version,
		SyncRateLimit:  cfg.Server.SyncRateLimit,
		SyncRateWindow: cfg.Server.SyncRateWindow,
		Metrics:        recorder.Handler(),
	})

	return &application{handler: router, queue: queue, store: store, metrics: recorder}, nil
}
