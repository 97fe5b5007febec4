package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"matter_intake_backend/internal/addressing"
	"matter_intake_backend/internal/adapters/storage"
	"matter_intake_backend/internal/calendar"
	"matter_intake_backend/internal/duedate"
	apphttp "matter_intake_backend/internal/http"
	"matter_intake_backend/internal/http/router"
	"matter_intake_backend/internal/intake"
	"matter_intake_backend/internal/jobs"
	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter/client"
	"matter_intake_backend/internal/participants"
	"matter_intake_backend/internal/policy"
	"matter_intake_backend/internal/populator"
	"matter_intake_backend/internal/saga"
	"matter_intake_backend/internal/scheduler"
	"matter_intake_backend/platform/config"
	"matter_intake_backend/platform/db"
	"matter_intake_backend/platform/logger"
	"matter_intake_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.ValidateWorker(); err != nil {
		panic("invalid worker config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting matter intake worker", "env", cfg.Env, "addr", cfg.HTTPAddr)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if cfg.MigrationsEnabled {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	publisher, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize stage publisher", "error", err)
		panic("failed to initialize stage publisher: " + err.Error())
	}
	defer func() { _ = publisher.Close() }()

	val := validator.New()

	// ========================================================================
	// Domain Layer (Composition Root)
	// ========================================================================

	pol, err := policy.Load(cfg.GetPolicyFile())
	if err != nil {
		log.Error("failed to load tenant policy", "error", err)
		panic("failed to load tenant policy: " + err.Error())
	}

	resolver, err := calendar.NewResolver(cfg.GetJurisdiction(), pol.CustomHolidays)
	if err != nil {
		log.Error("failed to build holiday calendar", "error", err)
		panic("failed to build holiday calendar: " + err.Error())
	}
	log.Info("holiday calendar loaded", "jurisdiction", resolver.Jurisdiction(), "custom_holidays", len(pol.CustomHolidays))
	dates := duedate.New(resolver, duedate.WithInclusive(cfg.GetInclusiveOffsets()))

	schema, err := manifest.LoadSchema()
	if err != nil {
		panic("failed to load manifest schema: " + err.Error())
	}
	builder := manifest.NewBuilder(dates, val, schema)

	matters := client.New(client.Config{
		BaseURL:           cfg.GetMatterAPIURL(),
		Token:             cfg.GetMatterAPIToken(),
		RequestsPerSecond: cfg.GetMatterAPIRequestsPerSecond(),
		Timeout:           cfg.GetMatterAPITimeout(),
	}, log)

	provisioner := participants.NewProvisioner(matters, pol, addressNormalizer(cfg, log), participants.Options{
		Region:           cfg.GetPhoneRegion(),
		DefaultContactID: cfg.GetDefaultContactID(),
		ReportMismatch:   cfg.GetReportContactMismatch(),
	}, log)

	var objects storage.ObjectStore
	maxFileSize := cfg.GetMinIOMaxFileSize()
	if cfg.IsMinIOEnabled() {
		minioSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		objects = minioSvc
		maxFileSize = minioSvc.GetMaxFileSize()
		log.Info("object storage enabled", "endpoint", cfg.GetMinIOEndpoint(), "max_file_size", maxFileSize)
	} else {
		log.Warn("MINIO_ENDPOINT not configured; only http(s) file links can be attached")
	}
	downloader := storage.NewDownloader(objects, cfg.GetMinIOEndpoint(), maxFileSize)

	pop := populator.New(matters, provisioner, downloader, pol, log, populator.WithPagePause(cfg.GetPagePause()))

	sagaStore := saga.NewRepository(pool)
	jobStore := jobs.NewRepository(pool)

	orchestrator := saga.NewOrchestrator(saga.Deps{
		Store:     sagaStore,
		Jobs:      jobStore,
		Matters:   matters,
		Builder:   builder,
		Populator: pop,
		Publisher: publisher,
		Metrics:   saga.NewMetrics(registry),
		Log:       log,
	})

	worker, err := scheduler.NewWorker(cfg, orchestrator, log)
	if err != nil {
		log.Error("failed to initialize stage worker", "error", err)
		panic("failed to initialize stage worker: " + err.Error())
	}
	sweeper := scheduler.NewStalledSagaSweeper(sagaStore, orchestrator, log, cfg.GetSweepInterval(), cfg.GetStalledAfter())

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		Registry: registry,
		Modules: []apphttp.Module{
			intake.NewModule(intake.NewRepository(pool), jobStore, sagaStore, orchestrator, publisher, val, log),
		},
	}
	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

// addressNormalizer returns the address service, or nil when address
// validation is disabled. A nil *addressing.Service must not be returned
// as a non-nil interface.
func addressNormalizer(cfg config.AddressConfig, log *logger.Logger) participants.AddressNormalizer {
	svc := addressing.NewService(cfg, log)
	if svc == nil {
		return nil
	}
	return svc
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
