package main

import (
	"context"
	"fmt"

	"matter_intake_backend/internal/jobs"
	"matter_intake_backend/internal/saga"
	"matter_intake_backend/internal/scheduler"
	"matter_intake_backend/platform/config"
	"matter_intake_backend/platform/db"
	"matter_intake_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// env holds the connections a command needs. Close releases them.
type env struct {
	cfg       *config.Config
	log       *logger.Logger
	pool      *pgxpool.Pool
	publisher *scheduler.Client
}

func openEnv(ctx context.Context, withTransport bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	e := &env{cfg: cfg, log: logger.New(cfg.Env)}
	e.pool, err = db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if withTransport {
		if err := cfg.ValidateTransport(); err != nil {
			e.Close()
			return nil, err
		}
		e.publisher, err = scheduler.NewClient(cfg)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	return e, nil
}

// orchestrator builds an orchestrator able to replay; it runs no stages.
func (e *env) orchestrator() *saga.Orchestrator {
	return saga.NewOrchestrator(saga.Deps{
		Store:     saga.NewRepository(e.pool),
		Jobs:      jobs.NewRepository(e.pool),
		Publisher: e.publisher,
		Log:       e.log,
	})
}

func (e *env) Close() {
	if e.publisher != nil {
		_ = e.publisher.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}
