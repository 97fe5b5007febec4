package scheduler

import (
	"context"
	"fmt"
	"time"

	"matter_intake_backend/internal/saga"
	"matter_intake_backend/platform/apperr"
	"matter_intake_backend/platform/config"
	"matter_intake_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// StageHandler runs one stage event.
type StageHandler interface {
	Handle(ctx context.Context, path saga.Path, ev saga.Event) error
}

// Worker consumes stage events and hands them to the saga.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, handler StageHandler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = defaultQueue
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		LogLevel:        asynq.WarnLevel,
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warn("stage task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "error", err)
		}),
	})

	return &Worker{
		server: server,
		mux:    newMux(handler, log),
		log:    log,
	}, nil
}

// newMux routes every stage task type to handler.
func newMux(handler StageHandler, log *logger.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for _, path := range saga.Paths() {
		mux.HandleFunc(TaskType(path), stageTaskHandler(handler, log))
	}
	return mux
}

func stageTaskHandler(handler StageHandler, log *logger.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		path, ev, err := ParseStageTask(task)
		if err != nil {
			log.Error("discarding undecodable stage task", "type", task.Type(), "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		err = handler.Handle(ctx, path, ev)
		if apperr.Is(err, apperr.KindBadRequest) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start stage worker: %w", err)
	}
	w.log.Info("stage worker started")

	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("stage worker stopped")
	return nil
}
