package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"matter_intake_backend/internal/saga"
	"matter_intake_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueue    = "default"
	defaultMaxRetry = 10
	// StageTimeout bounds one stage's execution.
	StageTimeout = 20 * time.Minute
)

// Client publishes stage events onto the asynq queue. It implements
// saga.Publisher.
type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

var _ saga.Publisher = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return newClient(opt, cfg.GetAsynqQueueName(), cfg.GetAsynqMaxRetry()), nil
}

func newClient(opt asynq.RedisConnOpt, queue string, maxRetry int) *Client {
	if queue == "" {
		queue = defaultQueue
	}
	if maxRetry < 1 {
		maxRetry = defaultMaxRetry
	}
	return &Client{
		client:   asynq.NewClient(opt),
		queue:    queue,
		maxRetry: maxRetry,
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Publish enqueues the stage event for path. Events carry no task id:
// redelivered stages republish their successor and a duplicate is harmless.
func (c *Client) Publish(ctx context.Context, path saga.Path, ev saga.Event) error {
	task, err := NewStageTask(path, ev)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(c.maxRetry), asynq.Timeout(StageTimeout))
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
