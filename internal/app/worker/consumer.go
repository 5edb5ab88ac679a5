package worker

import (
	"context"
	"errors"
	"time"

	"contest_judge/internal/platform/logger"
	"contest_judge/internal/platform/queue"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultPollTimeout = 5 * time.Second
	popErrorBackoff    = 5 * time.Second
)

type ConsumerConfig struct {
	LockPrefix  string
	LockTTL     time.Duration
	PollTimeout time.Duration
}

// QueueConsumer drains the Redis grading queue into the pool. Each id is graded under a
// per-submission lock so two consumers never work on the same submission.
type QueueConsumer struct {
	rdb       *redis.Client
	queue     *queue.RedisQueue
	pool      *Pool
	processor Processor
	cfg       ConsumerConfig
}

func NewQueueConsumer(rdb *redis.Client, q *queue.RedisQueue, pool *Pool, processor Processor, cfg ConsumerConfig) *QueueConsumer {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	return &QueueConsumer{rdb: rdb, queue: q, pool: pool, processor: processor, cfg: cfg}
}

// Run pops ids until ctx is cancelled. Pool saturation blocks the loop, which throttles
// consumption instead of draining the shared queue into local memory.
func (c *QueueConsumer) Run(ctx context.Context) error {
	logger.Info(ctx, "grading consumer started", zap.String("queue", c.queue.Name()))
	for {
		if ctx.Err() != nil {
			logger.Info(ctx, "grading consumer stopping")
			return nil
		}

		id, err := c.queue.Pop(ctx, c.cfg.PollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error(ctx, "failed to pop from grading queue", zap.Error(err))
			select {
			case <-time.After(popErrorBackoff):
			case <-ctx.Done():
			}
			continue
		}
		if id == "" {
			continue
		}

		logger.Debug(ctx, "picked up submission", zap.String("submission_id", id))
		if err := c.pool.SubmitWait(ctx, c.lockedTask(id)); err != nil {
			c.requeue(id, err)
		}
	}
}

func (c *QueueConsumer) lockedTask(id string) Task {
	return func(ctx context.Context) {
		lock, ok, err := queue.AcquireLock(ctx, c.rdb, c.cfg.LockPrefix+id, c.cfg.LockTTL)
		if err != nil {
			logger.Error(ctx, "grading lock unavailable", zap.String("submission_id", id), zap.Error(err))
			c.requeue(id, err)
			return
		}
		if !ok {
			logger.Info(ctx, "submission is being graded elsewhere", zap.String("submission_id", id))
			return
		}
		defer func() {
			released, err := lock.Release(ctx)
			switch {
			case err != nil:
				logger.Error(ctx, "failed to release grading lock", zap.String("key", lock.Key()), zap.Error(err))
			case !released:
				logger.Warn(ctx, "grading lock expired before release", zap.String("key", lock.Key()))
			}
		}()
		processTask(c.processor, id)(ctx)
	}
}

// requeue puts id back after it was popped but could not be handed to a worker.
func (c *QueueConsumer) requeue(id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.queue.Requeue(ctx, id); err != nil {
		logger.Error(ctx, "lost submission id", zap.String("submission_id", id), zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	logger.Info(ctx, "submission re-queued", zap.String("submission_id", id), zap.NamedError("cause", cause))
}
