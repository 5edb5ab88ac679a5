package worker

import (
	"context"

	"contest_judge/internal/platform/logger"
	"contest_judge/internal/platform/queue"

	"go.uber.org/zap"
)

// Processor grades one submission by id.
type Processor interface {
	Process(ctx context.Context, submissionID string) error
}

// PoolScheduler grades in this process on the bounded pool.
type PoolScheduler struct {
	pool      *Pool
	processor Processor
}

func NewPoolScheduler(pool *Pool, processor Processor) *PoolScheduler {
	return &PoolScheduler{pool: pool, processor: processor}
}

func (s *PoolScheduler) Schedule(ctx context.Context, submissionID string) error {
	return s.pool.Submit(ctx, processTask(s.processor, submissionID))
}

// ScheduleWait blocks until the pool has room, the pool stops or ctx is done.
func (s *PoolScheduler) ScheduleWait(ctx context.Context, submissionID string) error {
	return s.pool.SubmitWait(ctx, processTask(s.processor, submissionID))
}

func processTask(processor Processor, submissionID string) Task {
	return func(ctx context.Context) {
		if err := processor.Process(ctx, submissionID); err != nil {
			logger.Error(ctx, "grading failed", zap.String("submission_id", submissionID), zap.Error(err))
		}
	}
}

// QueueScheduler hands ids to a separate worker process through Redis.
type QueueScheduler struct {
	queue *queue.RedisQueue
}

func NewQueueScheduler(q *queue.RedisQueue) *QueueScheduler {
	return &QueueScheduler{queue: q}
}

func (s *QueueScheduler) Schedule(ctx context.Context, submissionID string) error {
	return s.queue.Push(ctx, submissionID)
}
