package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"contest_judge/internal/common"
	"contest_judge/internal/platform/logger"
	"contest_judge/internal/platform/metrics"

	"go.uber.org/zap"
)

// Task is one unit of grading work. The context is the pool's, not the submitter's.
type Task func(ctx context.Context)

type PoolConfig struct {
	Workers        int
	QueueSize      int
	EnqueueTimeout time.Duration // how long Submit waits for room in a full queue
}

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	workers        int
	queueSize      int
	enqueueTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	workCh    chan Task
	done      chan struct{}
	busy      atomic.Int32
}

func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return &Pool{
		workers:        cfg.Workers,
		queueSize:      cfg.QueueSize,
		enqueueTimeout: cfg.EnqueueTimeout,
		workCh:         make(chan Task, cfg.QueueSize),
		done:           make(chan struct{}),
	}
}

func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(p.workers)
		for i := 0; i < p.workers; i++ {
			go p.loop()
		}
	})
}

// Submit queues task, waiting at most the enqueue timeout for room. A pool that stays
// saturated answers common.ErrQueueFull.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-p.done:
		return errPoolClosed
	default:
	}

	select {
	case p.workCh <- task:
		p.reportDepth()
		return nil
	default:
	}

	timer := time.NewTimer(p.enqueueTimeout)
	defer timer.Stop()
	select {
	case p.workCh <- task:
		p.reportDepth()
		return nil
	case <-timer.C:
		return fmt.Errorf("%d tasks waiting: %w", len(p.workCh), common.ErrQueueFull)
	case <-p.done:
		return errPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitWait blocks until the task is queued, the pool stops or ctx is done.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	select {
	case p.workCh <- task:
		p.reportDepth()
		return nil
	case <-p.done:
		return errPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting work and waits for running tasks. Queued tasks are dropped.
func (p *Pool) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		if n := len(p.workCh); n > 0 {
			logger.Warn(context.Background(), "dropping queued grading tasks", zap.Int("count", n))
		}
	})
}

func (p *Pool) Pending() int {
	return len(p.workCh)
}

func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

var errPoolClosed = fmt.Errorf("worker pool is shut down: %w", common.ErrServiceUnavailable)

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		// Prefer stopping over picking up more work.
		select {
		case <-p.done:
			return
		default:
		}
		select {
		case task := <-p.workCh:
			p.run(task)
		case <-p.done:
			return
		}
	}
}

func (p *Pool) run(task Task) {
	metrics.SetPoolBusy(int(p.busy.Add(1)))
	p.reportDepth()
	defer func() {
		metrics.SetPoolBusy(int(p.busy.Add(-1)))
		if r := recover(); r != nil {
			logger.Error(context.Background(), "grading task panicked",
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()
	task(context.Background())
}

func (p *Pool) reportDepth() {
	metrics.SetPoolQueueDepth(len(p.workCh))
}
