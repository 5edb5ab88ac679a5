package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"contest_judge/internal/common"
	"contest_judge/internal/platform/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestPoolRunsTasks(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 3, QueueSize: 10, EnqueueTimeout: time.Second})
	pool.Start()
	defer pool.Shutdown()

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if err := pool.Submit(context.Background(), func(context.Context) {
			defer wg.Done()
			ran.Add(1)
		}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
	if ran.Load() != 10 {
		t.Errorf("ran %d tasks", ran.Load())
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 2, QueueSize: 8, EnqueueTimeout: time.Second})
	pool.Start()
	defer pool.Shutdown()

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		pool.Submit(context.Background(), func(context.Context) {
			defer wg.Done()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		})
	}
	wg.Wait()
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d exceeds 2 workers", peak.Load())
	}
}

func TestPoolRejectsWhenSaturated(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 1, EnqueueTimeout: 20 * time.Millisecond})
	pool.Start()
	release := make(chan struct{})
	started := make(chan struct{})
	defer func() {
		close(release)
		pool.Shutdown()
	}()

	block := func(context.Context) { <-release }
	if err := pool.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		block(ctx)
	}); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := pool.Submit(context.Background(), block); err != nil {
		t.Fatalf("queue slot should be free: %v", err)
	}
	err := pool.Submit(context.Background(), block)
	if !errors.Is(err, common.ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if pool.Pending() != 1 || pool.Busy() != 1 {
		t.Errorf("pending=%d busy=%d", pool.Pending(), pool.Busy())
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 2, EnqueueTimeout: time.Second})
	pool.Start()
	defer pool.Shutdown()

	pool.Submit(context.Background(), func(context.Context) { panic("boom") })
	done := make(chan struct{})
	pool.Submit(context.Background(), func(context.Context) { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after a panic")
	}
}

func TestPoolShutdown(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 1})
	pool.Start()

	var finished atomic.Bool
	started := make(chan struct{})
	pool.Submit(context.Background(), func(context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})
	<-started
	pool.Shutdown()
	if !finished.Load() {
		t.Error("Shutdown returned before the running task finished")
	}
	if err := pool.Submit(context.Background(), func(context.Context) {}); !errors.Is(err, common.ErrServiceUnavailable) {
		t.Errorf("Submit after Shutdown err = %v", err)
	}
}

type recordingProcessor struct {
	mu   sync.Mutex
	ids  []string
	seen chan string
	err  error
	gate chan struct{} // when set, Process waits for it to close
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{seen: make(chan string, 16)}
}

func (p *recordingProcessor) Process(ctx context.Context, id string) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	p.ids = append(p.ids, id)
	p.mu.Unlock()
	p.seen <- id
	return p.err
}

func TestPoolScheduler(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 4, EnqueueTimeout: time.Second})
	pool.Start()
	defer pool.Shutdown()
	proc := newRecordingProcessor()
	proc.err = errors.New("logged, not returned")

	if err := NewPoolScheduler(pool, proc).Schedule(context.Background(), "S1"); err != nil {
		t.Fatal(err)
	}
	select {
	case id := <-proc.seen:
		if id != "S1" {
			t.Errorf("processed %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submission never processed")
	}
}

func TestPoolSchedulerWaitsForRoom(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 1, EnqueueTimeout: 10 * time.Millisecond})
	pool.Start()
	defer pool.Shutdown()
	proc := newRecordingProcessor()
	proc.gate = make(chan struct{})
	sched := NewPoolScheduler(pool, proc)
	ctx := context.Background()

	if err := sched.Schedule(ctx, "S1"); err != nil {
		t.Fatal(err)
	}
	// S1 must be running, not queued, before S2 can take the only slot.
	deadline := time.Now().Add(2 * time.Second)
	for pool.Busy() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("S1 never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := sched.Schedule(ctx, "S2"); err != nil {
		t.Fatal(err)
	}
	if err := sched.Schedule(ctx, "S3"); !errors.Is(err, common.ErrQueueFull) {
		t.Fatalf("Schedule on a full pool err = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sched.ScheduleWait(ctx, "S3") }()
	select {
	case err := <-done:
		t.Fatalf("ScheduleWait returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(proc.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-proc.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 3 submissions processed", i)
		}
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestQueueSchedulerPushes(t *testing.T) {
	mr, rdb := newTestRedis(t)
	q := queue.NewRedisQueue(rdb, "grading_queue")
	if err := NewQueueScheduler(q).Schedule(context.Background(), "S1"); err != nil {
		t.Fatal(err)
	}
	list, err := mr.List("grading_queue")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0] != "S1" {
		t.Errorf("queue = %v", list)
	}
}

func TestQueueConsumerProcessesAndReleasesLocks(t *testing.T) {
	mr, rdb := newTestRedis(t)
	q := queue.NewRedisQueue(rdb, "grading_queue")
	pool := NewPool(PoolConfig{Workers: 2, QueueSize: 4, EnqueueTimeout: time.Second})
	pool.Start()
	defer pool.Shutdown()

	proc := newRecordingProcessor()
	consumer := NewQueueConsumer(rdb, q, pool, proc, ConsumerConfig{
		LockPrefix:  "grading_lock:",
		LockTTL:     time.Minute,
		PollTimeout: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run(ctx) }()

	for _, id := range []string{"S1", "S2"} {
		if err := q.Push(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}
	got := map[string]bool{}
	for len(got) < 2 {
		select {
		case id := <-proc.seen:
			got[id] = true
		case <-time.After(3 * time.Second):
			t.Fatalf("processed only %v", got)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop")
	}
	pool.Shutdown()
	for _, key := range []string{"grading_lock:S1", "grading_lock:S2"} {
		if mr.Exists(key) {
			t.Errorf("%s still held", key)
		}
	}
}

func TestQueueConsumerSkipsLockedSubmission(t *testing.T) {
	mr, rdb := newTestRedis(t)
	q := queue.NewRedisQueue(rdb, "grading_queue")
	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 1, EnqueueTimeout: time.Second})
	pool.Start()
	defer pool.Shutdown()

	mr.Set("grading_lock:S1", "someone-else")
	proc := newRecordingProcessor()
	consumer := NewQueueConsumer(rdb, q, pool, proc, ConsumerConfig{LockPrefix: "grading_lock:", LockTTL: time.Minute})

	consumer.lockedTask("S1")(context.Background())
	consumer.lockedTask("S2")(context.Background())

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.ids) != 1 || proc.ids[0] != "S2" {
		t.Errorf("processed %v, want only S2", proc.ids)
	}
	if v, _ := mr.Get("grading_lock:S1"); v != "someone-else" {
		t.Errorf("foreign lock was touched: %q", v)
	}
}
