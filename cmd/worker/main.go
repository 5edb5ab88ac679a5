package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contest_judge/internal/app/bootstrap"
	"contest_judge/internal/app/service"
	"contest_judge/internal/app/worker"
	"contest_judge/internal/platform/config"
	"contest_judge/internal/platform/logger"
	"contest_judge/internal/platform/queue"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// The worker grades submissions pushed to the Redis queue by API servers running with
// QUEUE_BACKEND=redis. Any number of workers may share one queue.
func main() {
	if err := run(); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStorage, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	rdb, q, err := bootstrap.ConnectQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer queue.CloseRedis()

	grader, _, err := bootstrap.NewHarness(ctx, cfg)
	if err != nil {
		return err
	}
	grading := service.NewGradingService(stores.Submissions, stores.Problems, grader)

	// Ids dropped by a previous shutdown are still PENDING in storage; push them again.
	if err := grading.ReschedulePending(ctx, worker.NewQueueScheduler(q)); err != nil {
		logger.Error(ctx, "submission recovery failed", zap.Error(err))
	}

	pool := worker.NewPool(worker.PoolConfig{
		Workers:        cfg.JudgeWorkers,
		QueueSize:      cfg.JudgeQueueSize,
		EnqueueTimeout: cfg.EnqueueTimeout(),
	})
	pool.Start()
	defer pool.Shutdown()

	consumer := worker.NewQueueConsumer(rdb, q, pool, grading, worker.ConsumerConfig{
		LockPrefix: cfg.GradingLockPrefix,
		LockTTL:    cfg.GradingLockTTL(),
	})

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		logger.Info(gctx, "metrics endpoint starting", zap.String("port", cfg.MetricsPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(context.Background(), "worker stopped")
	return nil
}
