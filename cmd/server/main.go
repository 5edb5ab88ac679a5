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

	"contest_judge/internal/api"
	"contest_judge/internal/app/bootstrap"
	"contest_judge/internal/app/service"
	"contest_judge/internal/app/worker"
	"contest_judge/internal/common/security"
	"contest_judge/internal/platform/config"
	"contest_judge/internal/platform/logger"
	"contest_judge/internal/platform/queue"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	// 1. Configuration and logging
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

	security.InitJWT(string(cfg.JWTKey), cfg.JWTExp)

	// 2. Storage
	stores, closeStorage, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	// 3. Grading
	grader, table, err := bootstrap.NewHarness(ctx, cfg)
	if err != nil {
		return err
	}
	grading := service.NewGradingService(stores.Submissions, stores.Problems, grader)

	// Registered before the pool so in-flight tasks can still release their locks.
	defer queue.CloseRedis()

	pool := worker.NewPool(worker.PoolConfig{
		Workers:        cfg.JudgeWorkers,
		QueueSize:      cfg.JudgeQueueSize,
		EnqueueTimeout: cfg.EnqueueTimeout(),
	})
	pool.Start()
	defer pool.Shutdown()

	var (
		scheduler service.Scheduler
		consumer  *worker.QueueConsumer
	)
	switch cfg.QueueBackend {
	case config.QueueBackendRedis:
		rdb, q, err := bootstrap.ConnectQueue(ctx, cfg)
		if err != nil {
			return err
		}
		scheduler = worker.NewQueueScheduler(q)
		consumer = worker.NewQueueConsumer(rdb, q, pool, grading, worker.ConsumerConfig{
			LockPrefix: cfg.GradingLockPrefix,
			LockTTL:    cfg.GradingLockTTL(),
		})
		logger.Info(ctx, "grading through shared queue", zap.String("queue", q.Name()))
	default:
		scheduler = worker.NewPoolScheduler(pool, grading)
		logger.Info(ctx, "grading in process", zap.Int("workers", cfg.JudgeWorkers))
	}

	// 4. Services
	contests := service.NewContestService(stores.Contests, stores.Problems)
	services := api.Services{
		Auth:    service.NewAuthService(stores.Users, stores.Contests),
		Contest: contests,
		Submission: service.NewSubmissionService(stores.Contests, stores.Problems, stores.Submissions, scheduler, table,
			service.SubmissionOptions{RejectUnknownLanguage: cfg.JudgeRejectUnknownLanguage}),
		Leaderboard: service.NewLeaderboardService(stores.Contests, stores.Submissions),
	}

	if cfg.SeedDemoData {
		if err := contests.SeedDemo(ctx); err != nil {
			return err
		}
	}
	// Only a lone in-process grader may assume every RUNNING row is orphaned. This must finish
	// before the pool can claim new submissions.
	if consumer == nil {
		if err := grading.InterruptRunning(ctx); err != nil {
			logger.Error(ctx, "finalizing interrupted submissions failed", zap.Error(err))
		}
	}

	// 5. HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      api.NewRouter(services),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	// A backlog may exceed the pool queue, so rescheduling waits for capacity off the startup path.
	g.Go(func() error {
		if err := grading.ReschedulePending(gctx, scheduler); err != nil && gctx.Err() == nil {
			logger.Error(gctx, "rescheduling pending submissions failed", zap.Error(err))
		}
		return nil
	})
	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}
	g.Go(func() error {
		logger.Info(gctx, "server starting", zap.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(context.Background(), "server stopped")
	return nil
}
