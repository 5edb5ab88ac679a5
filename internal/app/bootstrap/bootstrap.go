// Package bootstrap builds the components shared by the API server and the grading worker.
package bootstrap

import (
	"context"
	"fmt"

	"contest_judge/internal/app/executor"
	"contest_judge/internal/app/harness"
	"contest_judge/internal/domain/repository"
	"contest_judge/internal/platform/config"
	"contest_judge/internal/platform/database"
	"contest_judge/internal/platform/logger"
	"contest_judge/internal/platform/queue"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Stores struct {
	Contests    repository.ContestRepository
	Problems    repository.ProblemRepository
	Submissions repository.SubmissionRepository
	Users       repository.UserRepository
}

// OpenStorage connects the configured backend. The returned func releases it.
func OpenStorage(ctx context.Context, cfg *config.Config) (Stores, func(), error) {
	if cfg.StorageBackend == config.StorageBackendMemory {
		logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		m := repository.NewMemoryStore()
		return Stores{Contests: m, Problems: m, Submissions: m, Users: m}, func() {}, nil
	}

	db, err := database.Connect(ctx, cfg.DBConnStr)
	if err != nil {
		return Stores{}, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		database.Close()
		return Stores{}, nil, err
	}
	return Stores{
		Contests:    repository.NewPgContestRepository(db),
		Problems:    repository.NewPgProblemRepository(db),
		Submissions: repository.NewPgSubmissionRepository(db),
		Users:       repository.NewPgUserRepository(db),
	}, database.Close, nil
}

// NewHarness picks the execution backend and wraps it in the grading harness.
func NewHarness(ctx context.Context, cfg *config.Config) (*harness.Harness, *executor.Table, error) {
	table, err := executor.DefaultTable(cfg.JudgeDefaultLanguage)
	if err != nil {
		return nil, nil, fmt.Errorf("language table: %w", err)
	}

	var exec executor.Executor
	switch cfg.ExecutionServiceType {
	case config.ExecutionServiceLocal:
		logger.Warn(ctx, "using local executor, submissions run unsandboxed on this host")
		exec = executor.NewLocalExecutor("")
	default:
		exec, err = executor.NewDockerExecutor(executor.DockerConfig{
			Binary:       cfg.DockerBinary,
			Image:        cfg.DockerImageName,
			MemoryLimit:  cfg.DockerMemoryLimit,
			CPUs:         cfg.DockerCPUs,
			StartupGrace: cfg.DockerStartupGrace(),
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info(ctx, "using docker executor", zap.String("image", cfg.DockerImageName))
	}

	policy := harness.LimitsPolicy{MaxTime: cfg.MaxExecutionTime()}
	return harness.New(exec, table, policy), table, nil
}

// ConnectQueue opens Redis and returns the grading queue on it.
func ConnectQueue(ctx context.Context, cfg *config.Config) (*redis.Client, *queue.RedisQueue, error) {
	rdb, err := queue.ConnectRedis(ctx, queue.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	return rdb, queue.NewRedisQueue(rdb, cfg.GradingQueueName), nil
}
