package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contest_judge/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// ConnectRedis creates the client, pings it and stores it in RDB.
func ConnectRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", opts.Addr, err)
	}
	RDB = rdb
	logger.Info(ctx, "connected to Redis", zap.String("addr", opts.Addr))
	return rdb, nil
}

func CloseRedis() {
	if RDB == nil {
		return
	}
	if err := RDB.Close(); err != nil {
		logger.Warn(context.Background(), "closing Redis", zap.Error(err))
		return
	}
	logger.Info(context.Background(), "Redis connection closed")
}

// RedisQueue is a FIFO of ids on a Redis list: LPUSH in, BRPOP out.
type RedisQueue struct {
	rdb  *redis.Client
	name string
}

func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: name}
}

func (q *RedisQueue) Name() string {
	return q.name
}

func (q *RedisQueue) Push(ctx context.Context, id string) error {
	if err := q.rdb.LPush(ctx, q.name, id).Err(); err != nil {
		return fmt.Errorf("push %s onto %s: %w", id, q.name, err)
	}
	return nil
}

// Pop waits up to timeout for an id. It returns "" and no error when the wait expires.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("pop from %s: %w", q.name, err)
	}
	// res is [queueName, value]
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}

// Requeue puts id back at the consuming end so it is popped next.
func (q *RedisQueue) Requeue(ctx context.Context, id string) error {
	if err := q.rdb.RPush(ctx, q.name, id).Err(); err != nil {
		return fmt.Errorf("requeue %s onto %s: %w", id, q.name, err)
	}
	return nil
}
