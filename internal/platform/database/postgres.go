package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"contest_judge/internal/platform/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"go.uber.org/zap"
)

var DB *sql.DB

// Connect opens the pool, verifies it with a ping and stores it in DB.
func Connect(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	DB = db
	logger.Info(ctx, "connected to PostgreSQL")
	return db, nil
}

func Close() {
	if DB == nil {
		return
	}
	if err := DB.Close(); err != nil {
		logger.Warn(context.Background(), "closing database", zap.Error(err))
		return
	}
	logger.Info(context.Background(), "database connection closed")
}
