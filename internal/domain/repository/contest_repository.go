package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contest_judge/internal/common"
	"contest_judge/internal/domain/model"
)

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func (r *pgContestRepository) CreateContest(ctx context.Context, c *model.Contest) error {
	query := `INSERT INTO contests (id, name, description, start_time, end_time, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.Description, c.StartTime, c.EndTime, c.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("contest %s already exists: %w", c.ID, common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.CreateContest: %w", err)
	}
	return nil
}

func (r *pgContestRepository) FindContest(ctx context.Context, id string) (*model.Contest, error) {
	query := `SELECT id, name, description, start_time, end_time, created_at
	          FROM contests WHERE id = $1`
	c := &model.Contest{}
	var start, end sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &start, &end, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContest: %w", err)
	}
	c.StartTime = nullTime(start)
	c.EndTime = nullTime(end)
	return c, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
