package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"contest_judge/internal/common"
	"contest_judge/internal/domain/model"
)

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (username, display_name, hashed_password, role, created_at)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, user.Username, user.DisplayName, user.HashedPassword, user.Role, user.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given username already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.CreateUser: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT username, display_name, hashed_password, role, created_at
	          FROM users WHERE username = $1`
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.Username, &user.DisplayName, &user.HashedPassword, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByUsername: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT contest_id FROM contest_participants WHERE username = $1 ORDER BY joined_at`, username)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindByUsername contests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var contestID string
		if err := rows.Scan(&contestID); err != nil {
			return nil, fmt.Errorf("pgUserRepository.FindByUsername scan: %w", err)
		}
		user.JoinedContests = append(user.JoinedContests, contestID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindByUsername rows: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) JoinContest(ctx context.Context, username, contestID string) (bool, error) {
	query := `INSERT INTO contest_participants (contest_id, username) VALUES ($1, $2)
	          ON CONFLICT (contest_id, username) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, contestID, username)
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.JoinContest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.JoinContest: %w", err)
	}
	return n == 1, nil
}
