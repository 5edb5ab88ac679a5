package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"contest_judge/internal/common"
	"contest_judge/internal/domain/model"
)

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

const problemColumns = `id, contest_id, title, description, input_test_cases, expected_outputs,
	time_limit_seconds, memory_limit_mb, created_at`

func (r *pgProblemRepository) CreateProblem(ctx context.Context, p *model.Problem) error {
	inputs, err := json.Marshal(nonNil(p.InputTestCases))
	if err != nil {
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	outputs, err := json.Marshal(nonNil(p.ExpectedOutputs))
	if err != nil {
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}

	query := `INSERT INTO problems (` + problemColumns + `)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9)`
	_, err = r.db.ExecContext(ctx, query, p.ID, p.ContestID, p.Title, p.Description,
		string(inputs), string(outputs), p.TimeLimitSeconds, p.MemoryLimitMB, p.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("problem %s already exists: %w", p.ID, common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) FindProblem(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems WHERE id = $1`
	p, err := scanProblem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblem: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) ListProblemsByContest(ctx context.Context, contestID string) ([]model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems WHERE contest_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListProblemsByContest: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListProblemsByContest scan: %w", err)
		}
		problems = append(problems, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListProblemsByContest rows: %w", err)
	}
	return problems, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProblem(row rowScanner) (*model.Problem, error) {
	p := &model.Problem{}
	var inputs, outputs []byte
	err := row.Scan(&p.ID, &p.ContestID, &p.Title, &p.Description, &inputs, &outputs,
		&p.TimeLimitSeconds, &p.MemoryLimitMB, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(inputs, &p.InputTestCases); err != nil {
		return nil, fmt.Errorf("decode input test cases of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(outputs, &p.ExpectedOutputs); err != nil {
		return nil, fmt.Errorf("decode expected outputs of %s: %w", p.ID, err)
	}
	return p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
