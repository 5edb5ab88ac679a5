package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"contest_judge/internal/common"
	"contest_judge/internal/domain/model"
)

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, contest_id, problem_id, username, code, language, status, error_message,
	test_cases_passed, total_test_cases, submitted_at, processed_at`

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, s *model.Submission) error {
	query := `INSERT INTO submissions (` + submissionColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.ContestID, s.ProblemID, s.Username, s.Code, s.Language,
		string(s.Status), s.ErrorMessage, s.TestCasesPassed, s.TotalTestCases, s.SubmittedAt, s.ProcessedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("submission %s already exists: %w", s.ID, common.ErrConflict)
		}
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) FindSubmission(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	s, err := scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.FindSubmission: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) UpdateSubmission(ctx context.Context, s *model.Submission) error {
	query := `UPDATE submissions SET
	            status = $1, error_message = $2, test_cases_passed = $3,
	            total_test_cases = $4, processed_at = $5
	          WHERE id = $6 AND status IN ('PENDING', 'RUNNING')`
	res, err := r.db.ExecContext(ctx, query, string(s.Status), s.ErrorMessage, s.TestCasesPassed,
		s.TotalTestCases, s.ProcessedAt, s.ID)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.UpdateSubmission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.UpdateSubmission: %w", err)
	}
	if n == 1 {
		return nil
	}
	// Nothing updated: either the id is unknown or the record is already final.
	if _, err := r.FindSubmission(ctx, s.ID); err != nil {
		return err
	}
	return fmt.Errorf("submission %s is already graded: %w", s.ID, common.ErrConflict)
}

func (r *pgSubmissionRepository) MarkRunning(ctx context.Context, id string) (bool, error) {
	query := `UPDATE submissions SET status = $1 WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, string(model.StatusRunning), id, string(model.StatusPending))
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.MarkRunning: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.MarkRunning: %w", err)
	}
	return n == 1, nil
}

func (r *pgSubmissionRepository) ListSubmissions(ctx context.Context, contestID string) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
	          WHERE contest_id = $1 ORDER BY submitted_at DESC, id`
	return r.list(ctx, "ListSubmissions", query, contestID)
}

func (r *pgSubmissionRepository) ListSubmissionsByStatus(ctx context.Context, status model.SubmissionStatus, after SubmissionCursor, limit int) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
	          WHERE status = $1 AND (submitted_at, id) > ($2, $3)
	          ORDER BY submitted_at, id LIMIT $4`
	return r.list(ctx, "ListSubmissionsByStatus", query, string(status), after.SubmittedAt, after.ID, limit)
}

func (r *pgSubmissionRepository) list(ctx context.Context, op, query string, args ...any) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.%s: %w", op, err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.%s scan: %w", op, err)
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.%s rows: %w", op, err)
	}
	return subs, nil
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	s := &model.Submission{}
	var errMsg sql.NullString
	var processed sql.NullTime
	err := row.Scan(&s.ID, &s.ContestID, &s.ProblemID, &s.Username, &s.Code, &s.Language, &s.Status,
		&errMsg, &s.TestCasesPassed, &s.TotalTestCases, &s.SubmittedAt, &processed)
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		s.ErrorMessage = &errMsg.String
	}
	s.ProcessedAt = nullTime(processed)
	return s, nil
}
