package repository

import (
	"context"
	"time"

	"contest_judge/internal/domain/model"
)

type ContestRepository interface {
	CreateContest(ctx context.Context, contest *model.Contest) error
	FindContest(ctx context.Context, id string) (*model.Contest, error)
}

type ProblemRepository interface {
	CreateProblem(ctx context.Context, problem *model.Problem) error
	FindProblem(ctx context.Context, id string) (*model.Problem, error)
	ListProblemsByContest(ctx context.Context, contestID string) ([]model.Problem, error)
}

// SubmissionRepository stores submissions. Status only moves forward: MarkRunning claims a
// PENDING record and UpdateSubmission refuses to overwrite a terminal one.
type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	FindSubmission(ctx context.Context, id string) (*model.Submission, error)
	// UpdateSubmission replaces the mutable fields. Returns common.ErrConflict when the stored
	// record is already terminal.
	UpdateSubmission(ctx context.Context, sub *model.Submission) error
	// MarkRunning moves a PENDING submission to RUNNING and reports whether this call did it.
	MarkRunning(ctx context.Context, id string) (bool, error)
	// ListSubmissions returns a contest's submissions, newest first.
	ListSubmissions(ctx context.Context, contestID string) ([]model.Submission, error)
	// ListSubmissionsByStatus pages through submissions in (submitted_at, id) order, starting
	// strictly after the cursor. The zero cursor starts from the oldest.
	ListSubmissionsByStatus(ctx context.Context, status model.SubmissionStatus, after SubmissionCursor, limit int) ([]model.Submission, error)
}

// SubmissionCursor is the position of the last submission of a page.
type SubmissionCursor struct {
	SubmittedAt time.Time
	ID          string
}

// CursorOf returns the cursor positioned on sub.
func CursorOf(sub *model.Submission) SubmissionCursor {
	return SubmissionCursor{SubmittedAt: sub.SubmittedAt, ID: sub.ID}
}

// covers reports whether sub sorts at or before the cursor.
func (c SubmissionCursor) covers(sub *model.Submission) bool {
	if !sub.SubmittedAt.Equal(c.SubmittedAt) {
		return sub.SubmittedAt.Before(c.SubmittedAt)
	}
	return sub.ID <= c.ID
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// JoinContest records membership and reports false when the user had already joined.
	JoinContest(ctx context.Context, username, contestID string) (bool, error)
}
