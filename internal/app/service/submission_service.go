package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contest_judge/internal/app/executor"
	"contest_judge/internal/common"
	"contest_judge/internal/domain/model"
	"contest_judge/internal/domain/repository"
	"contest_judge/internal/platform/logger"
	"contest_judge/internal/platform/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SubmissionService struct {
	contestRepo       repository.ContestRepository
	problemRepo       repository.ProblemRepository
	submissionRepo    repository.SubmissionRepository
	scheduler         Scheduler
	languages         *executor.Table
	rejectUnknownLang bool
	now               func() time.Time
}

type SubmissionOptions struct {
	RejectUnknownLanguage bool
}

func NewSubmissionService(
	contestRepo repository.ContestRepository,
	problemRepo repository.ProblemRepository,
	submissionRepo repository.SubmissionRepository,
	scheduler Scheduler,
	languages *executor.Table,
	opts SubmissionOptions,
) *SubmissionService {
	return &SubmissionService{
		contestRepo:       contestRepo,
		problemRepo:       problemRepo,
		submissionRepo:    submissionRepo,
		scheduler:         scheduler,
		languages:         languages,
		rejectUnknownLang: opts.RejectUnknownLanguage,
		now:               time.Now,
	}
}

type SubmitRequest struct {
	ContestID string `json:"contest_id"`
	ProblemID string `json:"problem_id"`
	Username  string `json:"username"`
	Code      string `json:"code"`
	Language  string `json:"language"`
}

// Submit stores a PENDING submission and schedules it. It never waits for grading.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*model.Submission, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, fmt.Errorf("username is required: %w", common.ErrValidation)
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("code is required: %w", common.ErrValidation)
	}

	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if lang == "" {
		lang = s.languages.DefaultLanguage()
	} else if p, ok := s.languages.Lookup(lang); ok {
		lang = p.Language
	} else if s.rejectUnknownLang {
		return nil, fmt.Errorf("unsupported language %q: %w", req.Language, common.ErrValidation)
	}

	if _, err := s.contestRepo.FindContest(ctx, req.ContestID); err != nil {
		return nil, fmt.Errorf("contest %s: %w", req.ContestID, err)
	}
	problem, err := s.problemRepo.FindProblem(ctx, req.ProblemID)
	if err != nil {
		return nil, fmt.Errorf("problem %s: %w", req.ProblemID, err)
	}
	if problem.ContestID != req.ContestID {
		return nil, fmt.Errorf("problem %s is not part of contest %s: %w", req.ProblemID, req.ContestID, common.ErrNotFound)
	}

	sub := &model.Submission{
		ID:             uuid.NewString(),
		ContestID:      req.ContestID,
		ProblemID:      problem.ID,
		Username:       req.Username,
		Code:           req.Code,
		Language:       lang,
		Status:         model.StatusPending,
		TotalTestCases: len(problem.InputTestCases),
		SubmittedAt:    s.now().UTC(),
	}
	if err := s.submissionRepo.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	metrics.SubmissionCreated()
	logger.Info(ctx, "submission created",
		zap.String("submission_id", sub.ID),
		zap.String("problem_id", sub.ProblemID),
		zap.String("username", sub.Username),
		zap.String("language", sub.Language))

	if err := s.scheduler.Schedule(ctx, sub.ID); err != nil {
		metrics.ScheduleFailed()
		logger.Error(ctx, "failed to schedule submission", zap.String("submission_id", sub.ID), zap.Error(err))
		sub.Fail(infrastructureFailure(err), s.now().UTC())
		if uerr := s.submissionRepo.UpdateSubmission(context.WithoutCancel(ctx), sub); uerr != nil {
			logger.Error(ctx, "failed to record scheduling failure", zap.String("submission_id", sub.ID), zap.Error(uerr))
		}
		return nil, fmt.Errorf("submission %s could not be scheduled: %w: %w", sub.ID, common.ErrServiceUnavailable, err)
	}
	return sub, nil
}

func (s *SubmissionService) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := s.submissionRepo.FindSubmission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("submission %s: %w", id, err)
	}
	return sub, nil
}

// ListContestSubmissions returns a contest's submissions newest first. A non-empty username
// narrows the list to that user.
func (s *SubmissionService) ListContestSubmissions(ctx context.Context, contestID, username string) ([]model.Submission, error) {
	if _, err := s.contestRepo.FindContest(ctx, contestID); err != nil {
		return nil, fmt.Errorf("contest %s: %w", contestID, err)
	}
	subs, err := s.submissionRepo.ListSubmissions(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if username == "" {
		return subs, nil
	}
	mine := subs[:0]
	for _, sub := range subs {
		if sub.Username == username {
			mine = append(mine, sub)
		}
	}
	return mine, nil
}

var errGradingInterrupted = errors.New("grading interrupted")
