package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contest_judge/internal/common"
	"contest_judge/internal/domain/model"
	"contest_judge/internal/domain/repository"
	"contest_judge/internal/platform/logger"
	"contest_judge/internal/platform/metrics"

	"go.uber.org/zap"
)

// Grader produces a verdict for one submission. Errors are infrastructure failures.
type Grader interface {
	Grade(ctx context.Context, sub *model.Submission, problem *model.Problem) (*model.ExecutionResult, error)
}

const recoverBatchSize = 500

// GradingService owns the PENDING -> RUNNING -> verdict transitions.
type GradingService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	grader         Grader
	now            func() time.Time
}

func NewGradingService(submissionRepo repository.SubmissionRepository, problemRepo repository.ProblemRepository, grader Grader) *GradingService {
	return &GradingService{
		submissionRepo: submissionRepo,
		problemRepo:    problemRepo,
		grader:         grader,
		now:            time.Now,
	}
}

// Process grades a submission at most once: only the caller that moves it out of PENDING
// does any work; duplicate deliveries return nil without side effects.
func (s *GradingService) Process(ctx context.Context, submissionID string) (err error) {
	claimed, err := s.submissionRepo.MarkRunning(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("claim submission %s: %w", submissionID, err)
	}
	if !claimed {
		logger.Info(ctx, "submission already claimed", zap.String("submission_id", submissionID))
		return nil
	}
	logger.Info(ctx, "grading submission", zap.String("submission_id", submissionID))

	start := s.now()
	sub, err := s.submissionRepo.FindSubmission(ctx, submissionID)
	if err != nil {
		return s.fail(ctx, &model.Submission{ID: submissionID}, start, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = s.fail(ctx, sub, start, fmt.Errorf("panic: %v", r))
		}
	}()

	problem, err := s.problemRepo.FindProblem(ctx, sub.ProblemID)
	if err != nil {
		return s.fail(ctx, sub, start, fmt.Errorf("load problem %s: %w", sub.ProblemID, err))
	}
	res, err := s.grader.Grade(ctx, sub, problem)
	if err != nil {
		return s.fail(ctx, sub, start, err)
	}

	sub.ApplyResult(res, s.now().UTC())
	if err := s.submissionRepo.UpdateSubmission(context.WithoutCancel(ctx), sub); err != nil {
		return fmt.Errorf("store verdict of %s: %w", sub.ID, err)
	}
	metrics.ObserveVerdict(string(sub.Status), s.now().Sub(start))
	logger.Info(ctx, "submission graded",
		zap.String("submission_id", sub.ID),
		zap.String("status", string(sub.Status)),
		zap.Int("passed", sub.TestCasesPassed),
		zap.Int("total", sub.TotalTestCases))
	return nil
}

// fail records an infrastructure failure as RUNTIME_ERROR so nothing stays RUNNING. The
// returned error carries the cause for the caller's logs.
func (s *GradingService) fail(ctx context.Context, sub *model.Submission, start time.Time, cause error) error {
	logger.Error(ctx, "grading infrastructure failure", zap.String("submission_id", sub.ID), zap.Error(cause))

	// The stored record is the source of truth for everything except the verdict.
	if stored, err := s.submissionRepo.FindSubmission(context.WithoutCancel(ctx), sub.ID); err == nil {
		sub = stored
	}
	sub.Fail(infrastructureFailure(cause), s.now().UTC())
	if err := s.submissionRepo.UpdateSubmission(context.WithoutCancel(ctx), sub); err != nil {
		return fmt.Errorf("grading %s: %w (and recording the failure: %v)", sub.ID, cause, err)
	}
	metrics.ObserveVerdict(string(sub.Status), s.now().Sub(start))
	return fmt.Errorf("grading %s: %w", sub.ID, cause)
}

// Recover repairs state left by a crashed process: PENDING submissions are scheduled again.
// With interruptRunning, RUNNING ones are finalized as failures first; only pass it when this
// process is the sole grader, otherwise another worker may still own them.
func (s *GradingService) Recover(ctx context.Context, scheduler Scheduler, interruptRunning bool) error {
	if interruptRunning {
		if err := s.InterruptRunning(ctx); err != nil {
			return err
		}
	}
	return s.ReschedulePending(ctx, scheduler)
}

// InterruptRunning finalizes every RUNNING submission as an interrupted grading.
func (s *GradingService) InterruptRunning(ctx context.Context) error {
	n := 0
	err := s.eachWithStatus(ctx, model.StatusRunning, time.Time{}, func(sub *model.Submission) error {
		sub.Fail(infrastructureFailure(errGradingInterrupted), s.now().UTC())
		if err := s.submissionRepo.UpdateSubmission(ctx, sub); err != nil && !errors.Is(err, common.ErrConflict) {
			return fmt.Errorf("finalize interrupted submission %s: %w", sub.ID, err)
		}
		logger.Warn(ctx, "finalized interrupted submission", zap.String("submission_id", sub.ID))
		n++
		return nil
	})
	if n > 0 {
		logger.Info(ctx, "interrupted submissions finalized", zap.Int("count", n))
	}
	return err
}

// ReschedulePending schedules every submission that was PENDING when the call started. A
// WaitScheduler is waited on rather than overrun. Rows that still cannot be scheduled are
// logged and skipped so one failure does not strand the rest.
func (s *GradingService) ReschedulePending(ctx context.Context, scheduler Scheduler) error {
	schedule := scheduler.Schedule
	if ws, ok := scheduler.(WaitScheduler); ok {
		schedule = ws.ScheduleWait
	}

	var (
		rescheduled, failed int
		firstErr            error
	)
	err := s.eachWithStatus(ctx, model.StatusPending, s.now(), func(sub *model.Submission) error {
		if err := schedule(ctx, sub.ID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error(ctx, "failed to reschedule submission", zap.String("submission_id", sub.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			failed++
			return nil
		}
		rescheduled++
		return nil
	})
	if rescheduled+failed > 0 {
		logger.Info(ctx, "pending submissions rescheduled", zap.Int("rescheduled", rescheduled), zap.Int("failed", failed))
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d submissions could not be rescheduled: %w", failed, firstErr)
	}
	return nil
}

// eachWithStatus walks submissions with the given status in submission order, a page at a time.
// A non-zero cutoff stops the walk at rows submitted after it.
func (s *GradingService) eachWithStatus(ctx context.Context, status model.SubmissionStatus, cutoff time.Time, fn func(*model.Submission) error) error {
	cursor := repository.SubmissionCursor{}
	for {
		page, err := s.submissionRepo.ListSubmissionsByStatus(ctx, status, cursor, recoverBatchSize)
		if err != nil {
			return fmt.Errorf("list %s submissions: %w", status, err)
		}
		for i := range page {
			sub := &page[i]
			if !cutoff.IsZero() && sub.SubmittedAt.After(cutoff) {
				return nil
			}
			if err := fn(sub); err != nil {
				return err
			}
		}
		if len(page) < recoverBatchSize {
			return nil
		}
		cursor = repository.CursorOf(&page[len(page)-1])
	}
}
