package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contest_judge/internal/common"
	"contest_judge/internal/domain/model"
	"contest_judge/internal/domain/repository"
	"contest_judge/internal/platform/logger"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

type ContestService struct {
	contestRepo repository.ContestRepository
	problemRepo repository.ProblemRepository
	now         func() time.Time
}

func NewContestService(contestRepo repository.ContestRepository, problemRepo repository.ProblemRepository) *ContestService {
	return &ContestService{contestRepo: contestRepo, problemRepo: problemRepo, now: time.Now}
}

type CreateContestRequest struct {
	ID          string     `json:"contest_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
}

type CreateProblemRequest struct {
	ID               string   `json:"problem_id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	InputTestCases   []string `json:"input_test_cases"`
	ExpectedOutputs  []string `json:"expected_outputs"`
	TimeLimitSeconds int      `json:"time_limit_seconds"`
	MemoryLimitMB    int      `json:"memory_limit_mb"`
}

// GetContest returns the contest with public views of its problems.
func (s *ContestService) GetContest(ctx context.Context, id string) (*model.Contest, error) {
	contest, err := s.contestRepo.FindContest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("contest %s: %w", id, err)
	}
	views, err := s.problemViews(ctx, id)
	if err != nil {
		return nil, err
	}
	contest.Problems = views
	return contest, nil
}

func (s *ContestService) ListProblems(ctx context.Context, contestID string) ([]model.ProblemView, error) {
	if _, err := s.contestRepo.FindContest(ctx, contestID); err != nil {
		return nil, fmt.Errorf("contest %s: %w", contestID, err)
	}
	return s.problemViews(ctx, contestID)
}

func (s *ContestService) problemViews(ctx context.Context, contestID string) ([]model.ProblemView, error) {
	problems, err := s.problemRepo.ListProblemsByContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	views := make([]model.ProblemView, len(problems))
	for i := range problems {
		views[i] = problems[i].View()
	}
	return views, nil
}

func (s *ContestService) CreateContest(ctx context.Context, req CreateContestRequest) (*model.Contest, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("contest name is required: %w", common.ErrValidation)
	}
	if req.StartTime != nil && req.EndTime != nil && req.EndTime.Before(*req.StartTime) {
		return nil, fmt.Errorf("contest ends before it starts: %w", common.ErrValidation)
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = slug.Make(name)
	}
	if id == "" {
		return nil, fmt.Errorf("cannot derive a contest id from %q: %w", name, common.ErrValidation)
	}

	contest := &model.Contest{
		ID:          id,
		Name:        name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.contestRepo.CreateContest(ctx, contest); err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}
	logger.Info(ctx, "contest created", zap.String("contest_id", contest.ID))
	return contest, nil
}

func (s *ContestService) CreateProblem(ctx context.Context, contestID string, req CreateProblemRequest) (*model.Problem, error) {
	if _, err := s.contestRepo.FindContest(ctx, contestID); err != nil {
		return nil, fmt.Errorf("contest %s: %w", contestID, err)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("problem title is required: %w", common.ErrValidation)
	}
	if req.TimeLimitSeconds < 0 || req.MemoryLimitMB < 0 {
		return nil, fmt.Errorf("limits must not be negative: %w", common.ErrValidation)
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = slug.Make(contestID + " " + title)
	}

	problem := &model.Problem{
		ID:               id,
		ContestID:        contestID,
		Title:            title,
		Description:      req.Description,
		InputTestCases:   req.InputTestCases,
		ExpectedOutputs:  req.ExpectedOutputs,
		TimeLimitSeconds: req.TimeLimitSeconds,
		MemoryLimitMB:    req.MemoryLimitMB,
		CreatedAt:        s.now().UTC(),
	}
	if problem.TimeLimitSeconds == 0 {
		problem.TimeLimitSeconds = model.DefaultTimeLimitSeconds
	}
	if problem.MemoryLimitMB == 0 {
		problem.MemoryLimitMB = model.DefaultMemoryLimitMB
	}
	if err := problem.ValidateTestCases(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrValidation)
	}
	if err := s.problemRepo.CreateProblem(ctx, problem); err != nil {
		return nil, fmt.Errorf("failed to create problem: %w", err)
	}
	logger.Info(ctx, "problem created", zap.String("contest_id", contestID), zap.String("problem_id", problem.ID))
	return problem, nil
}

const demoContestID = "CONTEST-001"

// SeedDemo creates the sample contest unless it already exists.
func (s *ContestService) SeedDemo(ctx context.Context) error {
	_, err := s.contestRepo.FindContest(ctx, demoContestID)
	if err == nil {
		logger.Info(ctx, "demo data already present")
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	start := s.now().UTC()
	end := start.Add(7 * 24 * time.Hour)
	if _, err := s.CreateContest(ctx, CreateContestRequest{
		ID:          demoContestID,
		Name:        "Shodh Coding Challenge",
		Description: "Test your coding skills with our curated problems!",
		StartTime:   &start,
		EndTime:     &end,
	}); err != nil {
		return err
	}

	problems := []CreateProblemRequest{
		{
			ID:              "SUM-001",
			Title:           "Sum of Two Numbers",
			Description:     "Given two integers a and b on one line, print their sum.",
			InputTestCases:  []string{"5 3", "10 20", "-5 7"},
			ExpectedOutputs: []string{"8", "30", "2"},
		},
		{
			ID:              "MAX-001",
			Title:           "Find Maximum",
			Description:     "Given three integers on one line, print the largest.",
			InputTestCases:  []string{"10 5 8", "3 3 3", "-1 -5 -2"},
			ExpectedOutputs: []string{"10", "3", "-1"},
		},
		{
			ID:              "REV-001",
			Title:           "Reverse String",
			Description:     "Given a string, print it reversed.",
			InputTestCases:  []string{"hello", "Shodh", "12345"},
			ExpectedOutputs: []string{"olleh", "hdohS", "54321"},
		},
	}
	for _, p := range problems {
		p.TimeLimitSeconds = model.DefaultTimeLimitSeconds
		p.MemoryLimitMB = model.DefaultMemoryLimitMB
		if _, err := s.CreateProblem(ctx, demoContestID, p); err != nil {
			return err
		}
	}
	logger.Info(ctx, "demo data seeded", zap.String("contest_id", demoContestID), zap.Int("problems", len(problems)))
	return nil
}
