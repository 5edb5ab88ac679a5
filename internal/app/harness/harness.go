package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"contest_judge/internal/app/executor"
	"contest_judge/internal/domain/model"
	"contest_judge/internal/platform/logger"

	"go.uber.org/zap"
)

// LimitsPolicy turns a problem's declared limits into executor limits.
type LimitsPolicy struct {
	// MaxTime caps every test case run. A problem may ask for less, never more.
	MaxTime time.Duration
}

func (p LimitsPolicy) limitsFor(problem *model.Problem) executor.Limits {
	limit := p.MaxTime
	if problem.TimeLimitSeconds > 0 {
		declared := time.Duration(problem.TimeLimitSeconds) * time.Second
		if limit <= 0 || declared < limit {
			limit = declared
		}
	}
	var memory int
	if problem.MemoryLimitMB > 0 {
		memory = problem.MemoryLimitMB
	}
	return executor.Limits{TimeLimit: limit, MemoryLimitMB: memory}
}

// Harness grades one submission against every test case of its problem.
type Harness struct {
	exec   executor.Executor
	table  *executor.Table
	policy LimitsPolicy
}

func New(exec executor.Executor, table *executor.Table, policy LimitsPolicy) *Harness {
	return &Harness{exec: exec, table: table, policy: policy}
}

// Grade compiles the submission once and runs every test case in order. Only a compilation
// error stops early; every other failure is recorded and grading continues. A returned error
// is an infrastructure failure, never a verdict.
func (h *Harness) Grade(ctx context.Context, sub *model.Submission, problem *model.Problem) (*model.ExecutionResult, error) {
	if err := problem.ValidateTestCases(); err != nil {
		return nil, err
	}
	total := len(problem.InputTestCases)
	profile := h.table.Resolve(sub.Language)

	session, err := h.exec.Open(ctx, sub.Code, profile, h.policy.limitsFor(problem))
	if err != nil {
		return nil, fmt.Errorf("open sandbox: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn(ctx, "failed to clean up sandbox",
				zap.String("submission_id", sub.ID), zap.Error(err))
		}
	}()

	compiled, err := session.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if compiled.Status != model.StatusAccepted {
		return &model.ExecutionResult{
			Status:         compiled.Status,
			Message:        compiled.Message,
			TotalTestCases: total,
		}, nil
	}

	passed := 0
	var failures []string
	var lastOutput string
	for i, input := range problem.InputTestCases {
		out, err := session.Run(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("test case %d: %w", i+1, err)
		}
		lastOutput = out.Output

		if out.Status != model.StatusAccepted {
			failures = append(failures, fmt.Sprintf("Test case %d: %s", i+1, out.Message))
			continue
		}
		expected := strings.TrimSpace(problem.ExpectedOutputs[i])
		actual := strings.TrimSpace(out.Output)
		if actual != expected {
			failures = append(failures, fmt.Sprintf("Test case %d failed.\nExpected: %s\nGot: %s", i+1, expected, actual))
			continue
		}
		passed++
	}

	res := &model.ExecutionResult{
		Status:          model.StatusAccepted,
		Output:          lastOutput,
		TestCasesPassed: passed,
		TotalTestCases:  total,
	}
	if passed != total {
		res.Status = model.StatusWrongAnswer
		res.Message = strings.Join(failures, "\n")
	}
	return res, nil
}
