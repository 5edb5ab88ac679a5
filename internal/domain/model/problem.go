package model

import (
	"fmt"
	"time"
)

const (
	DefaultTimeLimitSeconds = 5
	DefaultMemoryLimitMB    = 256
)

type Problem struct {
	ID               string    `json:"problem_id"`
	ContestID        string    `json:"contest_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	InputTestCases   []string  `json:"input_test_cases,omitempty"`
	ExpectedOutputs  []string  `json:"expected_outputs,omitempty"`
	TimeLimitSeconds int       `json:"time_limit_seconds"`
	MemoryLimitMB    int       `json:"memory_limit_mb"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProblemView is the public projection of a problem; test data stays server side.
type ProblemView struct {
	ID               string `json:"problem_id"`
	ContestID        string `json:"contest_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
	MemoryLimitMB    int    `json:"memory_limit_mb"`
	TestCaseCount    int    `json:"test_case_count"`
}

func (p *Problem) View() ProblemView {
	return ProblemView{
		ID:               p.ID,
		ContestID:        p.ContestID,
		Title:            p.Title,
		Description:      p.Description,
		TimeLimitSeconds: p.TimeLimitSeconds,
		MemoryLimitMB:    p.MemoryLimitMB,
		TestCaseCount:    len(p.InputTestCases),
	}
}

// ValidateTestCases checks that inputs and expected outputs are index aligned.
func (p *Problem) ValidateTestCases() error {
	if len(p.InputTestCases) != len(p.ExpectedOutputs) {
		return fmt.Errorf("problem %s has %d inputs but %d expected outputs",
			p.ID, len(p.InputTestCases), len(p.ExpectedOutputs))
	}
	return nil
}
