package model

import "time"

type SubmissionStatus string

const (
	StatusPending             SubmissionStatus = "PENDING"
	StatusRunning             SubmissionStatus = "RUNNING"
	StatusAccepted            SubmissionStatus = "ACCEPTED"
	StatusWrongAnswer         SubmissionStatus = "WRONG_ANSWER"
	StatusTimeLimitExceeded   SubmissionStatus = "TIME_LIMIT_EXCEEDED"
	StatusMemoryLimitExceeded SubmissionStatus = "MEMORY_LIMIT_EXCEEDED"
	StatusRuntimeError        SubmissionStatus = "RUNTIME_ERROR"
	StatusCompilationError    SubmissionStatus = "COMPILATION_ERROR"
)

// Verdicts lists every terminal status.
var Verdicts = []SubmissionStatus{
	StatusAccepted,
	StatusWrongAnswer,
	StatusTimeLimitExceeded,
	StatusMemoryLimitExceeded,
	StatusRuntimeError,
	StatusCompilationError,
}

// IsTerminal reports whether s is one of the verdicts.
func (s SubmissionStatus) IsTerminal() bool {
	for _, v := range Verdicts {
		if s == v {
			return true
		}
	}
	return false
}

type Submission struct {
	ID              string           `json:"submission_id"`
	ContestID       string           `json:"contest_id"`
	ProblemID       string           `json:"problem_id"`
	Username        string           `json:"username"`
	Code            string           `json:"-"`
	Language        string           `json:"language"`
	Status          SubmissionStatus `json:"status"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	TestCasesPassed int              `json:"test_cases_passed"`
	TotalTestCases  int              `json:"total_test_cases"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`
}

// ApplyResult copies a grading result onto the submission and stamps it as processed.
func (s *Submission) ApplyResult(res *ExecutionResult, processedAt time.Time) {
	s.Status = res.Status
	s.ErrorMessage = nil
	if res.Message != "" {
		msg := res.Message
		s.ErrorMessage = &msg
	}
	s.TestCasesPassed = res.TestCasesPassed
	s.TotalTestCases = res.TotalTestCases
	s.ProcessedAt = &processedAt
}

// Fail moves the submission to RUNTIME_ERROR with an infrastructure diagnostic.
func (s *Submission) Fail(message string, processedAt time.Time) {
	s.Status = StatusRuntimeError
	s.ErrorMessage = &message
	s.ProcessedAt = &processedAt
}
