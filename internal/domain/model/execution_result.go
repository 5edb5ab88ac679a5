package model

// ExecutionResult is what grading produces for one submission. It is never persisted as such;
// the pipeline copies it onto the Submission.
type ExecutionResult struct {
	Status          SubmissionStatus `json:"status"`
	Output          string           `json:"output,omitempty"`
	Message         string           `json:"message,omitempty"`
	TestCasesPassed int              `json:"test_cases_passed"`
	TotalTestCases  int              `json:"total_test_cases"`
}
