package service

import "context"

// Scheduler hands a stored PENDING submission to grading without waiting for the verdict.
type Scheduler interface {
	Schedule(ctx context.Context, submissionID string) error
}

// WaitScheduler is a Scheduler that can also wait for capacity instead of rejecting.
// Recovery uses it so a backlog larger than the queue is still handed over in full.
type WaitScheduler interface {
	Scheduler
	ScheduleWait(ctx context.Context, submissionID string) error
}

// infrastructureFailure is the diagnostic stored when grading could not produce a verdict.
func infrastructureFailure(cause error) string {
	return "Error processing submission: " + cause.Error()
}
