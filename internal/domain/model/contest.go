package model

import "time"

type Contest struct {
	ID          string        `json:"contest_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	StartTime   *time.Time    `json:"start_time,omitempty"`
	EndTime     *time.Time    `json:"end_time,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Problems    []ProblemView `json:"problems,omitempty"`
}
