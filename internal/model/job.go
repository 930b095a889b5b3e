package model

import "time"

// Job is a running instance of executing a conversion plan. Jobs are created
// by the controller, mutated throughout the run, and retained in terminal
// state until externally purged.
type Job struct {
	ID           string              `json:"id"`
	ProjectID    string              `json:"projectId"`
	Plan         *ConversionPlan     `json:"plan"`
	Status       JobStatus           `json:"status"`
	Progress     int                 `json:"progress"` // 0-100, monotonic within one run
	CurrentTask  string              `json:"currentTask"`
	StartedAt    *time.Time          `json:"startedAt,omitempty"`
	CompletedAt  *time.Time          `json:"completedAt,omitempty"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	Results      []*ConversionResult `json:"results"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// Clone returns a shallow-plan, deep-results copy safe to hand to callers.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Results = make([]*ConversionResult, len(j.Results))
	for i, r := range j.Results {
		rc := *r
		cp.Results[i] = &rc
	}
	return &cp
}
