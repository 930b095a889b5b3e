package model

import "fmt"

// TaskStatus tracks a task through one orchestrator run.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// JobStatus tracks a job through its lifecycle.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

var terminalTaskStatuses = map[TaskStatus]bool{
	TaskStatusCompleted: true,
	TaskStatusFailed:    true,
}

var terminalJobStatuses = map[JobStatus]bool{
	JobStatusCompleted: true,
	JobStatusFailed:    true,
}

// Task transitions: pending → running → completed|failed
var validTaskTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusPending: {
		TaskStatusRunning: true,
		TaskStatusFailed:  true, // skipped-on-dependency-failure records straight to failed
	},
	TaskStatusRunning: {
		TaskStatusCompleted: true,
		TaskStatusFailed:    true,
	},
}

// Job transitions: pending → running ⇄ paused; running|paused → completed;
// pending|running|paused → failed. completed and failed are terminal.
// paused → completed covers a pause that lands during the final batch:
// there is no later batch for it to hold, so the run still settles once
// every task has resolved.
var validJobTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusPending: {
		JobStatusRunning: true,
		JobStatusFailed:  true,
	},
	JobStatusRunning: {
		JobStatusPaused:    true,
		JobStatusCompleted: true,
		JobStatusFailed:    true,
	},
	JobStatusPaused: {
		JobStatusRunning:   true,
		JobStatusCompleted: true,
		JobStatusFailed:    true,
	},
}

func IsTaskTerminal(s TaskStatus) bool {
	return terminalTaskStatuses[s]
}

func IsJobTerminal(s JobStatus) bool {
	return terminalJobStatuses[s]
}

func ValidateTaskTransition(from, to TaskStatus) error {
	if IsTaskTerminal(from) {
		return fmt.Errorf("cannot transition from terminal task status %q", from)
	}
	allowed, ok := validTaskTransitions[from]
	if !ok {
		return fmt.Errorf("unknown task status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid task transition: %q → %q", from, to)
	}
	return nil
}

func ValidateJobTransition(from, to JobStatus) error {
	if IsJobTerminal(from) {
		return fmt.Errorf("cannot transition from terminal job status %q", from)
	}
	allowed, ok := validJobTransitions[from]
	if !ok {
		return fmt.Errorf("unknown job status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid job transition: %q → %q", from, to)
	}
	return nil
}
