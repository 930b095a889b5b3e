package model

import "testing"

func TestValidateJobTransition_Valid(t *testing.T) {
	cases := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusRunning},
		{JobStatusRunning, JobStatusPaused},
		{JobStatusPaused, JobStatusRunning},
		{JobStatusRunning, JobStatusCompleted},
		{JobStatusPaused, JobStatusCompleted}, // pause landed during the final batch
		{JobStatusRunning, JobStatusFailed},
		{JobStatusPending, JobStatusFailed},
		{JobStatusPaused, JobStatusFailed},
	}
	for _, c := range cases {
		if err := ValidateJobTransition(c.from, c.to); err != nil {
			t.Errorf("expected %s → %s to be valid, got %v", c.from, c.to, err)
		}
	}
}

func TestValidateJobTransition_Invalid(t *testing.T) {
	cases := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusPaused},
		{JobStatusPending, JobStatusCompleted},
		{JobStatusCompleted, JobStatusRunning},
		{JobStatusFailed, JobStatusRunning},
	}
	for _, c := range cases {
		if err := ValidateJobTransition(c.from, c.to); err == nil {
			t.Errorf("expected %s → %s to be invalid", c.from, c.to)
		}
	}
}

func TestValidateTaskTransition(t *testing.T) {
	if err := ValidateTaskTransition(TaskStatusPending, TaskStatusRunning); err != nil {
		t.Errorf("pending → running should be valid: %v", err)
	}
	if err := ValidateTaskTransition(TaskStatusRunning, TaskStatusCompleted); err != nil {
		t.Errorf("running → completed should be valid: %v", err)
	}
	if err := ValidateTaskTransition(TaskStatusCompleted, TaskStatusRunning); err == nil {
		t.Error("completed → running should be invalid")
	}
	if err := ValidateTaskTransition(TaskStatusPending, TaskStatusCompleted); err == nil {
		t.Error("pending → completed should be invalid")
	}
}

func TestIsJobTerminal(t *testing.T) {
	if !IsJobTerminal(JobStatusCompleted) || !IsJobTerminal(JobStatusFailed) {
		t.Error("completed and failed must be terminal")
	}
	if IsJobTerminal(JobStatusPaused) || IsJobTerminal(JobStatusRunning) || IsJobTerminal(JobStatusPending) {
		t.Error("pending, running, paused must not be terminal")
	}
}
