package operations

import (
	"time"
)

// StepStatus represents the outcome of a stage
type StepStatus string

const (
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// StepState records one executed stage of a run.
type StepState struct {
	Stage     State                  `json:"stage"`
	Status    StepStatus             `json:"status"`
	StartTime time.Time              `json:"start_time"`
	EndTime   time.Time              `json:"end_time,omitempty"`
	Error     error                  `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewStepState starts a step record for stage at now.
func NewStepState(stage State, now time.Time) *StepState {
	return &StepState{
		Stage:     stage,
		Status:    StepStatusActive,
		StartTime: now,
		Metadata:  make(map[string]interface{}),
	}
}

// Complete marks the step as completed
func (s *StepState) Complete(now time.Time) {
	s.EndTime = now
	s.Status = StepStatusCompleted
}

// Fail marks the step as failed with the given error
func (s *StepState) Fail(now time.Time, err error) {
	s.EndTime = now
	s.Status = StepStatusFailed
	s.Error = err
}

// Duration returns how long the step ran, or zero while it is active.
func (s *StepState) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
