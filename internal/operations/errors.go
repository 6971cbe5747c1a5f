package operations

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of operation error
type ErrorType string

const (
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// OperationError attributes a failure to the stage that raised it. The
// stage's own error stays reachable through Unwrap.
type OperationError struct {
	Type    ErrorType `json:"type"`
	Stage   State     `json:"stage,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"cause,omitempty"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewStageError wraps the failure of stage.
func NewStageError(stage State, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeExecution,
		Stage:   stage,
		Message: "stage failed",
		Cause:   cause,
	}
}

// NewInvalidStateError reports a rejected transition.
func NewInvalidStateError(from, to State) *OperationError {
	return &OperationError{
		Type:    ErrorTypeInvalidState,
		Stage:   from,
		Message: fmt.Sprintf("illegal transition %s -> %s", from, to),
	}
}

// IsInvalidState reports whether err is a rejected transition.
func IsInvalidState(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr) && opErr.Type == ErrorTypeInvalidState
}
