package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates no workflow exists with the given ID.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNoActiveWorkflow indicates no active workflow exists for the
	// requested platform and task type. Surfaced before any step executes.
	ErrNoActiveWorkflow = errors.New("no active workflow")

	// ErrSessionNotFound indicates no teaching session exists with the
	// given ID.
	ErrSessionNotFound = errors.New("teaching session not found")
)

// WorkflowError wraps workflow store failures with operation context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

func (e *WorkflowError) Is(target error) bool { return errors.Is(e.Err, target) }

func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsNoActiveWorkflow checks if an error indicates no active workflow exists.
func IsNoActiveWorkflow(err error) bool {
	return errors.Is(err, ErrNoActiveWorkflow)
}

// IsSessionNotFound checks if an error indicates a missing teaching session.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
