package models

import "time"

// ExecutionStatus is the terminal (or in-flight) state of one workflow run.
type ExecutionStatus string

const (
	ExecutionIdle      ExecutionStatus = "idle"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// StepResult records the outcome of one step within a run.
type StepResult struct {
	StepID    string        `json:"step_id"`
	Order     int           `json:"order"`
	Action    ActionKind    `json:"action"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"`
	Recovered bool          `json:"recovered,omitempty"`
	Attempts  int           `json:"attempts"`
	Outputs   Variables     `json:"outputs,omitempty"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// ExecutionResult is the transient outcome of one workflow run, owned by the
// executor for the run's lifetime and handed to the caller afterwards. It is
// not persisted beyond audit logging.
type ExecutionResult struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	Success     bool            `json:"success"`
	FailedOrder *int            `json:"failed_step_order,omitempty"`
	FailedStep  string          `json:"failed_step_id,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Steps       []StepResult    `json:"steps"`
	Outputs     Variables       `json:"outputs,omitempty"`
}

// Duration returns the wall-clock time the run took.
func (r *ExecutionResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
