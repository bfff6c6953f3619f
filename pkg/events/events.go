// Package events defines the lifecycle and progress events a workflow run
// publishes. Any number of consumers (UI, logger, metrics) subscribe through
// the event bus; the executor never talks to a UI directly.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/xjanova/postxagent/pkg/models"
)

type EventType string

// Topic is the bus topic all execution events are published on.
const Topic = "postx.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	StepStartedEvent  EventType = "step.started"
	StepFinishedEvent EventType = "step.finished"
	StepFailedEvent   EventType = "step.failed"
	StepSkippedEvent  EventType = "step.skipped"

	SelectorRecoveredEvent EventType = "selector.recovered"
	WorkflowPromotedEvent  EventType = "workflow.promoted"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id,omitempty"`
	WorkerID    string         `json:"worker_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}

type ExecutionStarted struct {
	BaseEvent

	Platform  string `json:"platform"`
	TaskType  string `json:"task_type"`
	StepCount int    `json:"step_count"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionCompleted struct {
	BaseEvent

	DurationMs int64            `json:"duration_ms"`
	Outputs    models.Variables `json:"outputs,omitempty"`
	StepsRun   int              `json:"steps_run"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionFailed struct {
	BaseEvent

	DurationMs  int64  `json:"duration_ms"`
	FailedOrder int    `json:"failed_step_order"`
	FailedStep  string `json:"failed_step_id"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

type ExecutionCancelled struct {
	BaseEvent

	DurationMs int64 `json:"duration_ms"`
	StepsRun   int   `json:"steps_run"`
}

func (e ExecutionCancelled) GetType() EventType { return ExecutionCancelledEvent }

type StepStarted struct {
	BaseEvent

	StepID string            `json:"step_id"`
	Order  int               `json:"order"`
	Action models.ActionKind `json:"action"`
}

func (e StepStarted) GetType() EventType { return StepStartedEvent }

type StepFinished struct {
	BaseEvent

	StepID     string            `json:"step_id"`
	Order      int               `json:"order"`
	Action     models.ActionKind `json:"action"`
	Attempts   int               `json:"attempts"`
	DurationMs int64             `json:"duration_ms"`
}

func (e StepFinished) GetType() EventType { return StepFinishedEvent }

type StepFailed struct {
	BaseEvent

	StepID   string            `json:"step_id"`
	Order    int               `json:"order"`
	Action   models.ActionKind `json:"action"`
	Optional bool              `json:"optional"`
	Error    string            `json:"error"`
}

func (e StepFailed) GetType() EventType { return StepFailedEvent }

type StepSkipped struct {
	BaseEvent

	StepID string `json:"step_id"`
	Order  int    `json:"order"`
	Reason string `json:"reason"`
}

func (e StepSkipped) GetType() EventType { return StepSkippedEvent }

// SelectorRecovered is published when self-healing found a working
// replacement selector and recorded it on the step.
type SelectorRecovered struct {
	BaseEvent

	StepID   string              `json:"step_id"`
	Kind     models.SelectorKind `json:"kind"`
	Value    string              `json:"value"`
	Previous string              `json:"previous"`
}

func (e SelectorRecovered) GetType() EventType { return SelectorRecoveredEvent }

// WorkflowPromoted is published when a reviewed teaching session compiles
// into an active workflow.
type WorkflowPromoted struct {
	BaseEvent

	SessionID string `json:"session_id"`
	Platform  string `json:"platform"`
	TaskType  string `json:"task_type"`
	StepCount int    `json:"step_count"`
}

func (e WorkflowPromoted) GetType() EventType { return WorkflowPromotedEvent }
