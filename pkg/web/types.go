// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/xjanova/postxagent/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Platform string         `json:"platform"  validate:"required"`
	TaskType string         `json:"task_type" validate:"required"`
	Name     string         `json:"name"      validate:"required,min=3"`
	Steps    []*models.Step `json:"steps"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Active   bool           `json:"is_active"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates; any change
// produces a new version.
type UpdateWorkflowRequest struct {
	Name     *string        `json:"name,omitempty"      validate:"omitempty,min=3"`
	Steps    []*models.Step `json:"steps,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Active   *bool          `json:"is_active,omitempty"`
}

// StartSessionRequest opens a new teaching session.
type StartSessionRequest struct {
	Platform         string `json:"platform"  validate:"required"`
	TaskType         string `json:"task_type" validate:"required"`
	BrowserSessionID string `json:"browser_session_id,omitempty"`
}

// CompleteSessionRequest names the workflow a reviewed session compiles into.
type CompleteSessionRequest struct {
	Name string `json:"name" validate:"required,min=3"`
}

// EnqueueTaskRequest queues a posting task for a worker.
type EnqueueTaskRequest struct {
	Platform  string           `json:"platform"  validate:"required"`
	TaskType  string           `json:"task_type" validate:"required"`
	Variables models.Variables `json:"variables,omitempty"`
}
