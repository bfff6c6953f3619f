// Package persistence provides the storage abstraction for workflows and
// teaching sessions.
package persistence

import (
	"context"

	"github.com/xjanova/postxagent/pkg/models"
)

// Persistence is the whole-document workflow and session store. Writes are
// upserts keyed by ID; workflows are never hard-deleted, only deactivated.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	// ActiveWorkflow returns the active workflow with the highest version
	// for the (platform, task type) pair, or ErrNoActiveWorkflow.
	ActiveWorkflow(ctx context.Context, platform, taskType string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error

	Sessions(ctx context.Context) ([]*models.TeachingSession, error)
	SessionByID(ctx context.Context, id string) (*models.TeachingSession, error)
	SaveSession(ctx context.Context, session *models.TeachingSession) error
	// DeleteSession discards a session entirely; used for cancellation,
	// which must leave nothing behind.
	DeleteSession(ctx context.Context, id string) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
