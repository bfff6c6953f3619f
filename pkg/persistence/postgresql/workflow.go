package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/persistence"
)

// WorkflowRepository handles workflow rows.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `id, platform, task_type, name, version, steps,
	success_count, failure_count, confidence_score, is_active, metadata,
	created_at, updated_at, last_success_at`

func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+workflowColumns+` FROM workflows ORDER BY created_at`)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetAll", "", err)
	}
	defer func() { _ = rows.Close() }()

	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewWorkflowError("GetAll", "", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewWorkflowError("GetAll", "", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) GetActive(ctx context.Context, platform, taskType string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		WHERE platform = $1 AND task_type = $2 AND is_active
		ORDER BY version DESC
		LIMIT 1`, platform, taskType)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNoActiveWorkflow
		}

		return nil, persistence.NewWorkflowError("GetActive", "", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	steps, err := json.Marshal(workflow.Steps)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	metadata, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			platform = EXCLUDED.platform,
			task_type = EXCLUDED.task_type,
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			steps = EXCLUDED.steps,
			success_count = EXCLUDED.success_count,
			failure_count = EXCLUDED.failure_count,
			confidence_score = EXCLUDED.confidence_score,
			is_active = EXCLUDED.is_active,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at,
			last_success_at = EXCLUDED.last_success_at`,
		workflow.ID, workflow.Platform, workflow.TaskType, workflow.Name,
		workflow.Version, steps, workflow.SuccessCount, workflow.FailureCount,
		workflow.Confidence, workflow.Active, metadata,
		workflow.CreatedAt, workflow.UpdatedAt, workflow.LastSuccessAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow models.Workflow
		steps    []byte
		metadata []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.Platform, &workflow.TaskType, &workflow.Name,
		&workflow.Version, &steps, &workflow.SuccessCount, &workflow.FailureCount,
		&workflow.Confidence, &workflow.Active, &metadata,
		&workflow.CreatedAt, &workflow.UpdatedAt, &workflow.LastSuccessAt)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(steps, &workflow.Steps)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		err = json.Unmarshal(metadata, &workflow.Metadata)
		if err != nil {
			return nil, err
		}
	}

	return &workflow, nil
}
