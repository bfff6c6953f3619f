// Package workflow contains the workflow store semantics and the run
// executor.
package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/persistence"
)

// InitialConfidence is assigned to workflows that have never run, matching
// the defined success rate for zero attempts.
const InitialConfidence = 0.5

// Repository layers the domain rules over the raw store: version bumps on
// edit, deactivation instead of deletion, and serialized statistic updates.
type Repository struct {
	persistence persistence.Persistence

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRepository(p persistence.Persistence) *Repository {
	return &Repository{
		persistence: p,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-workflow mutex serializing read-modify-write
// updates so concurrent run completions cannot lose counter increments.
func (r *Repository) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}

	return l
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "persistence layer is unhealthy: " + err.Error(), false
	}

	return "persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.Workflows(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.persistence.WorkflowByID(ctx, id)
}

// FetchActive returns the highest-version active workflow for the platform
// and task type, the one execution uses.
func (r *Repository) FetchActive(ctx context.Context, platform, taskType string) (*models.Workflow, error) {
	return r.persistence.ActiveWorkflow(ctx, platform, taskType)
}

func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if workflow.Version == 0 {
		workflow.Version = 1
	}

	if workflow.Confidence == 0 {
		workflow.Confidence = InitialConfidence
	}

	now := time.Now()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	err := r.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update replaces a workflow's definition and bumps its version. Run
// statistics and creation time carry over from the stored document.
func (r *Repository) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	existing, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.ID = id
	workflow.Version = existing.Version + 1
	workflow.CreatedAt = existing.CreatedAt
	workflow.SuccessCount = existing.SuccessCount
	workflow.FailureCount = existing.FailureCount
	workflow.Confidence = existing.Confidence
	workflow.LastSuccessAt = existing.LastSuccessAt
	workflow.UpdatedAt = time.Now()

	err = r.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Deactivate retires a workflow without deleting it, preserving history for
// analytics and rollback.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	workflow, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return err
	}

	workflow.Active = false
	workflow.UpdatedAt = time.Now()

	return r.persistence.SaveWorkflow(ctx, workflow)
}

// RecordOutcome folds one run outcome into the stored workflow: counters,
// confidence and per-step confidences. Serialized per workflow so concurrent
// completions do not lose updates. Cancelled runs must not be recorded.
func (r *Repository) RecordOutcome(
	ctx context.Context,
	id string,
	success bool,
	stepOutcomes map[string]bool,
	smoothing float64,
) (*models.Workflow, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	workflow, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.RecordOutcome(success, smoothing, time.Now())

	for stepID, stepSuccess := range stepOutcomes {
		if step, ok := workflow.StepByID(stepID); ok {
			step.AdjustConfidence(stepSuccess, smoothing)
		}
	}

	err = r.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// AppendAlternative persists a recovered selector as a new alternative on
// the step, so future runs benefit without a re-teach.
func (r *Repository) AppendAlternative(
	ctx context.Context,
	workflowID, stepID string,
	alt models.ElementSelector,
) error {
	lock := r.lockFor(workflowID)
	lock.Lock()
	defer lock.Unlock()

	workflow, err := r.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return err
	}

	step, ok := workflow.StepByID(stepID)
	if !ok {
		return persistence.NewWorkflowError("AppendAlternative", workflowID, persistence.ErrWorkflowNotFound)
	}

	step.Alternatives = append(step.Alternatives, alt)
	workflow.UpdatedAt = time.Now()

	return r.persistence.SaveWorkflow(ctx, workflow)
}
