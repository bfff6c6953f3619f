// Package file provides file-based persistence, one JSON document per
// workflow or session. Suitable for development and single-node deployments.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
}

func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

func (p *Persistence) workflowDir() string { return filepath.Join(p.root, "workflows") }

func (p *Persistence) sessionDir() string { return filepath.Join(p.root, "sessions") }

func (p *Persistence) Close(_ context.Context) error { return nil }

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := listIDs(p.workflowDir())
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := p.WorkflowByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	data, err := os.ReadFile(filepath.Join(p.workflowDir(), id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &workflow, nil
}

func (p *Persistence) ActiveWorkflow(ctx context.Context, platform, taskType string) (*models.Workflow, error) {
	workflows, err := p.Workflows(ctx)
	if err != nil {
		return nil, err
	}

	return persistence.PickActive(workflows, platform, taskType)
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	return writeDoc(p.workflowDir(), workflow.ID, workflow)
}

func (p *Persistence) Sessions(ctx context.Context) ([]*models.TeachingSession, error) {
	ids, err := listIDs(p.sessionDir())
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.TeachingSession, 0, len(ids))

	for _, id := range ids {
		session, err := p.SessionByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load session %s: %w", id, err)
		}

		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (p *Persistence) SessionByID(_ context.Context, id string) (*models.TeachingSession, error) {
	data, err := os.ReadFile(filepath.Join(p.sessionDir(), id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.ErrSessionNotFound
		}

		return nil, err
	}

	var session models.TeachingSession

	err = json.Unmarshal(data, &session)
	if err != nil {
		return nil, err
	}

	return &session, nil
}

func (p *Persistence) SaveSession(_ context.Context, session *models.TeachingSession) error {
	return writeDoc(p.sessionDir(), session.ID, session)
}

func (p *Persistence) DeleteSession(_ context.Context, id string) error {
	err := os.Remove(filepath.Join(p.sessionDir(), id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.ErrSessionNotFound
		}

		return err
	}

	return nil
}

func listIDs(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, strings.TrimSuffix(f, ".json"))
	}

	return ids, nil
}

func writeDoc(dir, id string, doc any) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", id, err)
	}

	err = os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", id, err)
	}

	return nil
}
