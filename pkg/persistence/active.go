package persistence

import "github.com/xjanova/postxagent/pkg/models"

// PickActive selects the active workflow with the highest version for the
// (platform, task type) pair from an in-memory list. Backends without
// indexed queries share this.
func PickActive(workflows []*models.Workflow, platform, taskType string) (*models.Workflow, error) {
	var best *models.Workflow

	for _, w := range workflows {
		if !w.Active || w.Platform != platform || w.TaskType != taskType {
			continue
		}

		if best == nil || w.Version > best.Version {
			best = w
		}
	}

	if best == nil {
		return nil, ErrNoActiveWorkflow
	}

	return best, nil
}
