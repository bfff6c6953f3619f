package models

import (
	"sort"
	"time"
)

// Workflow is a named, versioned automation recipe for one platform and one
// task type, e.g. "facebook"/"create_post". Workflows are never hard-deleted;
// deactivation preserves history for analytics and rollback.
type Workflow struct {
	ID            string         `json:"id"`
	Platform      string         `json:"platform"                  validate:"required"`
	TaskType      string         `json:"task_type"                 validate:"required"`
	Name          string         `json:"name"                      validate:"required,min=3"`
	Version       int            `json:"version"                   validate:"min=1"`
	Steps         []*Step        `json:"steps"`
	SuccessCount  int            `json:"success_count"`
	FailureCount  int            `json:"failure_count"`
	Confidence    float64        `json:"confidence_score"          validate:"min=0,max=1"`
	Active        bool           `json:"is_active"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	LastSuccessAt *time.Time     `json:"last_success_at,omitempty"`
}

// SuccessRate returns successes over total attempts, or 0.5 when the workflow
// has never been attempted.
func (w *Workflow) SuccessRate() float64 {
	total := w.SuccessCount + w.FailureCount
	if total == 0 {
		return 0.5
	}

	return float64(w.SuccessCount) / float64(total)
}

// OrderedSteps returns the steps sorted by ascending Order. The sort is
// stable so equal orders keep their authored sequence.
func (w *Workflow) OrderedSteps() []*Step {
	steps := make([]*Step, len(w.Steps))
	copy(steps, w.Steps)

	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})

	return steps
}

// StepByID returns the step with the given ID.
func (w *Workflow) StepByID(id string) (*Step, bool) {
	for _, step := range w.Steps {
		if step.ID == id {
			return step, true
		}
	}

	return nil, false
}

// RecordOutcome folds one run outcome into the workflow statistics: counters,
// timestamps and the smoothed confidence score. smoothing is the weight kept
// from the previous score (0.8 nudges by a fifth per run). Cancelled runs
// must not be recorded here.
func (w *Workflow) RecordOutcome(success bool, smoothing float64, now time.Time) {
	outcome := 0.0

	if success {
		outcome = 1.0
		w.SuccessCount++
		at := now
		w.LastSuccessAt = &at
	} else {
		w.FailureCount++
	}

	w.Confidence = clamp01(w.Confidence*smoothing + outcome*(1-smoothing))
	w.UpdatedAt = now
}
