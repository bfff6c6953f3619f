package models

import "time"

// Step is one browser interaction within a workflow. Execution order follows
// ascending Order values, not slice position; gaps are tolerated.
type Step struct {
	ID            string            `json:"id"`
	Order         int               `json:"order"                       validate:"min=0"`
	Action        ActionKind        `json:"action"                      validate:"required"`
	Selector      *ElementSelector  `json:"selector,omitempty"`
	Alternatives  []ElementSelector `json:"alternatives,omitempty"`
	InputValue    string            `json:"input_value,omitempty"`
	InputVariable string            `json:"input_variable,omitempty"`
	OutputKey     string            `json:"output_key,omitempty"`
	WaitBeforeMs  int               `json:"wait_before_ms,omitempty"    validate:"min=0"`
	WaitAfterMs   int               `json:"wait_after_ms,omitempty"     validate:"min=0"`
	TimeoutMs     int               `json:"timeout_ms,omitempty"        validate:"min=0"`
	RetryCount    int               `json:"retry_count,omitempty"       validate:"min=0"`
	Optional      bool              `json:"is_optional,omitempty"`
	Condition     *SuccessCondition `json:"success_condition,omitempty"`
	Confidence    float64           `json:"confidence_score"            validate:"min=0,max=1"`
	Provenance    Provenance        `json:"provenance,omitempty"`
}

// Timeout returns the step timeout, or fallback when the step does not set one.
func (s *Step) Timeout(fallback time.Duration) time.Duration {
	if s.TimeoutMs <= 0 {
		return fallback
	}

	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// WaitBefore returns the settle-time buffer applied before the action.
func (s *Step) WaitBefore() time.Duration {
	return time.Duration(s.WaitBeforeMs) * time.Millisecond
}

// WaitAfter returns the settle-time buffer applied after the action.
func (s *Step) WaitAfter() time.Duration {
	return time.Duration(s.WaitAfterMs) * time.Millisecond
}

// AdjustConfidence nudges the step confidence toward 1 on success and toward
// 0 on failure using the same smoothing rule as workflows, clamped to [0,1].
func (s *Step) AdjustConfidence(success bool, smoothing float64) {
	outcome := 0.0
	if success {
		outcome = 1.0
	}

	s.Confidence = clamp01(s.Confidence*smoothing + outcome*(1-smoothing))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
