package teaching

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/xjanova/postxagent/pkg/models"
)

// Compilation confidence levels. The primary selector is the most stable
// strategy the recording offers; every other candidate rides along as an
// alternative with less initial trust.
const (
	primaryConfidence     = 0.9
	alternativeConfidence = 0.7
)

// Compile turns a reviewed session's recording into a draft workflow. Steps
// are numbered contiguously from 1 in recorded order; each element
// fingerprint compiles into a primary selector chosen by stability plus the
// remaining strategies as ordered alternatives.
func Compile(session *models.TeachingSession, name string) (*models.Workflow, error) {
	if len(session.Steps) == 0 {
		return nil, ErrNoRecordedSteps
	}

	workflow := &models.Workflow{
		Platform: session.Platform,
		TaskType: session.TaskType,
		Name:     name,
		Steps:    make([]*models.Step, 0, len(session.Steps)),
		Metadata: map[string]any{"teaching_session_id": session.ID},
	}

	for i, recorded := range session.Steps {
		step, err := compileStep(recorded, i+1)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}

		workflow.Steps = append(workflow.Steps, step)
	}

	return workflow, nil
}

func compileStep(recorded models.RecordedStep, order int) (*models.Step, error) {
	step := &models.Step{
		ID:            uuid.New().String(),
		Order:         order,
		Action:        recorded.Action,
		InputVariable: recorded.InputVariable,
		Provenance:    models.ProvenanceManual,
	}

	if recorded.InputVariable == "" {
		step.InputValue = recorded.TypedValue
	}

	if recorded.Action == models.ActionNavigate && step.InputValue == "" && step.InputVariable == "" {
		step.InputValue = recorded.PageURL
	}

	if !recorded.Action.RequiresElement() {
		return step, nil
	}

	if recorded.Element == nil {
		return nil, ErrMissingElement
	}

	selectors := compileSelectors(recorded.Element)
	if len(selectors) == 0 {
		return nil, ErrMissingElement
	}

	step.Selector = &selectors[0]
	step.Alternatives = selectors[1:]
	step.Confidence = primaryConfidence

	return step, nil
}

// compileSelectors derives every usable selector from the fingerprint, most
// stable first: test id, then DOM id, then form name, then the recorded CSS
// path, then XPath, then visible text.
func compileSelectors(el *models.RecordedElement) []models.ElementSelector {
	hints := hintAttributes(el)

	var out []models.ElementSelector

	add := func(kind models.SelectorKind, value string) {
		if value == "" {
			return
		}

		confidence := alternativeConfidence
		if len(out) == 0 {
			confidence = primaryConfidence
		}

		out = append(out, models.ElementSelector{
			Kind:       kind,
			Value:      value,
			Text:       el.Text,
			Attributes: hints,
			Position:   el.Position,
			Confidence: confidence,
		})
	}

	add(models.SelectorTestID, el.TestID)
	add(models.SelectorID, el.ID)
	add(models.SelectorName, el.Name)
	add(models.SelectorCSS, el.CSSPath)
	add(models.SelectorXPath, el.XPath)
	add(models.SelectorText, el.Text)
	add(models.SelectorPlaceholder, el.Placeholder)
	add(models.SelectorAriaLabel, el.AriaLabel)

	return out
}

// hintAttributes gathers the stable attributes self-healing re-queries by.
func hintAttributes(el *models.RecordedElement) map[string]string {
	hints := make(map[string]string)

	set := func(name, value string) {
		if value != "" {
			hints[name] = value
		}
	}

	set("data-testid", el.TestID)
	set("id", el.ID)
	set("name", el.Name)
	set("aria-label", el.AriaLabel)
	set("placeholder", el.Placeholder)

	for k, v := range el.Attributes {
		set(k, v)
	}

	if len(hints) == 0 {
		return nil
	}

	return hints
}
