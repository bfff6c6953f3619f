// Package healing rebuilds dead selectors from the hints captured when the
// element was recorded. Recovery only ever proposes a selector it has already
// confirmed against the live page.
package healing

import (
	"context"
	"log/slog"

	"github.com/xjanova/postxagent/pkg/browser"
	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/selector"
)

// RecoveredConfidence is assigned to a freshly recovered selector. It starts
// below a recorded selector's trust and earns more through successful runs.
const RecoveredConfidence = 0.5

// Recoverer derives replacement selectors from recorded hints: stable
// attributes first, then the smart matcher's description, then visible text.
type Recoverer struct {
	resolver *selector.Resolver
	logger   *slog.Logger
}

func NewRecoverer(resolver *selector.Resolver, logger *slog.Logger) *Recoverer {
	return &Recoverer{
		resolver: resolver,
		logger:   logger.With("module", "selector_recovery"),
	}
}

// hintAttributes are the recorded element attributes worth re-querying by,
// most stable first.
var hintAttributes = []struct {
	name string
	kind models.SelectorKind
}{
	{"data-testid", models.SelectorTestID},
	{"id", models.SelectorID},
	{"name", models.SelectorName},
	{"aria-label", models.SelectorAriaLabel},
	{"placeholder", models.SelectorPlaceholder},
}

// Recover tries each candidate selector derived from the step's recorded
// hints and returns the first one that matches a live element, or nil when
// nothing recoverable remains. Errors are page-level failures only.
func (r *Recoverer) Recover(
	ctx context.Context,
	page browser.Page,
	step *models.Step,
) (*models.ElementSelector, error) {
	candidates := r.candidates(step)
	if len(candidates) == 0 {
		return nil, nil
	}

	for _, candidate := range candidates {
		res, err := r.resolver.Resolve(ctx, page, &candidate, nil, true)
		if err != nil {
			if selector.IsNotFound(err) {
				continue
			}

			return nil, err
		}

		recovered := candidate
		recovered.Confidence = RecoveredConfidence
		recovered.AutoRecovered = true

		r.logger.InfoContext(ctx, "Recovered element via hint",
			"step_id", step.ID, "kind", recovered.Kind, "value", recovered.Value,
			"element", res.Element.ID())

		return &recovered, nil
	}

	return nil, nil
}

// candidates derives replacement selectors from every recorded selector on
// the step, deduplicated and minus anything the step already tried.
func (r *Recoverer) candidates(step *models.Step) []models.ElementSelector {
	hints := make([]models.ElementSelector, 0, len(step.Alternatives)+1)
	if step.Selector != nil {
		hints = append(hints, *step.Selector)
	}

	hints = append(hints, step.Alternatives...)

	known := make(map[string]bool, len(hints))
	for _, h := range hints {
		known[string(h.Kind)+"\x00"+h.Value] = true
	}

	var out []models.ElementSelector

	add := func(cand models.ElementSelector) {
		key := string(cand.Kind) + "\x00" + cand.Value
		if cand.Value == "" || known[key] {
			return
		}

		known[key] = true

		out = append(out, cand)
	}

	for _, hint := range hints {
		for _, attr := range hintAttributes {
			if v, ok := hint.Attributes[attr.name]; ok {
				add(models.ElementSelector{Kind: attr.kind, Value: v, Text: hint.Text})
			}
		}
	}

	for _, hint := range hints {
		if hint.AIDescription != "" {
			add(models.ElementSelector{
				Kind:          models.SelectorSmart,
				Value:         hint.AIDescription,
				AIDescription: hint.AIDescription,
				Text:          hint.Text,
			})
		}
	}

	for _, hint := range hints {
		if hint.Text != "" {
			add(models.ElementSelector{Kind: models.SelectorText, Value: hint.Text, Text: hint.Text})
		}
	}

	return out
}
