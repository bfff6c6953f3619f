// Package selector resolves element descriptors against a live page, trying
// the primary selector and then each alternative strictly in list order.
package selector

import (
	"context"
	"log/slog"
	"sort"

	"github.com/xjanova/postxagent/pkg/browser"
	"github.com/xjanova/postxagent/pkg/models"
)

// DefaultConfidenceFloor is the minimum confidence a Visual/Smart candidate
// needs to be accepted. Not derived from any tuning process; configurable on
// the resolver.
const DefaultConfidenceFloor = 0.6

// Resolution is a successful lookup. SelectorIndex is -1 when the primary
// selector matched, otherwise the index into the alternatives list.
type Resolution struct {
	Element       browser.Element
	Selector      models.ElementSelector
	SelectorIndex int
	Confidence    float64
}

// Resolver finds the best matching live element for a selector set. It holds
// no per-run state and is shared across concurrent runs.
type Resolver struct {
	matchers *MatcherRegistry
	floor    float64
	logger   *slog.Logger
}

func NewResolver(matchers *MatcherRegistry, floor float64, logger *slog.Logger) *Resolver {
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}

	if matchers == nil {
		matchers = NewMatcherRegistry()
	}

	return &Resolver{
		matchers: matchers,
		floor:    floor,
		logger:   logger.With("module", "selector_resolver"),
	}
}

// Resolve tries primary first, then each alternative in order, and returns
// the first acceptable element. When actionable is set the element must also
// be visible and enabled. Resolution performs no page mutation and is safe to
// retry.
func (r *Resolver) Resolve(
	ctx context.Context,
	page browser.Page,
	primary *models.ElementSelector,
	alternatives []models.ElementSelector,
	actionable bool,
) (*Resolution, error) {
	var tried []Tried

	if primary != nil {
		res, reason, err := r.resolveOne(ctx, page, *primary, actionable)
		if err != nil {
			return nil, err
		}

		if res != nil {
			res.SelectorIndex = -1

			return res, nil
		}

		tried = append(tried, Tried{Kind: primary.Kind, Value: primary.Value, Reason: reason})
	}

	for i, alt := range alternatives {
		res, reason, err := r.resolveOne(ctx, page, alt, actionable)
		if err != nil {
			return nil, err
		}

		if res != nil {
			res.SelectorIndex = i
			r.logger.DebugContext(ctx, "Resolved via alternative selector",
				"index", i, "kind", alt.Kind, "value", alt.Value)

			return res, nil
		}

		tried = append(tried, Tried{Kind: alt.Kind, Value: alt.Value, Reason: reason})
	}

	return nil, &NotFoundError{Tried: tried}
}

// resolveOne attempts a single selector variant. A nil resolution with a
// reason means "not found here, keep trying"; an error is a page-level
// failure that aborts resolution entirely.
func (r *Resolver) resolveOne(
	ctx context.Context,
	page browser.Page,
	sel models.ElementSelector,
	actionable bool,
) (*Resolution, string, error) {
	if sel.Kind.Pluggable() {
		return r.resolvePluggable(ctx, page, sel, actionable)
	}

	for _, loc := range locatorsFor(sel) {
		found, err := page.Find(ctx, loc)
		if err != nil {
			return nil, "", err
		}

		for _, el := range found {
			ok, err := acceptable(ctx, el, actionable)
			if err != nil {
				return nil, "", err
			}

			if ok {
				return &Resolution{Element: el, Selector: sel, Confidence: sel.Confidence}, "", nil
			}
		}
	}

	if actionable {
		return nil, "no actionable match", nil
	}

	return nil, "no match", nil
}

func (r *Resolver) resolvePluggable(
	ctx context.Context,
	page browser.Page,
	sel models.ElementSelector,
	actionable bool,
) (*Resolution, string, error) {
	matcher, ok := r.matchers.Get(sel.Kind)
	if !ok {
		return nil, "no matcher registered for kind " + string(sel.Kind), nil
	}

	candidates, err := matcher.Match(ctx, page, sel)
	if err != nil {
		return nil, "", err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	for _, c := range candidates {
		if c.Confidence < r.floor {
			break
		}

		ok, err := acceptable(ctx, c.Element, actionable)
		if err != nil {
			return nil, "", err
		}

		if ok {
			return &Resolution{Element: c.Element, Selector: sel, Confidence: c.Confidence}, "", nil
		}
	}

	return nil, "no candidate above confidence floor", nil
}

func acceptable(ctx context.Context, el browser.Element, actionable bool) (bool, error) {
	if !actionable {
		return true, nil
	}

	visible, err := el.Visible(ctx)
	if err != nil {
		return false, err
	}

	if !visible {
		return false, nil
	}

	enabled, err := el.Enabled(ctx)
	if err != nil {
		return false, err
	}

	return enabled, nil
}

// locatorsFor translates a selector kind into page queries, most exact first.
// Semantic kinds get case-insensitive and substring fallbacks appended so a
// selector is only declared dead after the loose passes also miss.
func locatorsFor(sel models.ElementSelector) []browser.Locator {
	var base browser.Locator

	switch sel.Kind {
	case models.SelectorCSS:
		base = browser.Locator{Strategy: browser.ByCSS, Value: scopedCSS(sel)}
	case models.SelectorXPath:
		base = browser.Locator{Strategy: browser.ByXPath, Value: sel.Value}
	case models.SelectorID:
		base = browser.Locator{Strategy: browser.ByAttribute, Attribute: "id", Value: sel.Value}
	case models.SelectorName:
		base = browser.Locator{Strategy: browser.ByAttribute, Attribute: "name", Value: sel.Value}
	case models.SelectorClassName:
		base = browser.Locator{Strategy: browser.ByAttribute, Attribute: "class", Value: sel.Value, Substring: true}
	case models.SelectorTagName:
		base = browser.Locator{Strategy: browser.ByTag, Value: sel.Value}
	case models.SelectorLinkText:
		base = browser.Locator{Strategy: browser.ByText, Value: sel.Value}
	case models.SelectorPartialLinkText:
		base = browser.Locator{Strategy: browser.ByText, Value: sel.Value, Substring: true}
	case models.SelectorPlaceholder:
		base = browser.Locator{Strategy: browser.ByAttribute, Attribute: "placeholder", Value: sel.Value}
	case models.SelectorLabel:
		base = browser.Locator{Strategy: browser.ByAttribute, Attribute: "label", Value: sel.Value}
	case models.SelectorAriaLabel:
		base = browser.Locator{Strategy: browser.ByAttribute, Attribute: "aria-label", Value: sel.Value}
	case models.SelectorTestID:
		base = browser.Locator{Strategy: browser.ByAttribute, Attribute: "data-testid", Value: sel.Value}
	case models.SelectorRole:
		base = browser.Locator{Strategy: browser.ByAttribute, Attribute: "role", Value: sel.Value}
	case models.SelectorText:
		base = browser.Locator{Strategy: browser.ByText, Value: sel.Value}
	case models.SelectorVisual, models.SelectorSmart:
		return nil
	default:
		return nil
	}

	locators := []browser.Locator{base}

	if sel.Kind.Semantic() {
		folded := base
		folded.Fold = true

		loose := folded
		loose.Substring = true

		locators = append(locators, folded, loose)
	}

	return locators
}

// scopedCSS narrows a CSS selector by its recorded parent when both are CSS.
// Other parent kinds are hints for self-healing, not structural scoping.
func scopedCSS(sel models.ElementSelector) string {
	if sel.Parent != nil && sel.Parent.Kind == models.SelectorCSS && sel.Parent.Value != "" {
		return sel.Parent.Value + " " + sel.Value
	}

	return sel.Value
}
