package selector

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xjanova/postxagent/pkg/browser"
	"github.com/xjanova/postxagent/pkg/browser/browsertest"
	"github.com/xjanova/postxagent/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver() *Resolver {
	return NewResolver(NewMatcherRegistry(), DefaultConfidenceFloor, testLogger())
}

func TestResolver_PrimaryWins(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	primaryEl := page.Add(&browsertest.Element{NodeID: "n1", Tag: "button", Selectors: []string{"#post"}})
	page.Add(&browsertest.Element{NodeID: "n2", Tag: "button", IDAttr: "fallback"})

	r := newTestResolver()

	res, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorCSS, Value: "#post"},
		[]models.ElementSelector{{Kind: models.SelectorID, Value: "fallback"}},
		true)

	require.NoError(t, err)
	assert.Equal(t, -1, res.SelectorIndex)
	assert.Equal(t, primaryEl.ID(), res.Element.ID())
}

func TestResolver_FallsBackInOrder(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	page.Add(&browsertest.Element{NodeID: "n3", Tag: "button", IDAttr: "third"})

	r := newTestResolver()

	// Only the third alternative matches; every earlier one must have been
	// tried and passed over.
	res, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorCSS, Value: "#gone"},
		[]models.ElementSelector{
			{Kind: models.SelectorID, Value: "first"},
			{Kind: models.SelectorID, Value: "second"},
			{Kind: models.SelectorID, Value: "third"},
		},
		true)

	require.NoError(t, err)
	assert.Equal(t, 2, res.SelectorIndex)
	assert.Equal(t, "n3", res.Element.ID())
}

func TestResolver_ResolutionIsIdempotent(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	page.Add(&browsertest.Element{NodeID: "n1", Tag: "button", Selectors: []string{"#post"}})
	page.Add(&browsertest.Element{NodeID: "n2", Tag: "button", IDAttr: "fallback"})

	r := newTestResolver()
	sel := &models.ElementSelector{Kind: models.SelectorCSS, Value: "#post"}
	alts := []models.ElementSelector{{Kind: models.SelectorID, Value: "fallback"}}

	first, err := r.Resolve(context.Background(), page, sel, alts, true)
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), page, sel, alts, true)
	require.NoError(t, err)

	assert.Equal(t, first.Element.ID(), second.Element.ID())
	assert.Equal(t, first.SelectorIndex, second.SelectorIndex)
}

func TestResolver_NotFoundListsEveryAttempt(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	r := newTestResolver()

	_, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorCSS, Value: "#gone"},
		[]models.ElementSelector{{Kind: models.SelectorID, Value: "also-gone"}},
		false)

	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var nf *NotFoundError

	require.ErrorAs(t, err, &nf)
	require.Len(t, nf.Tried, 2)
	assert.Equal(t, models.SelectorCSS, nf.Tried[0].Kind)
	assert.Equal(t, models.SelectorID, nf.Tried[1].Kind)
}

func TestResolver_SemanticKindsFoldCase(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	page.Add(&browsertest.Element{NodeID: "n1", Tag: "button", TextValue: "Create Post"})

	r := newTestResolver()

	res, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorText, Value: "create post"},
		nil, true)

	require.NoError(t, err)
	assert.Equal(t, "n1", res.Element.ID())
}

func TestResolver_SemanticSubstringPass(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	page.Add(&browsertest.Element{
		NodeID: "n1", Tag: "input",
		Attrs: map[string]string{"placeholder": "What's on your mind, Alice?"},
	})

	r := newTestResolver()

	res, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorPlaceholder, Value: "what's on your mind"},
		nil, true)

	require.NoError(t, err)
	assert.Equal(t, "n1", res.Element.ID())
}

func TestResolver_NonSemanticKindsStayExact(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	page.Add(&browsertest.Element{NodeID: "n1", Tag: "div", IDAttr: "Composer"})

	r := newTestResolver()

	_, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorID, Value: "composer"},
		nil, false)

	assert.True(t, IsNotFound(err))
}

func TestResolver_ActionableSkipsHiddenAndDisabled(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	page.Add(&browsertest.Element{NodeID: "hidden", Tag: "button", Selectors: []string{".submit"}, Hidden: true})
	page.Add(&browsertest.Element{NodeID: "disabled", Tag: "button", Selectors: []string{".submit"}, Disabled: true})
	page.Add(&browsertest.Element{NodeID: "live", Tag: "button", Selectors: []string{".submit"}})

	r := newTestResolver()

	res, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorCSS, Value: ".submit"},
		nil, true)

	require.NoError(t, err)
	assert.Equal(t, "live", res.Element.ID())
}

func TestResolver_NonActionableAcceptsHidden(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	page.Add(&browsertest.Element{NodeID: "hidden", Tag: "div", Selectors: []string{".toast"}, Hidden: true})

	r := newTestResolver()

	res, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorCSS, Value: ".toast"},
		nil, false)

	require.NoError(t, err)
	assert.Equal(t, "hidden", res.Element.ID())
}

func TestResolver_PageFailureAborts(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	page.Crash()

	r := newTestResolver()

	_, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorCSS, Value: "#post"},
		[]models.ElementSelector{{Kind: models.SelectorID, Value: "fallback"}},
		true)

	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, browser.ErrPageCrashed)
}

// stubMatcher is a canned pluggable matcher.
type stubMatcher struct {
	candidates []Candidate
	err        error
	calls      int
}

func (m *stubMatcher) Match(_ context.Context, _ browser.Page, _ models.ElementSelector) ([]Candidate, error) {
	m.calls++

	return m.candidates, m.err
}

func TestResolver_PluggableAppliesConfidenceFloor(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	low := page.Add(&browsertest.Element{NodeID: "low", Tag: "button"})
	high := page.Add(&browsertest.Element{NodeID: "high", Tag: "button"})

	matcher := &stubMatcher{candidates: []Candidate{
		{Element: low, Confidence: 0.4},
		{Element: high, Confidence: 0.8},
	}}

	registry := NewMatcherRegistry()
	registry.Register(models.SelectorSmart, matcher)

	r := NewResolver(registry, DefaultConfidenceFloor, testLogger())

	res, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorSmart, Value: "the post button"},
		nil, true)

	require.NoError(t, err)
	assert.Equal(t, "high", res.Element.ID())
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestResolver_PluggableBelowFloorIsNotFound(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	low := page.Add(&browsertest.Element{NodeID: "low", Tag: "button"})

	matcher := &stubMatcher{candidates: []Candidate{{Element: low, Confidence: 0.5}}}

	registry := NewMatcherRegistry()
	registry.Register(models.SelectorSmart, matcher)

	r := NewResolver(registry, DefaultConfidenceFloor, testLogger())

	_, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorSmart, Value: "anything"},
		nil, true)

	assert.True(t, IsNotFound(err))
}

func TestResolver_UnregisteredPluggableKindKeepsTrying(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	page.Add(&browsertest.Element{NodeID: "n1", Tag: "button", IDAttr: "fallback"})

	r := newTestResolver()

	res, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{Kind: models.SelectorVisual, Value: "abc123"},
		[]models.ElementSelector{{Kind: models.SelectorID, Value: "fallback"}},
		true)

	require.NoError(t, err)
	assert.Equal(t, 0, res.SelectorIndex)
}

func TestResolver_CSSParentScoping(t *testing.T) {
	page := browsertest.NewPage("https://example.test")
	scoped := page.Add(&browsertest.Element{NodeID: "scoped", Tag: "button", Selectors: []string{".dialog .submit"}})
	page.Add(&browsertest.Element{NodeID: "loose", Tag: "button", Selectors: []string{".submit"}})

	r := newTestResolver()

	res, err := r.Resolve(context.Background(), page,
		&models.ElementSelector{
			Kind:   models.SelectorCSS,
			Value:  ".submit",
			Parent: &models.ElementSelector{Kind: models.SelectorCSS, Value: ".dialog"},
		},
		nil, true)

	require.NoError(t, err)
	assert.Equal(t, scoped.ID(), res.Element.ID())
}
