package workflow

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xjanova/postxagent/pkg/automation"
	"github.com/xjanova/postxagent/pkg/browser"
	"github.com/xjanova/postxagent/pkg/browser/browsertest"
	"github.com/xjanova/postxagent/pkg/eventbus"
	"github.com/xjanova/postxagent/pkg/events"
	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/persistence"
	"github.com/xjanova/postxagent/pkg/selector"
)

// capturingBus records every published event for assertion.
type capturingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *capturingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)

	return nil
}

func (b *capturingBus) typesSeen() []events.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make([]events.EventType, 0, len(b.events))
	for _, e := range b.events {
		seen = append(seen, e.GetType())
	}

	return seen
}

func (b *capturingBus) find(eventType events.EventType) (eventbus.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.events {
		if e.GetType() == eventType {
			return e, true
		}
	}

	return nil, false
}

// stubHealer hands out a fixed replacement selector.
type stubHealer struct {
	selector *models.ElementSelector
	err      error
	calls    int
}

func (h *stubHealer) Recover(_ context.Context, _ browser.Page, _ *models.Step) (*models.ElementSelector, error) {
	h.calls++

	return h.selector, h.err
}

type executorFixture struct {
	executor *Executor
	repo     *Repository
	bus      *capturingBus
	healer   *stubHealer
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()

	logger := testLogger()
	resolver := selector.NewResolver(selector.NewMatcherRegistry(), selector.DefaultConfidenceFloor, logger)
	repo := newTestRepository(t)
	bus := &capturingBus{}
	healer := &stubHealer{}

	executor := NewExecutor(
		automation.NewExecutor(resolver, logger),
		repo, bus, healer, nil, logger, DefaultConfig(),
	)

	return &executorFixture{executor: executor, repo: repo, bus: bus, healer: healer}
}

// createPostWorkflow is the canonical three step posting recipe: open the
// composer, type the text, submit and wait for the confirmation toast.
func createPostWorkflow(t *testing.T, repo *Repository) *models.Workflow {
	t.Helper()

	workflow, err := repo.Create(context.Background(), &models.Workflow{
		Platform: "facebook",
		TaskType: "create_post",
		Name:     "Facebook text post",
		Active:   true,
		Steps: []*models.Step{
			{
				ID:         "open-composer",
				Order:      1,
				Action:     models.ActionClick,
				Selector:   &models.ElementSelector{Kind: models.SelectorCSS, Value: "[data-testid=composer]"},
				Confidence: 0.9,
			},
			{
				ID:            "type-text",
				Order:         2,
				Action:        models.ActionType,
				Selector:      &models.ElementSelector{Kind: models.SelectorCSS, Value: "#composer-input"},
				InputVariable: "content.text",
				Confidence:    0.9,
			},
			{
				ID:       "submit",
				Order:    3,
				Action:   models.ActionClick,
				Selector: &models.ElementSelector{Kind: models.SelectorCSS, Value: "#post-button"},
				Condition: &models.SuccessCondition{
					Kind:     models.ConditionTextContains,
					Selector: &models.ElementSelector{Kind: models.SelectorCSS, Value: ".toast"},
					Expected: "Posted",
				},
				Confidence: 0.9,
			},
		},
	})
	require.NoError(t, err)

	return workflow
}

func createPostPage() (*browsertest.Page, *browsertest.Element) {
	page := browsertest.NewPage("https://facebook.test")
	page.Add(&browsertest.Element{NodeID: "composer", Tag: "div", Selectors: []string{"[data-testid=composer]"}})
	input := page.Add(&browsertest.Element{NodeID: "input", Tag: "textarea", Selectors: []string{"#composer-input"}})
	page.Add(&browsertest.Element{NodeID: "post", Tag: "button", Selectors: []string{"#post-button"}})
	page.Add(&browsertest.Element{NodeID: "toast", Tag: "div", Selectors: []string{".toast"}, TextValue: "Posted!"})

	return page, input
}

func TestExecutor_RunCompletes(t *testing.T) {
	f := newExecutorFixture(t)
	workflow := createPostWorkflow(t, f.repo)
	page, input := createPostPage()
	ctx := context.Background()

	result, err := f.executor.Run(ctx, page, workflow,
		models.Variables{"content.text": models.StringValue("hello world")})

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, result.Status)
	assert.True(t, result.Success)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, "hello world", input.Typed)

	// Run statistics are folded into the stored workflow.
	stored, err := f.repo.FetchByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.SuccessCount)
	assert.InDelta(t, 0.6, stored.Confidence, 1e-9)
	require.NotNil(t, stored.LastSuccessAt)

	seen := f.bus.typesSeen()
	assert.Contains(t, seen, events.ExecutionStartedEvent)
	assert.Contains(t, seen, events.ExecutionCompletedEvent)
	assert.NotContains(t, seen, events.ExecutionFailedEvent)
}

func TestExecutor_RunFailureShortCircuits(t *testing.T) {
	f := newExecutorFixture(t)
	workflow := createPostWorkflow(t, f.repo)

	// No composer input on the page; step 2 cannot resolve.
	page := browsertest.NewPage("https://facebook.test")
	page.Add(&browsertest.Element{NodeID: "composer", Tag: "div", Selectors: []string{"[data-testid=composer]"}})
	post := page.Add(&browsertest.Element{NodeID: "post", Tag: "button", Selectors: []string{"#post-button"}})

	ctx := context.Background()

	result, err := f.executor.Run(ctx, page, workflow,
		models.Variables{"content.text": models.StringValue("hello")})

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, result.Status)
	assert.False(t, result.Success)
	require.NotNil(t, result.FailedOrder)
	assert.Equal(t, 2, *result.FailedOrder)
	assert.Equal(t, "type-text", result.FailedStep)
	assert.NotEmpty(t, result.Error)

	// The submit step never ran.
	require.Len(t, result.Steps, 2)
	assert.Equal(t, 0, post.Clicks)

	stored, err := f.repo.FetchByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FailureCount)
	assert.InDelta(t, 0.4, stored.Confidence, 1e-9)

	event, ok := f.bus.find(events.ExecutionFailedEvent)

	require.True(t, ok)
	failed, ok := event.(events.ExecutionFailed)
	require.True(t, ok)
	assert.Equal(t, 2, failed.FailedOrder)
	assert.Equal(t, "type-text", failed.FailedStep)
}

func TestExecutor_OptionalStepFailureIsSkipped(t *testing.T) {
	f := newExecutorFixture(t)

	workflow, err := f.repo.Create(context.Background(), &models.Workflow{
		Platform: "facebook",
		TaskType: "create_post",
		Name:     "Post with optional dialog dismissal",
		Active:   true,
		Steps: []*models.Step{
			{
				ID:       "dismiss-dialog",
				Order:    1,
				Action:   models.ActionClick,
				Selector: &models.ElementSelector{Kind: models.SelectorCSS, Value: ".cookie-banner"},
				Optional: true,
			},
			{
				ID:       "submit",
				Order:    2,
				Action:   models.ActionClick,
				Selector: &models.ElementSelector{Kind: models.SelectorCSS, Value: "#post-button"},
			},
		},
	})
	require.NoError(t, err)

	page := browsertest.NewPage("https://facebook.test")
	post := page.Add(&browsertest.Element{NodeID: "post", Tag: "button", Selectors: []string{"#post-button"}})

	result, err := f.executor.Run(context.Background(), page, workflow, nil)

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, result.Status)
	require.Len(t, result.Steps, 2)
	assert.True(t, result.Steps[0].Skipped)
	assert.False(t, result.Steps[0].Success)
	assert.True(t, result.Steps[1].Success)
	assert.Equal(t, 1, post.Clicks)

	_, ok := f.bus.find(events.StepSkippedEvent)
	assert.True(t, ok)
}

func TestExecutor_CancellationAtStepBoundary(t *testing.T) {
	f := newExecutorFixture(t)
	workflow := createPostWorkflow(t, f.repo)
	page, _ := createPostPage()

	// Cancellation is honored at the next step boundary; cancelling before
	// the run makes that the very first one.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.executor.Run(ctx, page, workflow,
		models.Variables{"content.text": models.StringValue("hello")})

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCancelled, result.Status)
	assert.Empty(t, result.Steps)

	// A cancelled run must not touch workflow statistics.
	stored, err := f.repo.FetchByID(context.Background(), workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.SuccessCount)
	assert.Equal(t, 0, stored.FailureCount)
	assert.InDelta(t, InitialConfidence, stored.Confidence, 1e-9)

	_, ok := f.bus.find(events.ExecutionCancelledEvent)
	assert.True(t, ok)
}

func TestExecutor_HealingRecoversAndPersists(t *testing.T) {
	f := newExecutorFixture(t)

	workflow, err := f.repo.Create(context.Background(), &models.Workflow{
		Platform: "facebook",
		TaskType: "create_post",
		Name:     "Post with stale selector",
		Active:   true,
		Steps: []*models.Step{
			{
				ID:       "submit",
				Order:    1,
				Action:   models.ActionClick,
				Selector: &models.ElementSelector{Kind: models.SelectorCSS, Value: "#old-post-button"},
			},
		},
	})
	require.NoError(t, err)

	// The page has moved on; only the test id still matches.
	page := browsertest.NewPage("https://facebook.test")
	post := page.Add(&browsertest.Element{
		NodeID: "post", Tag: "button",
		Attrs: map[string]string{"data-testid": "post-button"},
	})

	f.healer.selector = &models.ElementSelector{
		Kind: models.SelectorTestID, Value: "post-button", Confidence: 0.5,
	}

	result, err := f.executor.Run(context.Background(), page, workflow, nil)

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, result.Status)
	require.Len(t, result.Steps, 1)
	assert.True(t, result.Steps[0].Recovered)
	assert.Equal(t, 1, post.Clicks)
	assert.Equal(t, 1, f.healer.calls)

	// The recovered selector is stored as a new alternative.
	stored, err := f.repo.FetchByID(context.Background(), workflow.ID)
	require.NoError(t, err)

	step, ok := stored.StepByID("submit")
	require.True(t, ok)
	require.Len(t, step.Alternatives, 1)
	assert.Equal(t, models.SelectorTestID, step.Alternatives[0].Kind)

	event, ok := f.bus.find(events.SelectorRecoveredEvent)

	require.True(t, ok)
	recovered, ok := event.(events.SelectorRecovered)
	require.True(t, ok)
	assert.Equal(t, "post-button", recovered.Value)
	assert.Equal(t, "#old-post-button", recovered.Previous)
}

func TestExecutor_HealerNotConsultedForAssertionFailures(t *testing.T) {
	f := newExecutorFixture(t)

	workflow, err := f.repo.Create(context.Background(), &models.Workflow{
		Platform: "facebook",
		TaskType: "create_post",
		Name:     "Post asserting the wrong text",
		Active:   true,
		Steps: []*models.Step{
			{
				ID:         "check",
				Order:      1,
				Action:     models.ActionAssertText,
				Selector:   &models.ElementSelector{Kind: models.SelectorCSS, Value: ".status"},
				InputValue: "published",
			},
		},
	})
	require.NoError(t, err)

	page := browsertest.NewPage("https://facebook.test")
	page.Add(&browsertest.Element{NodeID: "s", Tag: "div", Selectors: []string{".status"}, TextValue: "queued"})

	result, err := f.executor.Run(context.Background(), page, workflow, nil)

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, result.Status)
	assert.Equal(t, 0, f.healer.calls)
}

func TestExecutor_StepOutputsFlowIntoLaterSteps(t *testing.T) {
	f := newExecutorFixture(t)

	workflow, err := f.repo.Create(context.Background(), &models.Workflow{
		Platform: "facebook",
		TaskType: "create_post",
		Name:     "Extract then reuse",
		Active:   true,
		Steps: []*models.Step{
			{
				ID:        "grab-link",
				Order:     1,
				Action:    models.ActionExtractText,
				Selector:  &models.ElementSelector{Kind: models.SelectorCSS, Value: ".permalink"},
				OutputKey: "post_ref",
			},
			{
				ID:         "note-it",
				Order:      2,
				Action:     models.ActionType,
				Selector:   &models.ElementSelector{Kind: models.SelectorCSS, Value: "#notes"},
				InputValue: "saved {{post_ref}}",
			},
		},
	})
	require.NoError(t, err)

	page := browsertest.NewPage("https://facebook.test")
	page.Add(&browsertest.Element{NodeID: "l", Tag: "a", Selectors: []string{".permalink"}, TextValue: "post-42"})
	notes := page.Add(&browsertest.Element{NodeID: "n", Tag: "input", Selectors: []string{"#notes"}})

	callerVars := models.Variables{}

	result, err := f.executor.Run(context.Background(), page, workflow, callerVars)

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, result.Status)
	assert.Equal(t, "saved post-42", notes.Typed)
	assert.Equal(t, "post-42", result.Outputs["post_ref"].AsString())

	// Outputs accumulate on the run copy, never the caller's map.
	assert.Empty(t, callerVars)
}

func TestExecutor_RunActiveWithoutWorkflow(t *testing.T) {
	f := newExecutorFixture(t)
	page := browsertest.NewPage("https://facebook.test")

	_, err := f.executor.RunActive(context.Background(), page, "facebook", "create_post", nil)

	require.Error(t, err)
	assert.True(t, persistence.IsNoActiveWorkflow(err))
}
