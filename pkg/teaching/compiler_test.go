package teaching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xjanova/postxagent/pkg/models"
)

func TestCompile_SelectorPriority(t *testing.T) {
	session := &models.TeachingSession{
		ID:       "session-1",
		Platform: "facebook",
		TaskType: "create_post",
		Steps: []models.RecordedStep{
			{
				Action: models.ActionClick,
				Element: &models.RecordedElement{
					Tag:       "button",
					TestID:    "post-button",
					ID:        "post",
					Name:      "submit",
					CSSPath:   "div.toolbar > button#post",
					XPath:     "//button[@id='post']",
					Text:      "Post",
					AriaLabel: "Post to feed",
				},
			},
		},
	}

	compiled, err := Compile(session, "Facebook text post")

	require.NoError(t, err)
	require.Len(t, compiled.Steps, 1)

	step := compiled.Steps[0]

	// Test id is the most stable strategy and becomes the primary.
	require.NotNil(t, step.Selector)
	assert.Equal(t, models.SelectorTestID, step.Selector.Kind)
	assert.Equal(t, "post-button", step.Selector.Value)
	assert.InDelta(t, 0.9, step.Selector.Confidence, 1e-9)
	assert.InDelta(t, 0.9, step.Confidence, 1e-9)

	wantKinds := []models.SelectorKind{
		models.SelectorID,
		models.SelectorName,
		models.SelectorCSS,
		models.SelectorXPath,
		models.SelectorText,
		models.SelectorAriaLabel,
	}
	require.Len(t, step.Alternatives, len(wantKinds))

	for i, alt := range step.Alternatives {
		assert.Equal(t, wantKinds[i], alt.Kind)
		assert.InDelta(t, 0.7, alt.Confidence, 1e-9)
	}
}

func TestCompile_SelectorsCarryHealingHints(t *testing.T) {
	session := &models.TeachingSession{
		ID:       "session-1",
		Platform: "facebook",
		TaskType: "create_post",
		Steps: []models.RecordedStep{
			{
				Action: models.ActionType,
				Element: &models.RecordedElement{
					Tag:         "textarea",
					ID:          "composer",
					Placeholder: "What's on your mind?",
					Text:        "",
				},
			},
		},
	}

	compiled, err := Compile(session, "Facebook text post")

	require.NoError(t, err)

	sel := compiled.Steps[0].Selector

	require.NotNil(t, sel)
	assert.Equal(t, "composer", sel.Attributes["id"])
	assert.Equal(t, "What's on your mind?", sel.Attributes["placeholder"])
}

func TestCompile_OrdersAreContiguous(t *testing.T) {
	session := &models.TeachingSession{
		ID:       "session-1",
		Platform: "facebook",
		TaskType: "create_post",
		Steps: []models.RecordedStep{
			{Action: models.ActionNavigate, PageURL: "https://facebook.test"},
			{Action: models.ActionClick, Element: &models.RecordedElement{Tag: "button", TestID: "a"}},
			{Action: models.ActionClick, Element: &models.RecordedElement{Tag: "button", TestID: "b"}},
		},
	}

	compiled, err := Compile(session, "Facebook text post")

	require.NoError(t, err)
	require.Len(t, compiled.Steps, 3)

	for i, step := range compiled.Steps {
		assert.Equal(t, i+1, step.Order)
		assert.NotEmpty(t, step.ID)
	}
}

func TestCompile_NavigateTakesRecordedURL(t *testing.T) {
	session := &models.TeachingSession{
		ID:       "session-1",
		Platform: "facebook",
		TaskType: "create_post",
		Steps: []models.RecordedStep{
			{Action: models.ActionNavigate, PageURL: "https://facebook.test/groups"},
		},
	}

	compiled, err := Compile(session, "Group post")

	require.NoError(t, err)
	assert.Equal(t, "https://facebook.test/groups", compiled.Steps[0].InputValue)
	assert.Nil(t, compiled.Steps[0].Selector)
}

func TestCompile_InputVariableSuppressesLiteral(t *testing.T) {
	session := &models.TeachingSession{
		ID:       "session-1",
		Platform: "facebook",
		TaskType: "create_post",
		Steps: []models.RecordedStep{
			{
				Action:        models.ActionType,
				TypedValue:    "my demo text",
				InputVariable: "content.text",
				Element:       &models.RecordedElement{Tag: "textarea", ID: "composer"},
			},
		},
	}

	compiled, err := Compile(session, "Facebook text post")

	require.NoError(t, err)
	assert.Equal(t, "content.text", compiled.Steps[0].InputVariable)
	// The demonstration's literal never leaks into the workflow.
	assert.Empty(t, compiled.Steps[0].InputValue)
}

func TestCompile_RejectsStepsWithoutElement(t *testing.T) {
	session := &models.TeachingSession{
		ID:       "session-1",
		Platform: "facebook",
		TaskType: "create_post",
		Steps: []models.RecordedStep{
			{Action: models.ActionClick},
		},
	}

	_, err := Compile(session, "Facebook text post")

	assert.ErrorIs(t, err, ErrMissingElement)
}

func TestCompile_RejectsEmptySessions(t *testing.T) {
	session := &models.TeachingSession{ID: "session-1", Platform: "facebook", TaskType: "create_post"}

	_, err := Compile(session, "Facebook text post")

	assert.ErrorIs(t, err, ErrNoRecordedSteps)
}
