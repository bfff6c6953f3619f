package web_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/web"
)

// TestTeachingSessionLifecycle drives a full demonstration through the HTTP
// surface: start, record, review, complete, and verify the compiled workflow
// became the active one.
func TestTeachingSessionLifecycle(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/sessions", web.StartSessionRequest{
		Platform:         "facebook",
		TaskType:         "create_post",
		BrowserSessionID: "browser-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session models.TeachingSession

	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, models.SessionStarted, session.Status)

	base := "/sessions/" + session.ID

	resp, body = doJSON(t, app, http.MethodPost, base+"/recording", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, models.SessionRecording, session.Status)

	steps := []models.RecordedStep{
		{
			Action:  models.ActionNavigate,
			PageURL: "https://facebook.test",
		},
		{
			Action:        models.ActionType,
			InputVariable: "content.text",
			Element: &models.RecordedElement{
				Tag:         "textarea",
				ID:          "composer",
				Placeholder: "What's on your mind?",
			},
		},
		{
			Action: models.ActionClick,
			Element: &models.RecordedElement{
				Tag:    "button",
				TestID: "post-button",
				Text:   "Post",
			},
		},
	}

	for _, step := range steps {
		resp, body = doJSON(t, app, http.MethodPost, base+"/steps", step)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, 3, session.CurrentStep)

	resp, _ = doJSON(t, app, http.MethodPost, base+"/review", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, base+"/complete", web.CompleteSessionRequest{
		Name: "Facebook text post",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var compiled models.Workflow

	require.NoError(t, json.Unmarshal(body, &compiled))
	assert.True(t, compiled.Active)
	require.Len(t, compiled.Steps, 3)
	assert.Equal(t, models.SelectorTestID, compiled.Steps[2].Selector.Kind)

	// The compiled workflow now answers the active lookup.
	resp, body = doJSON(t, app, http.MethodGet, "/workflows/active/facebook/create_post", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var active models.Workflow

	require.NoError(t, json.Unmarshal(body, &active))
	assert.Equal(t, compiled.ID, active.ID)

	// The session is closed and survives as the audit trail.
	resp, body = doJSON(t, app, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, models.SessionCompleted, session.Status)
}

func TestTeachingSessionIllegalTransitionsOverHTTP(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/sessions", web.StartSessionRequest{
		Platform: "facebook",
		TaskType: "create_post",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session models.TeachingSession

	require.NoError(t, json.Unmarshal(body, &session))

	base := "/sessions/" + session.ID

	// Completion without review is a state conflict.
	resp, _ = doJSON(t, app, http.MethodPost, base+"/complete", web.CompleteSessionRequest{
		Name: "Facebook text post",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Recording a step before recording started is one too.
	resp, _ = doJSON(t, app, http.MethodPost, base+"/steps", models.RecordedStep{
		Action: models.ActionClick,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Reviewing an empty recording is a bad request.
	resp, _ = doJSON(t, app, http.MethodPost, base+"/recording", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, base+"/review", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTeachingSessionCancelOverHTTP(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/sessions", web.StartSessionRequest{
		Platform: "facebook",
		TaskType: "create_post",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session models.TeachingSession

	require.NoError(t, json.Unmarshal(body, &session))

	resp, _ = doJSON(t, app, http.MethodDelete, "/sessions/"+session.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Everything about the session is gone.
	resp, _ = doJSON(t, app, http.MethodGet, "/sessions/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
