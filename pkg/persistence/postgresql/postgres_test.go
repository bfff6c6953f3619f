package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/persistence"
	"github.com/xjanova/postxagent/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"teaching_sessions", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("postx_test"),
			postgres.WithUsername("postx"),
			postgres.WithPassword("postx"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func newStoredWorkflow(version int, active bool) *models.Workflow {
	lastSuccess := time.Now().UTC().Truncate(time.Millisecond)

	return &models.Workflow{
		ID:           uuid.New().String(),
		Platform:     "facebook",
		TaskType:     "create_post",
		Name:         "Facebook text post",
		Version:      version,
		Active:       active,
		SuccessCount: 2,
		FailureCount: 1,
		Confidence:   0.66,
		Metadata:     map[string]any{"teaching_session_id": uuid.New().String()},
		Steps: []*models.Step{
			{
				ID:       "s1",
				Order:    1,
				Action:   models.ActionClick,
				Selector: &models.ElementSelector{Kind: models.SelectorTestID, Value: "post-button"},
				Alternatives: []models.ElementSelector{
					{Kind: models.SelectorCSS, Value: "#post"},
				},
				Confidence: 0.9,
			},
			{
				ID:            "s2",
				Order:         2,
				Action:        models.ActionType,
				Selector:      &models.ElementSelector{Kind: models.SelectorCSS, Value: "#composer"},
				InputVariable: "content.text",
			},
		},
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:     time.Now().UTC().Truncate(time.Millisecond),
		LastSuccessAt: &lastSuccess,
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'workflows')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "workflows table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'teaching_sessions')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "teaching_sessions table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestSaveAndRetrieveWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := newStoredWorkflow(1, true)

	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	loaded, err := p.WorkflowByID(ctx, workflow.ID)

	require.NoError(t, err)
	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Equal(t, 2, loaded.SuccessCount)
	assert.Equal(t, 1, loaded.FailureCount)
	assert.InDelta(t, 0.66, loaded.Confidence, 1e-9)
	assert.True(t, loaded.Active)
	require.NotNil(t, loaded.LastSuccessAt)

	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, models.SelectorTestID, loaded.Steps[0].Selector.Kind)
	require.Len(t, loaded.Steps[0].Alternatives, 1)
	assert.Equal(t, "content.text", loaded.Steps[1].InputVariable)

	assert.Equal(t, workflow.Metadata["teaching_session_id"], loaded.Metadata["teaching_session_id"])
}

func TestWorkflowByID_NotFound(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, err := p.WorkflowByID(ctx, uuid.New().String())

	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestSaveWorkflow_Upsert(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := newStoredWorkflow(1, true)
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	workflow.Name = "Renamed"
	workflow.Version = 2
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	loaded, err := p.WorkflowByID(ctx, workflow.ID)

	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.Equal(t, 2, loaded.Version)

	all, err := p.Workflows(ctx)

	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestActiveWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	v1 := newStoredWorkflow(1, true)
	v2 := newStoredWorkflow(2, true)
	v3Inactive := newStoredWorkflow(3, false)

	for _, w := range []*models.Workflow{v1, v2, v3Inactive} {
		require.NoError(t, p.SaveWorkflow(ctx, w))
	}

	active, err := p.ActiveWorkflow(ctx, "facebook", "create_post")

	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)

	_, err = p.ActiveWorkflow(ctx, "twitter", "create_post")

	assert.True(t, persistence.IsNoActiveWorkflow(err))
}

func TestSaveAndRetrieveSession(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	session := &models.TeachingSession{
		ID:          uuid.New().String(),
		Platform:    "facebook",
		TaskType:    "create_post",
		Status:      models.SessionRecording,
		CurrentStep: 1,
		Steps: []models.RecordedStep{
			{
				Action:    models.ActionClick,
				Timestamp: time.Now().UTC().Truncate(time.Millisecond),
				Element: &models.RecordedElement{
					Tag:    "button",
					TestID: "post-button",
					Text:   "Post",
				},
				PageURL: "https://facebook.test",
			},
		},
		BrowserSessionID: "browser-1",
		StartedAt:        time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, p.SaveSession(ctx, session))

	loaded, err := p.SessionByID(ctx, session.ID)

	require.NoError(t, err)
	assert.Equal(t, models.SessionRecording, loaded.Status)
	assert.Equal(t, 1, loaded.CurrentStep)
	assert.Equal(t, "browser-1", loaded.BrowserSessionID)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, "post-button", loaded.Steps[0].Element.TestID)
}

func TestSessionByID_NotFound(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, err := p.SessionByID(ctx, uuid.New().String())

	assert.ErrorIs(t, err, persistence.ErrSessionNotFound)
}

func TestDeleteSession(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	session := &models.TeachingSession{
		ID:        uuid.New().String(),
		Platform:  "facebook",
		TaskType:  "create_post",
		Status:    models.SessionStarted,
		StartedAt: time.Now().UTC(),
	}

	require.NoError(t, p.SaveSession(ctx, session))
	require.NoError(t, p.DeleteSession(ctx, session.ID))

	_, err := p.SessionByID(ctx, session.ID)

	assert.ErrorIs(t, err, persistence.ErrSessionNotFound)

	err = p.DeleteSession(ctx, session.ID)

	assert.ErrorIs(t, err, persistence.ErrSessionNotFound)
}
