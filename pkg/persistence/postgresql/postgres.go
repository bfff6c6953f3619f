// Package postgresql provides PostgreSQL persistence for workflows and
// teaching sessions. Documents are rows with their step/recording payloads
// stored as JSONB.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver
	"github.com/xjanova/postxagent/pkg/models"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
	sessionRepo  *SessionRepository
}

// NewPersistence connects, runs migrations and returns the store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	postgres := &Persistence{
		db:           database,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(database, logger),
		sessionRepo:  NewSessionRepository(database, logger),
	}

	err = runMigrations(ctx, logger, database)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return p.workflowRepo.GetAll(ctx)
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

func (p *Persistence) ActiveWorkflow(ctx context.Context, platform, taskType string) (*models.Workflow, error) {
	return p.workflowRepo.GetActive(ctx, platform, taskType)
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return p.workflowRepo.Save(ctx, workflow)
}

func (p *Persistence) Sessions(ctx context.Context) ([]*models.TeachingSession, error) {
	return p.sessionRepo.GetAll(ctx)
}

func (p *Persistence) SessionByID(ctx context.Context, id string) (*models.TeachingSession, error) {
	return p.sessionRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveSession(ctx context.Context, session *models.TeachingSession) error {
	return p.sessionRepo.Save(ctx, session)
}

func (p *Persistence) DeleteSession(ctx context.Context, id string) error {
	return p.sessionRepo.Delete(ctx, id)
}
