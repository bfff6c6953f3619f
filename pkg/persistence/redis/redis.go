// Package redis provides Redis-backed persistence. Documents are stored as
// JSON strings keyed by ID with a set per collection for listing.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/persistence"
)

const (
	workflowKeyPrefix = "postx:workflow:"
	workflowIndexKey  = "postx:workflows"
	sessionKeyPrefix  = "postx:session:"
	sessionIndexKey   = "postx:sessions"
)

// Persistence implements persistence.Persistence on Redis.
type Persistence struct {
	client goredis.UniversalClient
}

// NewPersistence connects using a redis:// URL.
func NewPersistence(ctx context.Context, redisURL string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{client: client}, nil
}

// NewPersistenceWithClient wraps an existing client, used by tests.
func NewPersistenceWithClient(client goredis.UniversalClient) *Persistence {
	return &Persistence{client: client}
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := p.client.SMembers(ctx, workflowIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow ids: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := p.WorkflowByID(ctx, id)
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue // index entry outlived the document
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := p.client.Get(ctx, workflowKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &workflow, nil
}

func (p *Persistence) ActiveWorkflow(ctx context.Context, platform, taskType string) (*models.Workflow, error) {
	workflows, err := p.Workflows(ctx)
	if err != nil {
		return nil, err
	}

	return persistence.PickActive(workflows, platform, taskType)
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	data, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, workflowKeyPrefix+workflow.ID, data, 0)
	pipe.SAdd(ctx, workflowIndexKey, workflow.ID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (p *Persistence) Sessions(ctx context.Context) ([]*models.TeachingSession, error) {
	ids, err := p.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session ids: %w", err)
	}

	sessions := make([]*models.TeachingSession, 0, len(ids))

	for _, id := range ids {
		session, err := p.SessionByID(ctx, id)
		if err != nil {
			if persistence.IsSessionNotFound(err) {
				continue
			}

			return nil, err
		}

		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (p *Persistence) SessionByID(ctx context.Context, id string) (*models.TeachingSession, error) {
	data, err := p.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.ErrSessionNotFound
		}

		return nil, err
	}

	var session models.TeachingSession

	err = json.Unmarshal(data, &session)
	if err != nil {
		return nil, err
	}

	return &session, nil
}

func (p *Persistence) SaveSession(ctx context.Context, session *models.TeachingSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, data, 0)
	pipe.SAdd(ctx, sessionIndexKey, session.ID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteSession(ctx context.Context, id string) error {
	removed, err := p.client.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return err
	}

	if removed == 0 {
		return persistence.ErrSessionNotFound
	}

	return p.client.SRem(ctx, sessionIndexKey, id).Err()
}
