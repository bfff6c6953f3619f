// Package teaching manages live demonstration sessions: a strict recording
// state machine, step capture, and compilation of reviewed recordings into
// draft workflows.
package teaching

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xjanova/postxagent/pkg/eventbus"
	"github.com/xjanova/postxagent/pkg/events"
	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/persistence"
	"github.com/xjanova/postxagent/pkg/workflow"
)

// Service drives teaching sessions through their lifecycle:
// started -> recording <-> paused -> reviewing -> completed | cancelled.
// Review is mandatory; a session can only complete after the user has seen
// what was captured.
type Service struct {
	persistence persistence.Persistence
	workflows   *workflow.Repository
	bus         eventbus.EventPublisher
	logger      *slog.Logger
}

func NewService(
	p persistence.Persistence,
	workflows *workflow.Repository,
	bus eventbus.EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		persistence: p,
		workflows:   workflows,
		bus:         bus,
		logger:      logger.With("module", "teaching"),
	}
}

func (s *Service) Sessions(ctx context.Context) ([]*models.TeachingSession, error) {
	return s.persistence.Sessions(ctx)
}

func (s *Service) Session(ctx context.Context, id string) (*models.TeachingSession, error) {
	return s.persistence.SessionByID(ctx, id)
}

// Start opens a new session in the started state. Recording begins only on
// an explicit BeginRecording call, so setup time is never captured.
func (s *Service) Start(ctx context.Context, platform, taskType, browserSessionID string) (*models.TeachingSession, error) {
	session := &models.TeachingSession{
		ID:               uuid.New().String(),
		Platform:         platform,
		TaskType:         taskType,
		Status:           models.SessionStarted,
		Steps:            []models.RecordedStep{},
		BrowserSessionID: browserSessionID,
		StartedAt:        time.Now(),
	}

	if err := s.persistence.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Teaching session started",
		"session_id", session.ID, "platform", platform, "task_type", taskType)

	return session, nil
}

// BeginRecording starts or resumes step capture.
func (s *Service) BeginRecording(ctx context.Context, id string) (*models.TeachingSession, error) {
	return s.transition(ctx, id, models.SessionRecording,
		models.SessionStarted, models.SessionPaused)
}

// Pause suspends capture without losing anything recorded so far.
func (s *Service) Pause(ctx context.Context, id string) (*models.TeachingSession, error) {
	return s.transition(ctx, id, models.SessionPaused, models.SessionRecording)
}

// Record appends one observed action. Steps are only accepted while the
// session is actively recording; anything arriving while paused is the
// user's own setup work, not part of the demonstration.
func (s *Service) Record(ctx context.Context, id string, step models.RecordedStep) (*models.TeachingSession, error) {
	session, err := s.persistence.SessionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Status != models.SessionRecording {
		return nil, ErrNotRecording
	}

	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now()
	}

	session.Steps = append(session.Steps, step)
	session.CurrentStep = len(session.Steps)

	if err := s.persistence.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Review freezes the recording for user inspection. Completion is only
// reachable through this state.
func (s *Service) Review(ctx context.Context, id string) (*models.TeachingSession, error) {
	session, err := s.persistence.SessionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Status != models.SessionRecording && session.Status != models.SessionPaused {
		return nil, &TransitionError{SessionID: id, From: session.Status, To: models.SessionReviewing}
	}

	if len(session.Steps) == 0 {
		return nil, ErrNoRecordedSteps
	}

	session.Status = models.SessionReviewing

	if err := s.persistence.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Complete compiles the reviewed recording into an active workflow and
// closes the session. The session document survives as the audit trail of
// where the workflow came from.
func (s *Service) Complete(ctx context.Context, id, workflowName string) (*models.Workflow, error) {
	session, err := s.persistence.SessionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Status != models.SessionReviewing {
		return nil, &TransitionError{SessionID: id, From: session.Status, To: models.SessionCompleted}
	}

	compiled, err := Compile(session, workflowName)
	if err != nil {
		return nil, err
	}

	compiled.Active = true

	created, err := s.workflows.Create(ctx, compiled)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session.Status = models.SessionCompleted
	session.CompletedAt = &now

	if err := s.persistence.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Teaching session compiled into workflow",
		"session_id", session.ID, "workflow_id", created.ID, "steps", len(created.Steps))

	s.publishPromoted(ctx, session, created)

	return created, nil
}

// Cancel abandons the session and discards every recorded step. Nothing of a
// cancelled demonstration is retained.
func (s *Service) Cancel(ctx context.Context, id string) error {
	session, err := s.persistence.SessionByID(ctx, id)
	if err != nil {
		return err
	}

	if session.Status.Terminal() {
		return &TransitionError{SessionID: id, From: session.Status, To: models.SessionCancelled}
	}

	s.logger.InfoContext(ctx, "Teaching session cancelled",
		"session_id", session.ID, "discarded_steps", len(session.Steps))

	return s.persistence.DeleteSession(ctx, id)
}

// PruneStale cancels sessions abandoned mid-demonstration: non-terminal and
// older than maxAge. Returns how many were discarded.
func (s *Service) PruneStale(ctx context.Context, maxAge time.Duration) (int, error) {
	sessions, err := s.persistence.Sessions(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	pruned := 0

	for _, session := range sessions {
		if session.Status.Terminal() || session.StartedAt.After(cutoff) {
			continue
		}

		if err := s.persistence.DeleteSession(ctx, session.ID); err != nil {
			s.logger.ErrorContext(ctx, "Failed to prune stale session",
				"session_id", session.ID, "error", err)

			continue
		}

		s.logger.InfoContext(ctx, "Pruned stale teaching session",
			"session_id", session.ID, "started_at", session.StartedAt)

		pruned++
	}

	return pruned, nil
}

func (s *Service) transition(
	ctx context.Context,
	id string,
	to models.SessionStatus,
	from ...models.SessionStatus,
) (*models.TeachingSession, error) {
	session, err := s.persistence.SessionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := false

	for _, status := range from {
		if session.Status == status {
			allowed = true

			break
		}
	}

	if !allowed {
		return nil, &TransitionError{SessionID: id, From: session.Status, To: to}
	}

	session.Status = to

	if err := s.persistence.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *Service) publishPromoted(ctx context.Context, session *models.TeachingSession, created *models.Workflow) {
	if s.bus == nil {
		return
	}

	event := events.WorkflowPromoted{
		BaseEvent: events.NewBaseEvent(events.WorkflowPromotedEvent, created.ID, ""),
		SessionID: session.ID,
		Platform:  created.Platform,
		TaskType:  created.TaskType,
		StepCount: len(created.Steps),
	}

	if err := s.bus.Publish(ctx, created.ID, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish promotion event",
			"session_id", session.ID, "workflow_id", created.ID, "error", err)
	}
}
