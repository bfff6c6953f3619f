package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/persistence"
)

// SessionRepository handles teaching session rows.
type SessionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSessionRepository(db *sql.DB, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, logger: logger}
}

const sessionColumns = `id, platform, task_type, status, current_step, steps,
	browser_session_id, started_at, completed_at`

func (r *SessionRepository) GetAll(ctx context.Context) ([]*models.TeachingSession, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM teaching_sessions ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.TeachingSession

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.TeachingSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM teaching_sessions WHERE id = $1`, id)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSessionNotFound
		}

		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	return session, nil
}

func (r *SessionRepository) Save(ctx context.Context, session *models.TeachingSession) error {
	steps, err := json.Marshal(session.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal session steps: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO teaching_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step = EXCLUDED.current_step,
			steps = EXCLUDED.steps,
			browser_session_id = EXCLUDED.browser_session_id,
			completed_at = EXCLUDED.completed_at`,
		session.ID, session.Platform, session.TaskType, session.Status,
		session.CurrentStep, steps, nullable(session.BrowserSessionID),
		session.StartedAt, session.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}

	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teaching_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return persistence.ErrSessionNotFound
	}

	return nil
}

func scanSession(row rowScanner) (*models.TeachingSession, error) {
	var (
		session          models.TeachingSession
		steps            []byte
		browserSessionID sql.NullString
	)

	err := row.Scan(
		&session.ID, &session.Platform, &session.TaskType, &session.Status,
		&session.CurrentStep, &steps, &browserSessionID,
		&session.StartedAt, &session.CompletedAt)
	if err != nil {
		return nil, err
	}

	session.BrowserSessionID = browserSessionID.String

	err = json.Unmarshal(steps, &session.Steps)
	if err != nil {
		return nil, err
	}

	return &session, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
