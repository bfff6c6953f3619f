package teaching

import (
	"errors"
	"fmt"

	"github.com/xjanova/postxagent/pkg/models"
)

var (
	// ErrInvalidTransition is returned when a session operation is not legal
	// from the session's current status.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrNotRecording is returned when a step arrives while the session is
	// not actively recording.
	ErrNotRecording = errors.New("session is not recording")

	// ErrNoRecordedSteps is returned when review or completion is requested
	// for a session that captured nothing.
	ErrNoRecordedSteps = errors.New("session has no recorded steps")

	// ErrMissingElement is returned when a recorded step needs an element
	// fingerprint but carries none.
	ErrMissingElement = errors.New("recorded step has no element")
)

// TransitionError reports an operation attempted from the wrong status.
type TransitionError struct {
	SessionID string
	From      models.SessionStatus
	To        models.SessionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session %s: cannot go from %s to %s", e.SessionID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IsInvalidTransition reports whether err is a session state machine
// violation.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
