package models

import "time"

// SessionStatus is the lifecycle state of a teaching session.
type SessionStatus string

const (
	SessionStarted   SessionStatus = "started"
	SessionRecording SessionStatus = "recording"
	SessionPaused    SessionStatus = "paused"
	SessionReviewing SessionStatus = "reviewing"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the session can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// RecordedElement is the fingerprint of the DOM element a user interacted
// with during a demonstration. Several selector strategies are captured at
// once so compilation and later self-healing have rich fallback material.
type RecordedElement struct {
	Tag         string            `json:"tag"`
	ID          string            `json:"id,omitempty"`
	Classes     []string          `json:"classes,omitempty"`
	Name        string            `json:"name,omitempty"`
	Type        string            `json:"type,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	AriaLabel   string            `json:"aria_label,omitempty"`
	TestID      string            `json:"test_id,omitempty"`
	Text        string            `json:"text,omitempty"`
	XPath       string            `json:"xpath,omitempty"`
	CSSPath     string            `json:"css_path,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Position    *Rect             `json:"position,omitempty"`
	Styles      map[string]string `json:"styles,omitempty"`
}

// RecordedStep is one observed user action inside a teaching session.
type RecordedStep struct {
	Timestamp     time.Time        `json:"timestamp"`
	Action        ActionKind       `json:"action"              validate:"required"`
	Element       *RecordedElement `json:"element,omitempty"`
	TypedValue    string           `json:"typed_value,omitempty"`
	InputVariable string           `json:"input_variable,omitempty"`
	Screenshot    []byte           `json:"screenshot,omitempty"`
	PageURL       string           `json:"page_url,omitempty"`
	PageTitle     string           `json:"page_title,omitempty"`
	Instruction   string           `json:"instruction,omitempty"`
}

// TeachingSession is a stateful recording of a live user demonstration. On
// completion it is compiled into a draft workflow; cancellation discards all
// recorded steps.
type TeachingSession struct {
	ID               string         `json:"id"`
	Platform         string         `json:"platform"            validate:"required"`
	TaskType         string         `json:"task_type"           validate:"required"`
	Status           SessionStatus  `json:"status"`
	CurrentStep      int            `json:"current_step"`
	Steps            []RecordedStep `json:"steps"`
	BrowserSessionID string         `json:"browser_session_id,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}
