package selector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xjanova/postxagent/pkg/models"
)

// Tried records one selector variant that failed to resolve, and why. The
// self-healing loop consumes these to decide what to attempt next.
type Tried struct {
	Kind   models.SelectorKind `json:"kind"`
	Value  string              `json:"value"`
	Reason string              `json:"reason"`
}

// NotFoundError is returned when neither the primary selector nor any
// alternative matched an acceptable element.
type NotFoundError struct {
	Tried []Tried
}

func (e *NotFoundError) Error() string {
	parts := make([]string, 0, len(e.Tried))
	for _, t := range e.Tried {
		parts = append(parts, fmt.Sprintf("%s=%q (%s)", t.Kind, t.Value, t.Reason))
	}

	return "no selector matched: tried " + strings.Join(parts, ", ")
}

// IsNotFound reports whether err is a selector resolution failure.
func IsNotFound(err error) bool {
	var nf *NotFoundError

	return errors.As(err, &nf)
}
