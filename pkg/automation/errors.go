// Package automation executes individual workflow steps against a live page,
// applying the configured wait, timeout and retry policy.
package automation

import (
	"errors"
	"fmt"

	"github.com/xjanova/postxagent/pkg/browser"
	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/selector"
)

var (
	// ErrActionTimeout indicates the resolve+act sequence exceeded the
	// step's timeout. Recoverable; counted against the retry budget.
	ErrActionTimeout = errors.New("action timed out")

	// ErrUnsupportedAction indicates a step carries an action kind outside
	// the closed enumeration, which only happens with hand-edited documents.
	ErrUnsupportedAction = errors.New("unsupported action kind")

	// ErrInvalidInput indicates the step's input could not be resolved
	// (unbound variable, bad template). Deterministic; never retried.
	ErrInvalidInput = errors.New("invalid step input")
)

// AssertionError is a failed success condition or assert action. Treated as
// a step failure and not retried on its own; a fresh evaluation happens only
// when the action itself is retried for another reason.
type AssertionError struct {
	Kind   models.ConditionKind
	Detail string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed: %s", e.Kind, e.Detail)
}

// IsAssertionFailed reports whether err is an assertion failure.
func IsAssertionFailed(err error) bool {
	var ae *AssertionError

	return errors.As(err, &ae)
}

// IsRecoverable reports whether the failure may be absorbed by retrying the
// step with the same selector set. Assertion failures and page-level faults
// are not recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}

	if browser.IsFatal(err) || IsAssertionFailed(err) ||
		errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnsupportedAction) {
		return false
	}

	return selector.IsNotFound(err) || errors.Is(err, ErrActionTimeout)
}
