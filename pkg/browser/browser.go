// Package browser defines the boundary to a live, authenticated browser
// page. Session management, login cookies and the concrete driver (CDP,
// WebDriver, ...) live behind these interfaces and are supplied by the
// caller; the engine only queries and interacts.
package browser

import (
	"context"
	"errors"
	"fmt"
)

// ErrPageCrashed indicates the page or its browser context died. Runs treat
// this as fatal: the context is assumed unusable and nothing is retried.
var ErrPageCrashed = errors.New("page crashed")

// NavigationError wraps a failed navigation. Fatal for the current run.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// IsFatal reports whether err makes the page unusable for further steps.
func IsFatal(err error) bool {
	var navErr *NavigationError

	return errors.Is(err, ErrPageCrashed) || errors.As(err, &navErr)
}

// Strategy is the low-level query mechanism a page understands. The selector
// resolver translates the richer ElementSelector kinds down to these.
type Strategy string

const (
	ByCSS       Strategy = "css"
	ByXPath     Strategy = "xpath"
	ByTag       Strategy = "tag"
	ByText      Strategy = "text"
	ByAttribute Strategy = "attribute"
)

// Locator is one concrete page query. Fold requests case-insensitive
// matching and Substring containment matching; both only apply to the
// text and attribute strategies.
type Locator struct {
	Strategy  Strategy
	Value     string
	Attribute string
	Fold      bool
	Substring bool
}

// Page is one live browser tab. Queries must be side-effect free so
// resolution is safe to retry; interactions go through Element.
//
// URL and Title may serve cached state; Refresh re-synchronizes that cache
// with the live page. Callers must Refresh before trusting URL after an
// interaction that can navigate, such as a submit click. Drivers that always
// read live state may make Refresh a no-op.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Refresh(ctx context.Context) error
	URL() string
	Title() string
	Find(ctx context.Context, loc Locator) ([]Element, error)
	Screenshot(ctx context.Context) ([]byte, error)
	RunScript(ctx context.Context, script string) (string, error)
	PressKey(ctx context.Context, key string) error
	WaitNavigation(ctx context.Context) error
}

// Element is a resolved DOM element. ID is a driver-stable node identity:
// finding the same unchanged element twice yields the same ID.
type Element interface {
	ID() string
	Click(ctx context.Context) error
	DoubleClick(ctx context.Context) error
	RightClick(ctx context.Context) error
	Hover(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	SelectOption(ctx context.Context, value string) error
	Upload(ctx context.Context, filename string, data []byte) error
	DragTo(ctx context.Context, target Element) error
	ScrollIntoView(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
}
