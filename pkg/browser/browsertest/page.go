// Package browsertest provides an in-memory Page implementation for tests.
// Elements are registered with the selector strings they answer to, so tests
// exercise resolver fallback and matching semantics without a real DOM.
package browsertest

import (
	"context"
	"strings"
	"sync"

	"github.com/xjanova/postxagent/pkg/browser"
)

// Page is a fake browser page backed by a flat list of elements in document
// order.
type Page struct {
	mu       sync.Mutex
	url      string
	title    string
	elements []*Element
	crashed  bool

	// NavigateHook, when set, runs on Navigate after the URL is updated.
	NavigateHook func(url string) error
	// ScreenshotData is returned by Screenshot.
	ScreenshotData []byte
	// ScriptResults maps scripts to their canned results for RunScript.
	ScriptResults map[string]string

	PressedKeys []string
	RanScripts  []string
}

func NewPage(url string) *Page {
	return &Page{url: url, title: "test page"}
}

// Add registers an element on the page and returns it for further setup.
func (p *Page) Add(el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()

	el.page = p
	p.elements = append(p.elements, el)

	return el
}

// Remove detaches an element, simulating a DOM restructuring.
func (p *Page) Remove(el *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.elements[:0]

	for _, e := range p.elements {
		if e != el {
			kept = append(kept, e)
		}
	}

	p.elements = kept
}

// Crash makes every subsequent operation fail with ErrPageCrashed.
func (p *Page) Crash() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.crashed = true
}

// SetURL changes the current URL, simulating an in-page navigation.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()

	if p.crashed {
		p.mu.Unlock()

		return browser.ErrPageCrashed
	}

	p.url = url
	hook := p.NavigateHook
	p.mu.Unlock()

	if hook != nil {
		if err := hook(url); err != nil {
			return &browser.NavigationError{URL: url, Err: err}
		}
	}

	return nil
}

// Refresh is a no-op; the in-memory page always serves live state.
func (p *Page) Refresh(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.crashed {
		return browser.ErrPageCrashed
	}

	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.url
}

func (p *Page) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.title
}

func (p *Page) Find(_ context.Context, loc browser.Locator) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.crashed {
		return nil, browser.ErrPageCrashed
	}

	var found []browser.Element

	for _, el := range p.elements {
		if el.matches(loc) {
			found = append(found, el)
		}
	}

	return found, nil
}

func (p *Page) Screenshot(_ context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.crashed {
		return nil, browser.ErrPageCrashed
	}

	return p.ScreenshotData, nil
}

func (p *Page) RunScript(_ context.Context, script string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.crashed {
		return "", browser.ErrPageCrashed
	}

	p.RanScripts = append(p.RanScripts, script)

	return p.ScriptResults[script], nil
}

func (p *Page) PressKey(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.crashed {
		return browser.ErrPageCrashed
	}

	p.PressedKeys = append(p.PressedKeys, key)

	return nil
}

func (p *Page) WaitNavigation(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.crashed {
		return browser.ErrPageCrashed
	}

	return nil
}

// Element is a fake DOM element. Selectors lists the CSS selector strings the
// element answers to; XPath likewise for xpath queries.
type Element struct {
	page *Page

	NodeID    string
	Tag       string
	IDAttr    string
	Classes   []string
	Attrs     map[string]string
	TextValue string
	Selectors []string
	XPath     string
	Hidden    bool
	Disabled  bool

	Typed      string
	Cleared    int
	Clicks     int
	DblClicks  int
	RClicks    int
	Hovers     int
	Scrolls    int
	Selected   string
	UploadName string
	UploadData []byte
	DragTarget browser.Element
}

func (e *Element) matches(loc browser.Locator) bool {
	switch loc.Strategy {
	case browser.ByCSS:
		for _, sel := range e.Selectors {
			if sel == loc.Value {
				return true
			}
		}

		return false
	case browser.ByXPath:
		return e.XPath != "" && e.XPath == loc.Value
	case browser.ByTag:
		return strings.EqualFold(e.Tag, loc.Value)
	case browser.ByText:
		return matchText(e.TextValue, loc)
	case browser.ByAttribute:
		return matchText(e.attribute(loc.Attribute), loc)
	}

	return false
}

func (e *Element) attribute(name string) string {
	switch name {
	case "id":
		return e.IDAttr
	case "class":
		return strings.Join(e.Classes, " ")
	}

	return e.Attrs[name]
}

func matchText(have string, loc browser.Locator) bool {
	if have == "" {
		return false
	}

	want := loc.Value

	if loc.Fold {
		have = strings.ToLower(have)
		want = strings.ToLower(want)
	}

	if loc.Substring {
		return strings.Contains(have, want)
	}

	return have == want
}

func (e *Element) guard() error {
	if e.page != nil {
		e.page.mu.Lock()
		crashed := e.page.crashed
		e.page.mu.Unlock()

		if crashed {
			return browser.ErrPageCrashed
		}
	}

	return nil
}

func (e *Element) ID() string {
	if e.NodeID != "" {
		return e.NodeID
	}

	return e.XPath
}

func (e *Element) Click(_ context.Context) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.Clicks++

	return nil
}

func (e *Element) DoubleClick(_ context.Context) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.DblClicks++

	return nil
}

func (e *Element) RightClick(_ context.Context) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.RClicks++

	return nil
}

func (e *Element) Hover(_ context.Context) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.Hovers++

	return nil
}

func (e *Element) Type(_ context.Context, text string) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.Typed += text

	return nil
}

func (e *Element) Clear(_ context.Context) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.Typed = ""
	e.Cleared++

	return nil
}

func (e *Element) SelectOption(_ context.Context, value string) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.Selected = value

	return nil
}

func (e *Element) Upload(_ context.Context, filename string, data []byte) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.UploadName = filename
	e.UploadData = data

	return nil
}

func (e *Element) DragTo(_ context.Context, target browser.Element) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.DragTarget = target

	return nil
}

func (e *Element) ScrollIntoView(_ context.Context) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.Scrolls++

	return nil
}

func (e *Element) Text(_ context.Context) (string, error) {
	if err := e.guard(); err != nil {
		return "", err
	}

	return e.TextValue, nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, bool, error) {
	if err := e.guard(); err != nil {
		return "", false, err
	}

	value := e.attribute(name)

	return value, value != "", nil
}

func (e *Element) Visible(_ context.Context) (bool, error) {
	if err := e.guard(); err != nil {
		return false, err
	}

	return !e.Hidden, nil
}

func (e *Element) Enabled(_ context.Context) (bool, error) {
	if err := e.guard(); err != nil {
		return false, err
	}

	return !e.Disabled, nil
}
