// Package remote implements the browser boundary over HTTP against a
// browser-automation sidecar. The sidecar owns the real driver and the
// authenticated session; this client only issues queries and interactions
// against an already-open page.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/xjanova/postxagent/pkg/browser"
)

const defaultTimeout = 30 * time.Second

// Page is a live page held by the sidecar, addressed by its session ID.
type Page struct {
	baseURL   string
	sessionID string
	client    *http.Client
	logger    *slog.Logger

	mu    sync.RWMutex
	url   string
	title string
}

// NewPage attaches to an existing sidecar session. The sidecar is expected to
// have the session open and authenticated already.
func NewPage(baseURL, sessionID string, logger *slog.Logger) *Page {
	return &Page{
		baseURL:   baseURL,
		sessionID: sessionID,
		client:    &http.Client{Timeout: defaultTimeout},
		logger:    logger.With("module", "remote_page", "session_id", sessionID),
	}
}

type pageState struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Refresh pulls the current URL and title from the sidecar. Navigate and
// WaitNavigation refresh implicitly.
func (p *Page) Refresh(ctx context.Context) error {
	var state pageState
	if err := p.do(ctx, http.MethodGet, "", nil, &state); err != nil {
		return err
	}

	p.mu.Lock()
	p.url = state.URL
	p.title = state.Title
	p.mu.Unlock()

	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	err := p.do(ctx, http.MethodPost, "/navigate", map[string]string{"url": url}, nil)
	if err != nil {
		return &browser.NavigationError{URL: url, Err: err}
	}

	return p.Refresh(ctx)
}

func (p *Page) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.url
}

func (p *Page) Title() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.title
}

type findRequest struct {
	Strategy  string `json:"strategy"`
	Value     string `json:"value"`
	Attribute string `json:"attribute,omitempty"`
	Fold      bool   `json:"fold,omitempty"`
	Substring bool   `json:"substring,omitempty"`
}

type findResponse struct {
	Elements []struct {
		ID string `json:"id"`
	} `json:"elements"`
}

func (p *Page) Find(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	req := findRequest{
		Strategy:  string(loc.Strategy),
		Value:     loc.Value,
		Attribute: loc.Attribute,
		Fold:      loc.Fold,
		Substring: loc.Substring,
	}

	var resp findResponse
	if err := p.do(ctx, http.MethodPost, "/find", req, &resp); err != nil {
		return nil, err
	}

	elements := make([]browser.Element, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		elements = append(elements, &element{page: p, id: el.ID})
	}

	return elements, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var resp struct {
		Data []byte `json:"data"`
	}

	if err := p.do(ctx, http.MethodPost, "/screenshot", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

func (p *Page) RunScript(ctx context.Context, script string) (string, error) {
	var resp struct {
		Result string `json:"result"`
	}

	err := p.do(ctx, http.MethodPost, "/script", map[string]string{"script": script}, &resp)
	if err != nil {
		return "", err
	}

	return resp.Result, nil
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	return p.do(ctx, http.MethodPost, "/key", map[string]string{"key": key}, nil)
}

func (p *Page) WaitNavigation(ctx context.Context) error {
	if err := p.do(ctx, http.MethodPost, "/wait-navigation", nil, nil); err != nil {
		return err
	}

	return p.Refresh(ctx)
}

// do issues one sidecar call. A 410 means the sidecar lost the page, which
// runs treat as fatal.
func (p *Page) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(data)
	}

	url := p.baseURL + "/sessions/" + p.sessionID + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sidecar request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusGone:
		return browser.ErrPageCrashed
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(resp.Body)

		return fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sidecar response: %w", err)
	}

	return nil
}

// element proxies one resolved DOM node. The sidecar keeps node identity
// stable across finds of the same unchanged element.
type element struct {
	page *Page
	id   string
}

func (e *element) ID() string { return e.id }

func (e *element) do(ctx context.Context, method, path string, in, out any) error {
	return e.page.do(ctx, method, "/elements/"+e.id+path, in, out)
}

func (e *element) Click(ctx context.Context) error {
	return e.do(ctx, http.MethodPost, "/click", nil, nil)
}

func (e *element) DoubleClick(ctx context.Context) error {
	return e.do(ctx, http.MethodPost, "/double-click", nil, nil)
}

func (e *element) RightClick(ctx context.Context) error {
	return e.do(ctx, http.MethodPost, "/right-click", nil, nil)
}

func (e *element) Hover(ctx context.Context) error {
	return e.do(ctx, http.MethodPost, "/hover", nil, nil)
}

func (e *element) Type(ctx context.Context, text string) error {
	return e.do(ctx, http.MethodPost, "/type", map[string]string{"text": text}, nil)
}

func (e *element) Clear(ctx context.Context) error {
	return e.do(ctx, http.MethodPost, "/clear", nil, nil)
}

func (e *element) SelectOption(ctx context.Context, value string) error {
	return e.do(ctx, http.MethodPost, "/select", map[string]string{"value": value}, nil)
}

func (e *element) Upload(ctx context.Context, filename string, data []byte) error {
	return e.do(ctx, http.MethodPost, "/upload", map[string]any{
		"filename": filename,
		"data":     data,
	}, nil)
}

func (e *element) DragTo(ctx context.Context, target browser.Element) error {
	return e.do(ctx, http.MethodPost, "/drag", map[string]string{"target_id": target.ID()}, nil)
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.do(ctx, http.MethodPost, "/scroll", nil, nil)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}

	if err := e.do(ctx, http.MethodGet, "/text", nil, &resp); err != nil {
		return "", err
	}

	return resp.Text, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var resp struct {
		Value   string `json:"value"`
		Present bool   `json:"present"`
	}

	err := e.do(ctx, http.MethodGet, "/attribute?name="+name, nil, &resp)
	if err != nil {
		return "", false, err
	}

	return resp.Value, resp.Present, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	var resp struct {
		Visible bool `json:"visible"`
	}

	if err := e.do(ctx, http.MethodGet, "/visible", nil, &resp); err != nil {
		return false, err
	}

	return resp.Visible, nil
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	var resp struct {
		Enabled bool `json:"enabled"`
	}

	if err := e.do(ctx, http.MethodGet, "/enabled", nil, &resp); err != nil {
		return false, err
	}

	return resp.Enabled, nil
}

// Sessions is the sidecar session API used by the worker to open a page per
// task and dispose of it afterwards.
type Sessions struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewSessions(baseURL string, logger *slog.Logger) *Sessions {
	return &Sessions{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger.With("module", "remote_sessions"),
	}
}

// Open asks the sidecar for an authenticated page on the platform. The
// returned close function releases the sidecar session.
func (s *Sessions) Open(ctx context.Context, platform string) (browser.Page, func(context.Context) error, error) {
	data, err := json.Marshal(map[string]string{"platform": platform})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sessions", bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open browser session: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)

		return nil, nil, fmt.Errorf("sidecar refused session (status %d): %s", resp.StatusCode, string(body))
	}

	var created struct {
		SessionID string `json:"session_id"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, nil, fmt.Errorf("failed to decode session response: %w", err)
	}

	page := NewPage(s.baseURL, created.SessionID, s.logger)

	closeFn := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
			s.baseURL+"/sessions/"+created.SessionID, nil)
		if err != nil {
			return err
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}

		return resp.Body.Close()
	}

	if err := page.Refresh(ctx); err != nil {
		_ = closeFn(ctx)

		return nil, nil, err
	}

	return page, closeFn, nil
}
