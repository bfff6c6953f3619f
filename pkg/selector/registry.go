package selector

import (
	"context"
	"sync"

	"github.com/xjanova/postxagent/pkg/browser"
	"github.com/xjanova/postxagent/pkg/models"
)

// Candidate is one element proposed by a matcher, ranked by confidence.
type Candidate struct {
	Element    browser.Element
	Confidence float64
}

// Matcher is a pluggable resolution strategy for the Visual and Smart
// selector kinds: given a description string and/or a reference visual hash,
// propose zero or more candidate elements. The core treats implementations
// (visual hash comparison, AI description matching, ...) as opaque.
type Matcher interface {
	Match(ctx context.Context, page browser.Page, sel models.ElementSelector) ([]Candidate, error)
}

// MatcherRegistry maps pluggable selector kinds to their strategies. Safe for
// concurrent use; resolution only reads.
type MatcherRegistry struct {
	mu       sync.RWMutex
	matchers map[models.SelectorKind]Matcher
}

func NewMatcherRegistry() *MatcherRegistry {
	return &MatcherRegistry{matchers: make(map[models.SelectorKind]Matcher)}
}

func (r *MatcherRegistry) Register(kind models.SelectorKind, m Matcher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.matchers[kind] = m
}

func (r *MatcherRegistry) Get(kind models.SelectorKind) (Matcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matchers[kind]

	return m, ok
}
