package route

import (
	"sort"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Table holds the ordered set of route definitions and evaluates them in
// priority order (§4.8: higher first, stable tie-break on declaration
// order). The matcher is pure and side-effect-free: Match never mutates the
// table or performs I/O.
type Table struct {
	mu          sync.RWMutex
	routes      []*Definition
	defaultID   string
	encoding    *tiktoken.Tiktoken
}

// NewTable constructs an empty route table. The cl100k_base tiktoken
// encoding is loaded eagerly so CountTokens never needs to error mid-request
// (the teacher's ProxyHandler.countInputTokens re-fetches the encoding on
// every call and swallows the error into a 0 count; the table instead fails
// fast at construction).
func NewTable() (*Table, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}

	return &Table{encoding: enc}, nil
}

// AddRoute validates and inserts a route definition, re-sorting by priority
// (descending) with ties broken by declaration order (ascending).
func (t *Table) AddRoute(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	if err := def.Pattern.compileIfNeeded(); err != nil {
		return errInvalidRoute(def.ID, "invalid model pattern: "+err.Error())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	def.declOrder = len(t.routes)
	t.routes = append(t.routes, def)

	sort.SliceStable(t.routes, func(i, j int) bool {
		if t.routes[i].Priority != t.routes[j].Priority {
			return t.routes[i].Priority > t.routes[j].Priority
		}
		return t.routes[i].declOrder < t.routes[j].declOrder
	})

	if def.Category == "" {
		def.Category = CategoryDefault
	}

	return nil
}

// SetDefaultRoute designates a route id as the explicit default used only
// when no pattern matches — there is never an implicit fallback (§4.2 step
// 1: "Never fall back to a default unless a default route is explicitly
// declared").
func (t *Table) SetDefaultRoute(routeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.defaultID = routeID
}

// All returns every route definition currently registered, for preload walks.
func (t *Table) All() []*Definition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Definition, len(t.routes))
	copy(out, t.routes)

	return out
}

// CountTokens counts input tokens with the cl100k_base encoding; the gateway
// passes the count to module conditions as the inputTokens fact.
func (t *Table) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// Match evaluates routes in priority order and returns the first one whose
// pattern matches. If no pattern matches, it returns no_route unless a
// default route was declared, in which case that route is returned
// directly. Per-module conditions are not evaluated here — they are
// evaluated during chain assembly (§4.2 step 2) where a failure must fail
// the whole request with condition_failed rather than fall through to the
// next route.
func (t *Table) Match(model, provider string) (*Definition, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, def := range t.routes {
		if def.Pattern.matchesModelProvider(model, provider) {
			return def, nil
		}
	}

	if t.defaultID != "" {
		for _, def := range t.routes {
			if def.ID == t.defaultID {
				return def, nil
			}
		}
	}

	return nil, errNoRoute()
}
