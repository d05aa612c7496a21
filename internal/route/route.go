// Package route implements the route table and matcher (§4.8): pattern
// evaluation in priority order with explicit fail-fast semantics — no
// implicit fallback unless a default route is declared.
package route

import (
	"regexp"

	"github.com/routecodex/routecodex/internal/pool"
)

// Category values recognised for route metadata (§4.8 "Route category
// resolution ... is encoded in metadata").
const (
	CategoryDefault     = "default"
	CategoryLongContext = "longcontext"
	CategoryThinking    = "thinking"
	CategoryBackground  = "background"
)

// Pattern matches a request to a route: a model regex plus an optional
// exact provider constraint. Per-module conditions (evaluated during chain
// assembly, not route selection) live on pool.ModuleSpec — see §4.2 step 2.
type Pattern struct {
	ModelRegex string
	Provider   string

	compiled *regexp.Regexp
}

// compileIfNeeded pre-compiles the model regex. Called once by the Table
// when the route is added.
func (p *Pattern) compileIfNeeded() error {
	if p.compiled != nil || p.ModelRegex == "" {
		return nil
	}

	re, err := regexp.Compile(p.ModelRegex)
	if err != nil {
		return err
	}

	p.compiled = re

	return nil
}

func (p *Pattern) matchesModelProvider(model, provider string) bool {
	if p.Provider != "" && p.Provider != provider {
		return false
	}

	if p.compiled != nil && !p.compiled.MatchString(model) {
		return false
	}

	return true
}

// Definition is the Route Definition of the data model (§3).
type Definition struct {
	ID        string
	Pattern   Pattern
	Modules   []pool.ModuleSpec
	Priority  int
	Category  string
	declOrder int
}

// Validate enforces the chain invariant: the last module must be llmswitch.
func (d *Definition) Validate() error {
	if len(d.Modules) == 0 {
		return errInvalidRoute(d.ID, "route has no modules")
	}

	last := d.Modules[len(d.Modules)-1]
	if last.Type != pool.TypeLLMSwitch {
		return errInvalidRoute(d.ID, "last module must be of type llmswitch")
	}

	return nil
}
