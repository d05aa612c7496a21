// Package pool implements the static instance pool (§4.1): a
// configuration-hashed, preloaded set of module instances shared across every
// route whose module specifications hash to the same value.
package pool

import (
	"context"

	"github.com/routecodex/routecodex/internal/corex"
)

// ModuleType tags which of the three chain roles a module plays. The chain
// dispatches on this tag rather than on a type hierarchy (§9's capability-set
// redesign).
type ModuleType string

const (
	TypeProvider      ModuleType = "provider"
	TypeCompatibility ModuleType = "compatibility"
	TypeLLMSwitch     ModuleType = "llmswitch"
)

// Critical reports whether failures instantiating a module of this type are
// fatal at preload (§4.1: "Failures during preload of a module whose type is
// marked critical ... are fatal").
func (t ModuleType) Critical() bool {
	return t == TypeProvider || t == TypeCompatibility
}

// Module is the capability every pool-owned instance must provide. A module
// is "anything providing ProcessIncoming" per the spec's duck-typed
// capability-set redesign; Validator below is an optional capability
// detected with a type assertion (in connector.Execute), never embedded.
// PerformanceEstimator is declared alongside it, but no caller checks for it.
type Module interface {
	Type() ModuleType
	ID() string
	ConfigHash() string
	ProcessIncoming(ctx context.Context, payload *corex.Payload) (*corex.Payload, error)
}

// Validator is an optional capability: modules that can validate their own
// output implement it.
type Validator interface {
	ValidateOutput(payload *corex.Payload) error
}

// PerformanceEstimator is an optional capability for modules that can
// estimate their own latency/cost contribution.
type PerformanceEstimator interface {
	EstimatePerformance() map[string]any
}

// Factory builds a Module instance from a normalized configuration. All
// three are supplied by internal/modules (NewProviderFactory,
// NewCompatibilityFactory, NewLLMSwitchFactory).
type Factory func(ctx context.Context, config map[string]any) (Module, error)
