package modules

import (
	"context"
	"net/http"

	"github.com/routecodex/routecodex/internal/config"
	"github.com/routecodex/routecodex/internal/corex"
	"github.com/routecodex/routecodex/internal/pool"
	"github.com/routecodex/routecodex/internal/profile"
)

// CompatibilityModule resolves the family profile bound to the request's
// provider binding and applies its request/header policy hooks. It reads
// the binding the preceding provider module attached to payload.Meta and, in
// turn, attaches the resolved profile for llmswitch to apply response-side
// policy and error mapping with.
type CompatibilityModule struct {
	id       string
	hash     string
	profiles *profile.Registry
}

func (m *CompatibilityModule) Type() pool.ModuleType { return pool.TypeCompatibility }
func (m *CompatibilityModule) ID() string            { return m.id }
func (m *CompatibilityModule) ConfigHash() string    { return m.hash }

func (m *CompatibilityModule) ProcessIncoming(_ context.Context, payload *corex.Payload) (*corex.Payload, error) {
	binding, ok := payload.Meta["binding"].(config.ProviderBinding)
	if !ok {
		return nil, corex.New(corex.KindRouting, "binding_missing", "compatibility module reached with no provider binding attached")
	}

	prof, err := m.profiles.Resolve(binding.Protocol, binding.ProviderID, binding.Compatibility)
	if err != nil {
		return nil, err
	}

	out := payload.Clone()

	if prof.ApplyRequestPolicy != nil {
		prof.ApplyRequestPolicy(out.Body)
	}

	if out.Headers == nil {
		out.Headers = make(map[string][]string)
	}

	if prof.ApplyHeaderPolicy != nil {
		prof.ApplyHeaderPolicy(http.Header(out.Headers), binding.APIKey)
	}

	out.Meta["profile"] = prof

	return out, nil
}

// NewCompatibilityFactory builds a pool.Factory for the compatibility
// module. A route's config block for this module type is currently unused
// (the family is resolved from the binding at request time, not declared
// per-route) but is still hashed so distinct declarations pool separately.
func NewCompatibilityFactory(profiles *profile.Registry) pool.Factory {
	return func(_ context.Context, cfg map[string]any) (pool.Module, error) {
		return &CompatibilityModule{
			id:       "compatibility",
			hash:     pool.ConfigHash(cfg),
			profiles: profiles,
		}, nil
	}
}
