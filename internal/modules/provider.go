// Package modules wires the three pool.Module kinds the chain dispatches on
// — provider, compatibility, llmswitch — to the concrete Provider Bindings,
// family profiles, and wire protocol adapters resolved from configuration at
// startup. Each factory closes over the shared registries; the modules
// themselves hold no state beyond what they need to process one payload.
package modules

import (
	"context"
	"fmt"

	"github.com/routecodex/routecodex/internal/config"
	"github.com/routecodex/routecodex/internal/corex"
	"github.com/routecodex/routecodex/internal/pool"
)

// ProviderModule resolves a route's declared providerId into the concrete
// Provider Binding and attaches it to the payload for the modules that
// follow it in the chain. It never reaches the network itself — that is
// llmswitch's job once compatibility has had a chance to apply family
// policy.
type ProviderModule struct {
	id      string
	hash    string
	binding config.ProviderBinding
}

func (m *ProviderModule) Type() pool.ModuleType { return pool.TypeProvider }
func (m *ProviderModule) ID() string            { return m.id }
func (m *ProviderModule) ConfigHash() string    { return m.hash }

func (m *ProviderModule) ProcessIncoming(_ context.Context, payload *corex.Payload) (*corex.Payload, error) {
	out := payload.Clone()
	out.Meta["binding"] = m.binding

	return out, nil
}

// NewProviderFactory builds a pool.Factory that resolves a module spec's
// "providerId" config field against bindings, keyed by ProviderID and built
// once from the loaded configuration.
func NewProviderFactory(bindings map[string]config.ProviderBinding) pool.Factory {
	return func(_ context.Context, cfg map[string]any) (pool.Module, error) {
		providerID, _ := cfg["providerId"].(string)
		if providerID == "" {
			return nil, fmt.Errorf("provider module config missing providerId")
		}

		binding, ok := bindings[providerID]
		if !ok {
			return nil, fmt.Errorf("no provider binding registered for providerId %q", providerID)
		}

		return &ProviderModule{
			id:      "provider:" + providerID,
			hash:    pool.ConfigHash(cfg),
			binding: binding,
		}, nil
	}
}
