package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/routecodex/routecodex/internal/config"
	"github.com/routecodex/routecodex/internal/connector"
	"github.com/routecodex/routecodex/internal/corex"
	"github.com/routecodex/routecodex/internal/kernel"
	"github.com/routecodex/routecodex/internal/memory"
	"github.com/routecodex/routecodex/internal/modules"
	"github.com/routecodex/routecodex/internal/pool"
	"github.com/routecodex/routecodex/internal/profile"
	"github.com/routecodex/routecodex/internal/protocol"
	"github.com/routecodex/routecodex/internal/route"
	"github.com/routecodex/routecodex/internal/toolbridge"
)

// buildRuntime wires the module pool, route table, and dynamic connector
// described by cfg: it registers the three module-type factories, builds
// and preloads every route's module sequence, and binds each provider
// binding's declared family in the profile registry (§4.7, §8 "Preload
// from cold start").
func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*route.Table, *connector.Connector, error) {
	bindings := make(map[string]config.ProviderBinding, len(cfg.Bindings))
	for _, b := range cfg.Bindings {
		bindings[b.ProviderID] = b
	}

	protocols := protocol.NewRegistry()
	profiles := profile.NewRegistry()

	for _, b := range cfg.Bindings {
		profiles.Bind(b.Protocol, b.ProviderID, b.Compatibility, profile.Family(b.Family))
	}

	breakers := memory.NewRegistry(memory.DefaultBreakerConfig(), logger)
	executor := kernel.NewExecutor(logger, kernel.WithCircuitBreakers(breakers))

	p := pool.New(logger)
	p.RegisterFactory(pool.TypeProvider, modules.NewProviderFactory(bindings))
	p.RegisterFactory(pool.TypeCompatibility, modules.NewCompatibilityFactory(profiles))
	p.RegisterFactory(pool.TypeLLMSwitch, modules.NewLLMSwitchFactory(protocols, executor, toolbridge.IDStyleAnthropic))

	table, err := route.NewTable()
	if err != nil {
		return nil, nil, fmt.Errorf("build route table: %w", err)
	}

	for _, rc := range cfg.Routes {
		def := buildRouteDefinition(rc)

		if err := table.AddRoute(def); err != nil {
			return nil, nil, fmt.Errorf("add route %s: %w", rc.ID, err)
		}

		if rc.Default {
			table.SetDefaultRoute(rc.ID)
		}
	}

	var specs []pool.ModuleSpec

	for _, def := range table.All() {
		specs = append(specs, def.Modules...)
	}

	if err := p.Preload(ctx, specs); err != nil {
		return nil, nil, fmt.Errorf("preload module pool: %w", err)
	}

	return table, connector.New(p, logger), nil
}

func buildRouteDefinition(rc config.RouteConfig) *route.Definition {
	moduleSpecs := make([]pool.ModuleSpec, 0, len(rc.Modules))

	for _, mc := range rc.Modules {
		spec := pool.ModuleSpec{
			Type:   pool.ModuleType(mc.Type),
			Config: mc.Config,
		}

		if mc.Condition != nil {
			spec.Condition = buildCondition(mc.Condition)
		}

		moduleSpecs = append(moduleSpecs, spec)
	}

	return &route.Definition{
		ID: rc.ID,
		Pattern: route.Pattern{
			ModelRegex: rc.ModelRegex,
			Provider:   rc.Provider,
		},
		Modules:  moduleSpecs,
		Priority: rc.Priority,
		Category: rc.Category,
	}
}

func buildCondition(cc *config.ConditionConfig) *corex.Condition {
	return &corex.Condition{
		FieldEquals:  cc.FieldEquals,
		FieldPresent: cc.FieldPresent,
		NumericField: cc.NumericField,
		NumericMin:   cc.NumericMin,
		NumericMax:   cc.NumericMax,
	}
}
