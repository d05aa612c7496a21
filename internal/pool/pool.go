package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/routecodex/routecodex/internal/corex"
)

// ModuleSpec names a single entry in a Route Definition's module sequence
// (§3): a type and a reference into the configuration library (already
// resolved to a concrete config map by the caller), plus an optional
// condition evaluated against the request at chain-assembly time (§4.2 step
// 2).
type ModuleSpec struct {
	Type      ModuleType
	Config    map[string]any
	Condition *corex.Condition
}

// entry is a pool-owned instance plus its health tracker and access stats.
// lastAccessed/accessCount are mutated by Get under only a read lock on the
// pool (concurrent requests hit the same entry constantly), so they must be
// real atomics rather than plain fields.
type entry struct {
	instance     Module
	health       *health
	lastAccessed atomic.Int64
	accessCount  atomic.Int64
}

// Pool is the static instance pool (§4.1). It is built once at startup via
// Preload and is read-only for the lifetime of the process thereafter except
// for health-state transitions and explicit Evict calls.
type Pool struct {
	mu       sync.RWMutex
	entries  map[string]*entry // keyed by type|configHash
	factories map[ModuleType]Factory
	logger   *slog.Logger

	degradeThreshold int
	cronRunner       *cron.Cron

	healthGauge *prometheus.GaugeVec
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithDegradeThreshold sets the consecutive-failure count that demotes an
// instance from healthy to degraded.
func WithDegradeThreshold(n int) Option {
	return func(p *Pool) { p.degradeThreshold = n }
}

// New constructs an empty Pool. Register factories with RegisterFactory
// before calling Preload.
func New(logger *slog.Logger, opts ...Option) *Pool {
	p := &Pool{
		entries:          make(map[string]*entry),
		factories:        make(map[ModuleType]Factory),
		logger:           logger,
		degradeThreshold: 3,
		healthGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "routecodex",
			Subsystem: "pool",
			Name:      "instance_health",
			Help:      "Current health state of a pool instance (0=healthy,1=degraded,2=failed).",
		}, []string{"type", "id"}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Registry exposes the pool's Prometheus collectors for the caller to
// register against its own registry.
func (p *Pool) Registry() []prometheus.Collector {
	return []prometheus.Collector{p.healthGauge}
}

// RegisterFactory binds a ModuleType to the constructor used during Preload.
func (p *Pool) RegisterFactory(t ModuleType, f Factory) {
	p.factories[t] = f
}

func key(t ModuleType, hash string) string {
	return string(t) + "|" + hash
}

// Preload walks the distinct (type, configHash) pairs found across a route
// table and instantiates each pair exactly once. It is idempotent: calling
// Preload twice with the same specs produces the same set of keys and does
// not re-instantiate existing entries (§8 "preload(routes) is idempotent and
// deterministic").
func (p *Pool) Preload(ctx context.Context, specs []ModuleSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool)

	for _, spec := range specs {
		hash := ConfigHash(spec.Config)
		k := key(spec.Type, hash)

		if seen[k] {
			continue // deduplicate within this call
		}
		seen[k] = true

		if _, exists := p.entries[k]; exists {
			continue // already preloaded in a prior call
		}

		factory, ok := p.factories[spec.Type]
		if !ok {
			err := fmt.Errorf("no factory registered for module type %q", spec.Type)
			if spec.Type.Critical() {
				return err
			}

			p.logger.Warn("skipping optional module with no factory", "type", spec.Type, "error", err)

			continue
		}

		instance, err := factory(ctx, spec.Config)
		if err != nil {
			if spec.Type.Critical() {
				return fmt.Errorf("preload critical module %s/%s: %w", spec.Type, hash, err)
			}

			p.logger.Warn("skipping optional module that failed to instantiate", "type", spec.Type, "hash", hash, "error", err)

			continue
		}

		p.entries[k] = &entry{instance: instance, health: newHealth()}
		p.healthGauge.WithLabelValues(string(spec.Type), instance.ID()).Set(0)

		p.logger.Info("preloaded module instance", "type", spec.Type, "id", instance.ID(), "hash", hash)
	}

	return nil
}

// Get returns the pool instance for a (type, config) pair. It never creates
// new instances after preload — a miss is instance_not_found.
func (p *Pool) Get(moduleType ModuleType, config map[string]any) (Module, error) {
	hash := ConfigHash(config)

	p.mu.RLock()
	e, ok := p.entries[key(moduleType, hash)]
	p.mu.RUnlock()

	if !ok {
		return nil, corex.New(corex.KindInstance, "instance_not_found",
			fmt.Sprintf("no pooled instance for type=%s hash=%s", moduleType, hash))
	}

	e.lastAccessed.Store(time.Now().UnixNano())
	e.accessCount.Add(1)

	return e.instance, nil
}

// Health returns the current health state of the instance identified by
// (type, config).
func (p *Pool) Health(moduleType ModuleType, config map[string]any) (HealthState, error) {
	hash := ConfigHash(config)

	p.mu.RLock()
	e, ok := p.entries[key(moduleType, hash)]
	p.mu.RUnlock()

	if !ok {
		return HealthFailed, corex.New(corex.KindInstance, "instance_not_found", "no such pooled instance")
	}

	return e.health.get(), nil
}

// RecordSuccess and RecordFailure let callers (the connector, after an
// execute stage) feed health observations back into the pool.
func (p *Pool) RecordSuccess(moduleType ModuleType, config map[string]any) {
	hash := ConfigHash(config)

	p.mu.RLock()
	e, ok := p.entries[key(moduleType, hash)]
	p.mu.RUnlock()

	if ok {
		e.health.recordSuccess()
		p.healthGauge.WithLabelValues(string(moduleType), e.instance.ID()).Set(float64(e.health.get()))
	}
}

func (p *Pool) RecordFailure(moduleType ModuleType, config map[string]any, fatal bool) {
	hash := ConfigHash(config)

	p.mu.RLock()
	e, ok := p.entries[key(moduleType, hash)]
	p.mu.RUnlock()

	if !ok {
		return
	}

	if fatal {
		e.health.markFailed()
	} else {
		e.health.recordFailure(p.degradeThreshold)
	}

	p.healthGauge.WithLabelValues(string(moduleType), e.instance.ID()).Set(float64(e.health.get()))
}

// Evict removes pool entries matching the predicate. Entries remain eligible
// for re-preload on the next startup; Evict does not instantiate.
func (p *Pool) Evict(predicate func(moduleType ModuleType, instance Module, h HealthState) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	evicted := 0

	for k, e := range p.entries {
		if predicate(e.instance.Type(), e.instance, e.health.get()) {
			delete(p.entries, k)
			evicted++
		}
	}

	return evicted
}

// StartHealthProbe launches a cron-scheduled background probe that re-checks
// degraded instances and promotes them back to healthy once a probe function
// reports success (§4.1 "A background probe marks an instance degraded..."
// and, symmetrically, clears it). probe is called once per degraded instance
// per tick; a nil probe disables automatic recovery (failures still degrade
// instances via RecordFailure).
func (p *Pool) StartHealthProbe(schedule string, probe func(Module) error) error {
	if p.cronRunner != nil {
		return fmt.Errorf("health probe already started")
	}

	p.cronRunner = cron.New()

	_, err := p.cronRunner.AddFunc(schedule, func() {
		p.mu.RLock()
		degraded := make([]*entry, 0)

		for _, e := range p.entries {
			if e.health.get() == HealthDegraded {
				degraded = append(degraded, e)
			}
		}
		p.mu.RUnlock()

		for _, e := range degraded {
			if probe == nil {
				continue
			}

			if err := probe(e.instance); err == nil {
				e.health.recordSuccess()
				p.healthGauge.WithLabelValues(string(e.instance.Type()), e.instance.ID()).Set(float64(e.health.get()))
			}
		}
	})
	if err != nil {
		p.cronRunner = nil
		return fmt.Errorf("schedule health probe: %w", err)
	}

	p.cronRunner.Start()

	return nil
}

// StopHealthProbe stops the background cron scheduler, if running.
func (p *Pool) StopHealthProbe() {
	if p.cronRunner != nil {
		p.cronRunner.Stop()
		p.cronRunner = nil
	}
}

// Size returns the number of distinct pooled instances, for tests and
// diagnostics.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.entries)
}
