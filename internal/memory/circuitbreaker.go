// Package memory implements the memory manager and circuit breakers (§5):
// transient resource tracking with pluggable cleanup strategies, and a
// closed→open→half-open→closed breaker per failure boundary.
package memory

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BreakerState names one of the three circuit breaker states (§5).
// Adapted from the pack's workflow.CircuitBreaker state machine (there
// zap-logged; here slog, to match the rest of this codebase's ambient
// stack).
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures one circuit breaker's thresholds.
type BreakerConfig struct {
	FailureThreshold  int
	RecoveryTimeout   time.Duration
	HalfOpenMaxProbes int
	HalfOpenSuccesses int
}

// DefaultBreakerConfig mirrors sensible production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:  5,
		RecoveryTimeout:   30 * time.Second,
		HalfOpenMaxProbes: 3,
		HalfOpenSuccesses: 2,
	}
}

// CircuitBreaker guards a single failure boundary (a provider binding, a
// route) behind a closed→open→half-open→closed state machine.
type CircuitBreaker struct {
	boundary  string
	config    BreakerConfig
	logger    *slog.Logger
	gauge     *prometheus.GaugeVec

	mu              sync.Mutex
	state           BreakerState
	failures        int
	successes       int
	probes          int
	lastFailureTime time.Time
}

// NewCircuitBreaker constructs a breaker for a named boundary.
func NewCircuitBreaker(boundary string, config BreakerConfig, logger *slog.Logger, gauge *prometheus.GaugeVec) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}

	return &CircuitBreaker{boundary: boundary, config: config, logger: logger, gauge: gauge}
}

// Allow reports whether a request may proceed through this boundary right
// now, transitioning open->half-open once the recovery timeout elapses.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return true, nil

	case BreakerOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.RecoveryTimeout {
			cb.transition(BreakerHalfOpen, "recovery timeout elapsed")
			cb.probes = 1
			cb.successes = 0

			return true, nil
		}

		return false, fmt.Errorf("circuit open for %s: %d consecutive failures, retry after %v",
			cb.boundary, cb.failures, cb.config.RecoveryTimeout-time.Since(cb.lastFailureTime))

	case BreakerHalfOpen:
		if cb.probes < cb.config.HalfOpenMaxProbes {
			cb.probes++
			return true, nil
		}

		return false, fmt.Errorf("circuit half-open for %s: max probes reached", cb.boundary)

	default:
		return false, fmt.Errorf("unknown circuit state for %s", cb.boundary)
	}
}

// RecordSuccess notes a successful pass through the boundary.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0

	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenSuccesses {
			cb.transition(BreakerClosed, fmt.Sprintf("%d consecutive half-open successes", cb.successes))
			cb.failures = 0
			cb.successes = 0
		}
	}
}

// RecordFailure notes a failed pass through the boundary.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case BreakerClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(BreakerOpen, fmt.Sprintf("%d consecutive failures", cb.failures))
		}

	case BreakerHalfOpen:
		cb.successes = 0
		cb.transition(BreakerOpen, "failure while half-open")
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

func (cb *CircuitBreaker) transition(next BreakerState, reason string) {
	prev := cb.state
	cb.state = next

	cb.logger.Info("circuit breaker state change",
		"boundary", cb.boundary, "from", prev.String(), "to", next.String(), "reason", reason, "failures", cb.failures)

	if cb.gauge != nil {
		cb.gauge.WithLabelValues(cb.boundary).Set(float64(next))
	}
}

// Registry owns one CircuitBreaker per boundary, created lazily.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   BreakerConfig
	logger   *slog.Logger
	gauge    *prometheus.GaugeVec
}

// NewRegistry constructs an empty breaker registry.
func NewRegistry(config BreakerConfig, logger *slog.Logger) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
		gauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "routecodex",
			Subsystem: "memory",
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state per boundary (0=closed,1=open,2=half_open).",
		}, []string{"boundary"}),
	}
}

// Collector exposes the registry's Prometheus collector.
func (r *Registry) Collector() prometheus.Collector {
	return r.gauge
}

// GetOrCreate returns the breaker for a boundary, creating it on first use.
func (r *Registry) GetOrCreate(boundary string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[boundary]
	r.mu.RUnlock()

	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[boundary]; ok {
		return cb
	}

	cb = NewCircuitBreaker(boundary, r.config, r.logger, r.gauge)
	r.breakers[boundary] = cb

	return cb
}
