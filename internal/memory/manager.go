package memory

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Strategy names one of the cleanup strategies the memory manager can run
// when usage crosses a threshold (§5).
type Strategy string

const (
	StrategyLRU    Strategy = "lru"
	StrategyLFU    Strategy = "lfu"
	StrategyFIFO   Strategy = "fifo"
	StrategyTTL    Strategy = "ttl"
	StrategySize   Strategy = "size"
	StrategyHybrid Strategy = "hybrid"
)

// Resource is a single tracked transient resource — a streaming response
// buffer, a suspended chain's intermediate state, anything the runtime
// wants bounded rather than growing without limit.
type Resource struct {
	Key        string
	Size       int64
	ExpiresAt  time.Time
	insertedAt time.Time
	accessedAt time.Time
	accesses   int64
	elem       *list.Element // LRU list position
}

// Manager tracks resources against warning/critical thresholds and evicts
// according to the configured Strategy once a threshold is crossed.
type Manager struct {
	mu       sync.Mutex
	strategy Strategy
	logger   *slog.Logger

	resources map[string]*Resource
	lru       *list.List // front = most recently used
	totalSize int64

	warningThreshold  int64
	criticalThreshold int64

	sizeGauge   prometheus.Gauge
	evictCounter *prometheus.CounterVec
}

// Config configures a Manager.
type Config struct {
	Strategy          Strategy
	WarningThreshold  int64
	CriticalThreshold int64
}

// NewManager constructs a Manager with the given strategy and thresholds.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		strategy:          cfg.Strategy,
		logger:            logger,
		resources:         make(map[string]*Resource),
		lru:               list.New(),
		warningThreshold:  cfg.WarningThreshold,
		criticalThreshold: cfg.CriticalThreshold,
		sizeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "routecodex",
			Subsystem: "memory",
			Name:      "tracked_bytes",
			Help:      "Total size of resources currently tracked by the memory manager.",
		}),
		evictCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routecodex",
			Subsystem: "memory",
			Name:      "evictions_total",
			Help:      "Count of resources evicted by the memory manager, by strategy.",
		}, []string{"strategy"}),
	}
}

// Collectors exposes the manager's Prometheus collectors.
func (m *Manager) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.sizeGauge, m.evictCounter}
}

// Track registers a resource and then, if the total now exceeds the
// critical threshold, evicts by the configured strategy until it no longer
// does; the resource just added can itself be evicted. Above the warning
// threshold only a warning is logged.
func (m *Manager) Track(key string, size int64, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	if existing, ok := m.resources[key]; ok {
		m.totalSize -= existing.Size
		m.lru.Remove(existing.elem)
	}

	r := &Resource{
		Key:        key,
		Size:       size,
		insertedAt: now,
		accessedAt: now,
	}

	if ttl > 0 {
		r.ExpiresAt = now.Add(ttl)
	}

	r.elem = m.lru.PushFront(r)
	m.resources[key] = r
	m.totalSize += size

	m.sizeGauge.Set(float64(m.totalSize))

	if m.criticalThreshold > 0 && m.totalSize > m.criticalThreshold {
		m.evictLocked(m.totalSize - m.criticalThreshold)
	} else if m.warningThreshold > 0 && m.totalSize > m.warningThreshold {
		m.logger.Warn("memory manager above warning threshold", "total", m.totalSize, "warning", m.warningThreshold)
	}
}

// Touch records an access to a resource, used by the LRU/LFU strategies.
func (m *Manager) Touch(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.resources[key]
	if !ok {
		return
	}

	r.accessedAt = time.Now()
	r.accesses++
	m.lru.MoveToFront(r.elem)
}

// Release removes a resource from tracking entirely, regardless of
// threshold pressure (the caller is done with it).
func (m *Manager) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.resources[key]
	if !ok {
		return
	}

	m.totalSize -= r.Size
	m.lru.Remove(r.elem)
	delete(m.resources, key)
	m.sizeGauge.Set(float64(m.totalSize))
}

// TotalSize returns the sum of all tracked resource sizes.
func (m *Manager) TotalSize() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.totalSize
}

// EvictExpired removes every resource whose TTL has elapsed, regardless of
// strategy — TTL expiry is always honored even under an LRU/LFU/FIFO/size
// strategy, since an expired resource is never valid to serve.
func (m *Manager) EvictExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	evicted := 0

	for key, r := range m.resources {
		if !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now) {
			m.totalSize -= r.Size
			m.lru.Remove(r.elem)
			delete(m.resources, key)
			evicted++
		}
	}

	if evicted > 0 {
		m.sizeGauge.Set(float64(m.totalSize))
		m.evictCounter.WithLabelValues(string(StrategyTTL)).Add(float64(evicted))
	}

	return evicted
}

// evictLocked frees at least targetBytes according to the configured
// strategy. Caller must hold m.mu.
func (m *Manager) evictLocked(targetBytes int64) {
	freed := int64(0)
	before := len(m.resources)

	switch m.strategy {
	case StrategyLRU:
		freed = m.evictLRULocked(targetBytes)
	case StrategyLFU:
		freed = m.evictLFULocked(targetBytes)
	case StrategyFIFO:
		freed = m.evictFIFOLocked(targetBytes)
	case StrategySize:
		freed = m.evictLargestLocked(targetBytes)
	case StrategyTTL:
		freed = m.evictSoonestExpiryLocked(targetBytes)
	case StrategyHybrid:
		// Hybrid: expired resources first, then fall back to LRU for
		// whatever shortfall remains.
		now := time.Now()
		for key, r := range m.resources {
			if freed < targetBytes && !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now) {
				freed += r.Size
				m.totalSize -= r.Size
				m.lru.Remove(r.elem)
				delete(m.resources, key)
			}
		}

		m.sizeGauge.Set(float64(m.totalSize))

		if freed < targetBytes {
			freed += m.evictLRULocked(targetBytes - freed)
		}
	default:
		freed = m.evictLRULocked(targetBytes)
	}

	if evicted := before - len(m.resources); evicted > 0 {
		m.evictCounter.WithLabelValues(string(m.strategy)).Add(float64(evicted))
	}
}

// evictLRULocked evicts from the back of the LRU list (least recently
// used) until targetBytes has been freed.
func (m *Manager) evictLRULocked(targetBytes int64) int64 {
	var freed int64

	for freed < targetBytes {
		back := m.lru.Back()
		if back == nil {
			break
		}

		r := back.Value.(*Resource)
		freed += r.Size
		m.totalSize -= r.Size
		m.lru.Remove(back)
		delete(m.resources, r.Key)
	}

	m.sizeGauge.Set(float64(m.totalSize))

	return freed
}

func (m *Manager) evictLFULocked(targetBytes int64) int64 {
	return m.evictByLocked(targetBytes, func(a, b *Resource) bool { return a.accesses < b.accesses })
}

func (m *Manager) evictFIFOLocked(targetBytes int64) int64 {
	return m.evictByLocked(targetBytes, func(a, b *Resource) bool { return a.insertedAt.Before(b.insertedAt) })
}

func (m *Manager) evictLargestLocked(targetBytes int64) int64 {
	return m.evictByLocked(targetBytes, func(a, b *Resource) bool { return a.Size > b.Size })
}

func (m *Manager) evictSoonestExpiryLocked(targetBytes int64) int64 {
	return m.evictByLocked(targetBytes, func(a, b *Resource) bool {
		if a.ExpiresAt.IsZero() {
			return false
		}

		if b.ExpiresAt.IsZero() {
			return true
		}

		return a.ExpiresAt.Before(b.ExpiresAt)
	})
}

// evictByLocked repeatedly picks the "least" resource per less (a linear
// scan — resource counts here are small per-process working sets, not a
// reason to maintain a second heap index alongside the LRU list).
func (m *Manager) evictByLocked(targetBytes int64, less func(a, b *Resource) bool) int64 {
	var freed int64

	for freed < targetBytes {
		var victim *Resource

		for _, r := range m.resources {
			if victim == nil || less(r, victim) {
				victim = r
			}
		}

		if victim == nil {
			break
		}

		freed += victim.Size
		m.totalSize -= victim.Size
		m.lru.Remove(victim.elem)
		delete(m.resources, victim.Key)
	}

	m.sizeGauge.Set(float64(m.totalSize))

	return freed
}
