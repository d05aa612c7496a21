package pool

import "sync/atomic"

// HealthState mirrors the instance health states of the data model.
type HealthState int32

const (
	HealthHealthy HealthState = iota
	HealthDegraded
	HealthFailed
)

func (s HealthState) String() string {
	switch s {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// health tracks an instance's failure count and current state with atomic
// updates, so health-state transitions are visible across goroutines without
// a lock (§5 "health-state transitions use atomic updates").
type health struct {
	state           atomic.Int32
	consecutiveFail atomic.Int32
}

func newHealth() *health {
	h := &health{}
	h.state.Store(int32(HealthHealthy))

	return h
}

func (h *health) get() HealthState {
	return HealthState(h.state.Load())
}

// recordSuccess resets the consecutive-failure counter and restores health
// if the instance was merely degraded (not failed — a fatal error requires
// an explicit markFailed).
func (h *health) recordSuccess() {
	h.consecutiveFail.Store(0)

	if HealthState(h.state.Load()) == HealthDegraded {
		h.state.Store(int32(HealthHealthy))
	}
}

// recordFailure increments the consecutive-failure counter and marks the
// instance degraded once threshold is reached.
func (h *health) recordFailure(degradeThreshold int) {
	count := h.consecutiveFail.Add(1)
	if int(count) >= degradeThreshold && HealthState(h.state.Load()) == HealthHealthy {
		h.state.Store(int32(HealthDegraded))
	}
}

func (h *health) markFailed() {
	h.state.Store(int32(HealthFailed))
}
