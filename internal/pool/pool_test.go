package pool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/routecodex/routecodex/internal/corex"
)

type fakeModule struct {
	id   string
	typ  ModuleType
	hash string
}

func (m *fakeModule) Type() ModuleType     { return m.typ }
func (m *fakeModule) ID() string           { return m.id }
func (m *fakeModule) ConfigHash() string   { return m.hash }
func (m *fakeModule) ProcessIncoming(_ context.Context, payload *corex.Payload) (*corex.Payload, error) {
	return payload, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFactory(idPrefix string, fail bool) Factory {
	n := 0
	return func(_ context.Context, config map[string]any) (Module, error) {
		n++
		if fail {
			return nil, errors.New("boom")
		}

		return &fakeModule{id: idPrefix, typ: TypeProvider, hash: ConfigHash(config)}, nil
	}
}

func TestPreloadIsIdempotent(t *testing.T) {
	p := New(testLogger())
	p.RegisterFactory(TypeProvider, newFactory("provider-a", false))

	specs := []ModuleSpec{{Type: TypeProvider, Config: map[string]any{"providerId": "a"}}}

	if err := p.Preload(context.Background(), specs); err != nil {
		t.Fatalf("first preload: %v", err)
	}

	if err := p.Preload(context.Background(), specs); err != nil {
		t.Fatalf("second preload: %v", err)
	}

	if got := p.Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1 after idempotent preload", got)
	}
}

func TestPreloadDeduplicatesWithinOneCall(t *testing.T) {
	p := New(testLogger())
	p.RegisterFactory(TypeProvider, newFactory("provider-a", false))

	specs := []ModuleSpec{
		{Type: TypeProvider, Config: map[string]any{"providerId": "a"}},
		{Type: TypeProvider, Config: map[string]any{"providerId": "a"}},
	}

	if err := p.Preload(context.Background(), specs); err != nil {
		t.Fatalf("preload: %v", err)
	}

	if got := p.Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1 after deduplicated preload", got)
	}
}

func TestPreloadCriticalFailureIsFatal(t *testing.T) {
	p := New(testLogger())
	p.RegisterFactory(TypeProvider, newFactory("provider-a", true))

	specs := []ModuleSpec{{Type: TypeProvider, Config: map[string]any{"providerId": "a"}}}

	if err := p.Preload(context.Background(), specs); err == nil {
		t.Fatal("expected error when a critical module fails to instantiate")
	}
}

func TestPreloadOptionalFailureIsSkipped(t *testing.T) {
	p := New(testLogger())
	p.RegisterFactory(TypeLLMSwitch, newFactory("switch-a", true))

	specs := []ModuleSpec{{Type: TypeLLMSwitch, Config: map[string]any{}}}

	if err := p.Preload(context.Background(), specs); err != nil {
		t.Fatalf("expected optional module failure to be swallowed, got %v", err)
	}

	if got := p.Size(); got != 0 {
		t.Fatalf("Size() = %d, want 0", got)
	}
}

func TestGetMissReturnsInstanceNotFound(t *testing.T) {
	p := New(testLogger())

	_, err := p.Get(TypeProvider, map[string]any{"providerId": "missing"})
	if err == nil {
		t.Fatal("expected error for unpreloaded instance")
	}

	var rcErr *corex.RouteCodexError
	if !errors.As(err, &rcErr) || rcErr.Code != "instance_not_found" {
		t.Fatalf("expected instance_not_found, got %v", err)
	}
}

func TestGetReturnsPreloadedInstance(t *testing.T) {
	p := New(testLogger())
	p.RegisterFactory(TypeProvider, newFactory("provider-a", false))

	config := map[string]any{"providerId": "a"}
	if err := p.Preload(context.Background(), []ModuleSpec{{Type: TypeProvider, Config: config}}); err != nil {
		t.Fatalf("preload: %v", err)
	}

	mod, err := p.Get(TypeProvider, config)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if mod.ID() != "provider-a" {
		t.Fatalf("ID() = %q, want provider-a", mod.ID())
	}
}

func TestHealthDegradesAfterThresholdAndRecovers(t *testing.T) {
	p := New(testLogger(), WithDegradeThreshold(2))
	p.RegisterFactory(TypeProvider, newFactory("provider-a", false))

	config := map[string]any{"providerId": "a"}
	if err := p.Preload(context.Background(), []ModuleSpec{{Type: TypeProvider, Config: config}}); err != nil {
		t.Fatalf("preload: %v", err)
	}

	p.RecordFailure(TypeProvider, config, false)

	state, err := p.Health(TypeProvider, config)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}

	if state != HealthHealthy {
		t.Fatalf("expected still healthy after one failure below threshold, got %s", state)
	}

	p.RecordFailure(TypeProvider, config, false)

	state, _ = p.Health(TypeProvider, config)
	if state != HealthDegraded {
		t.Fatalf("expected degraded after reaching threshold, got %s", state)
	}

	p.RecordSuccess(TypeProvider, config)

	state, _ = p.Health(TypeProvider, config)
	if state != HealthHealthy {
		t.Fatalf("expected healthy after recordSuccess, got %s", state)
	}
}

func TestRecordFailureFatalMarksFailed(t *testing.T) {
	p := New(testLogger())
	p.RegisterFactory(TypeProvider, newFactory("provider-a", false))

	config := map[string]any{"providerId": "a"}
	if err := p.Preload(context.Background(), []ModuleSpec{{Type: TypeProvider, Config: config}}); err != nil {
		t.Fatalf("preload: %v", err)
	}

	p.RecordFailure(TypeProvider, config, true)

	state, _ := p.Health(TypeProvider, config)
	if state != HealthFailed {
		t.Fatalf("expected failed state, got %s", state)
	}
}

func TestEvictRemovesMatchingEntries(t *testing.T) {
	p := New(testLogger())
	p.RegisterFactory(TypeProvider, newFactory("provider-a", false))

	config := map[string]any{"providerId": "a"}
	if err := p.Preload(context.Background(), []ModuleSpec{{Type: TypeProvider, Config: config}}); err != nil {
		t.Fatalf("preload: %v", err)
	}

	evicted := p.Evict(func(moduleType ModuleType, instance Module, h HealthState) bool {
		return moduleType == TypeProvider
	})

	if evicted != 1 {
		t.Fatalf("Evict() = %d, want 1", evicted)
	}

	if got := p.Size(); got != 0 {
		t.Fatalf("Size() = %d, want 0 after evict", got)
	}
}

func TestModuleTypeCritical(t *testing.T) {
	cases := map[ModuleType]bool{
		TypeProvider:      true,
		TypeCompatibility: true,
		TypeLLMSwitch:     false,
	}

	for typ, want := range cases {
		if got := typ.Critical(); got != want {
			t.Errorf("%s.Critical() = %v, want %v", typ, got, want)
		}
	}
}
