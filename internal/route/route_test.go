package route

import (
	"testing"

	"github.com/routecodex/routecodex/internal/pool"
)

func llmswitchOnly() []pool.ModuleSpec {
	return []pool.ModuleSpec{{Type: pool.TypeLLMSwitch}}
}

func TestDefinitionValidateRequiresLLMSwitchLast(t *testing.T) {
	def := &Definition{ID: "bad", Modules: []pool.ModuleSpec{{Type: pool.TypeProvider}}}
	if err := def.Validate(); err == nil {
		t.Fatal("expected error when route does not end in llmswitch")
	}

	def = &Definition{ID: "empty"}
	if err := def.Validate(); err == nil {
		t.Fatal("expected error for route with no modules")
	}

	def = &Definition{ID: "good", Modules: []pool.ModuleSpec{{Type: pool.TypeProvider}, {Type: pool.TypeLLMSwitch}}}
	if err := def.Validate(); err != nil {
		t.Fatalf("expected valid route, got %v", err)
	}
}

func TestTableAddRouteRejectsInvalidDefinition(t *testing.T) {
	table, err := NewTable()
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	err = table.AddRoute(&Definition{ID: "bad", Modules: []pool.ModuleSpec{{Type: pool.TypeProvider}}})
	if err == nil {
		t.Fatal("expected AddRoute to reject a route not ending in llmswitch")
	}
}

func TestTableAddRouteRejectsInvalidRegex(t *testing.T) {
	table, err := NewTable()
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	def := &Definition{ID: "bad-regex", Pattern: Pattern{ModelRegex: "("}, Modules: llmswitchOnly()}
	if err := table.AddRoute(def); err == nil {
		t.Fatal("expected AddRoute to reject an invalid model regex")
	}
}

func TestTableMatchPriorityOrdering(t *testing.T) {
	table, err := NewTable()
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	low := &Definition{ID: "catch-all", Pattern: Pattern{ModelRegex: ".*"}, Priority: 0, Modules: llmswitchOnly()}
	high := &Definition{ID: "gpt-specific", Pattern: Pattern{ModelRegex: "^gpt-4.*"}, Priority: 10, Modules: llmswitchOnly()}

	if err := table.AddRoute(low); err != nil {
		t.Fatalf("AddRoute low: %v", err)
	}

	if err := table.AddRoute(high); err != nil {
		t.Fatalf("AddRoute high: %v", err)
	}

	def, err := table.Match("gpt-4o", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	if def.ID != "gpt-specific" {
		t.Fatalf("Match() = %q, want gpt-specific (higher priority should win)", def.ID)
	}

	def, err = table.Match("claude-3-opus", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	if def.ID != "catch-all" {
		t.Fatalf("Match() = %q, want catch-all", def.ID)
	}
}

func TestTableMatchNoRouteWithoutDefault(t *testing.T) {
	table, err := NewTable()
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	def := &Definition{ID: "gpt-only", Pattern: Pattern{ModelRegex: "^gpt-.*"}, Modules: llmswitchOnly()}
	if err := table.AddRoute(def); err != nil {
		t.Fatalf("AddRoute: %v", err)
	}

	if _, err := table.Match("claude-3-opus", ""); err == nil {
		t.Fatal("expected no_route error when nothing matches and no default declared")
	}
}

func TestTableMatchFallsBackToExplicitDefault(t *testing.T) {
	table, err := NewTable()
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	gptOnly := &Definition{ID: "gpt-only", Pattern: Pattern{ModelRegex: "^gpt-.*"}, Modules: llmswitchOnly()}
	fallback := &Definition{ID: "fallback", Modules: llmswitchOnly()}

	if err := table.AddRoute(gptOnly); err != nil {
		t.Fatalf("AddRoute: %v", err)
	}

	if err := table.AddRoute(fallback); err != nil {
		t.Fatalf("AddRoute: %v", err)
	}

	table.SetDefaultRoute("fallback")

	def, err := table.Match("claude-3-opus", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	if def.ID != "fallback" {
		t.Fatalf("Match() = %q, want fallback", def.ID)
	}
}

func TestTableMatchRespectsProviderConstraint(t *testing.T) {
	table, err := NewTable()
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	def := &Definition{ID: "openai-only", Pattern: Pattern{ModelRegex: ".*", Provider: "openai-main"}, Modules: llmswitchOnly()}
	if err := table.AddRoute(def); err != nil {
		t.Fatalf("AddRoute: %v", err)
	}

	if _, err := table.Match("gpt-4o", "anthropic-main"); err == nil {
		t.Fatal("expected provider mismatch to prevent match")
	}

	match, err := table.Match("gpt-4o", "openai-main")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	if match.ID != "openai-only" {
		t.Fatalf("Match() = %q, want openai-only", match.ID)
	}
}

func TestTableCountTokens(t *testing.T) {
	table, err := NewTable()
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	if n := table.CountTokens("hello world"); n <= 0 {
		t.Fatalf("CountTokens() = %d, want > 0", n)
	}
}
