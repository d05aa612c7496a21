package modules

import (
	"context"
	"testing"

	"github.com/routecodex/routecodex/internal/config"
	"github.com/routecodex/routecodex/internal/corex"
)

func TestProviderModuleAttachesBindingToMeta(t *testing.T) {
	bindings := map[string]config.ProviderBinding{
		"openai-main": {ProviderID: "openai-main", Protocol: "openai-chat", BaseURL: "https://api.openai.com"},
	}

	factory := NewProviderFactory(bindings)

	mod, err := factory(context.Background(), map[string]any{"providerId": "openai-main"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	if mod.Type() != "provider" {
		t.Fatalf("Type() = %q", mod.Type())
	}

	payload := &corex.Payload{Body: map[string]any{}, Meta: map[string]any{}}

	out, err := mod.ProcessIncoming(context.Background(), payload)
	if err != nil {
		t.Fatalf("ProcessIncoming: %v", err)
	}

	binding, ok := out.Meta["binding"].(config.ProviderBinding)
	if !ok || binding.ProviderID != "openai-main" {
		t.Fatalf("expected binding attached to meta, got %#v", out.Meta["binding"])
	}
}

func TestProviderFactoryMissingProviderID(t *testing.T) {
	factory := NewProviderFactory(map[string]config.ProviderBinding{})

	if _, err := factory(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error when providerId is missing from config")
	}
}

func TestProviderFactoryUnknownProviderID(t *testing.T) {
	factory := NewProviderFactory(map[string]config.ProviderBinding{})

	if _, err := factory(context.Background(), map[string]any{"providerId": "ghost"}); err == nil {
		t.Fatal("expected error for unregistered providerId")
	}
}
