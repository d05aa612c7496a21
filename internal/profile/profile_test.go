package profile

import (
	"net/http"
	"testing"

	"github.com/routecodex/routecodex/internal/corex"
)

func TestRegistryResolveUnboundReturnsBindingError(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("openai-chat", "openai-main", "")
	if err == nil {
		t.Fatal("expected error for unbound triple")
	}

	var rcErr *corex.RouteCodexError
	if !asRouteCodexError(err, &rcErr) || rcErr.Code != "profile_unbound" {
		t.Fatalf("expected profile_unbound, got %v", err)
	}
}

func TestRegistryBindAndResolve(t *testing.T) {
	r := NewRegistry()
	r.Bind("openai-chat", "openai-main", "", FamilyOpenAI)

	prof, err := r.Resolve("openai-chat", "openai-main", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if prof.Family != FamilyOpenAI {
		t.Fatalf("Family = %q, want openai", prof.Family)
	}
}

func TestRegistryResolveFamilyNotRegistered(t *testing.T) {
	r := &Registry{profiles: map[Family]*Profile{}, bindings: map[string]Family{}}
	r.Bind("custom-proto", "custom-provider", "", Family("ghost"))

	_, err := r.Resolve("custom-proto", "custom-provider", "")
	if err == nil {
		t.Fatal("expected error for family with no registered profile")
	}

	var rcErr *corex.RouteCodexError
	if !asRouteCodexError(err, &rcErr) || rcErr.Code != "profile_not_registered" {
		t.Fatalf("expected profile_not_registered, got %v", err)
	}
}

func TestAnthropicProfileHeaderPolicy(t *testing.T) {
	prof := anthropicProfile()

	header := http.Header{}
	header.Set("Authorization", "Bearer secret")
	prof.ApplyHeaderPolicy(header, "sk-ant-123")

	if header.Get("x-api-key") != "sk-ant-123" {
		t.Fatalf("expected x-api-key to be set")
	}

	if header.Get("anthropic-version") != "2023-06-01" {
		t.Fatalf("expected anthropic-version header")
	}

	if header.Get("Authorization") != "" {
		t.Fatal("expected Authorization header to be removed")
	}
}

func TestGeminiProfileHeaderPolicy(t *testing.T) {
	prof := geminiProfile()

	header := http.Header{}
	header.Set("Authorization", "Bearer secret")
	prof.ApplyHeaderPolicy(header, "gem-key")

	if header.Get("x-goog-api-key") != "gem-key" {
		t.Fatal("expected x-goog-api-key to be set")
	}

	if header.Get("Authorization") != "" {
		t.Fatal("expected Authorization header to be removed")
	}
}

func TestIFlowProfileInjectsWebSearchTool(t *testing.T) {
	prof := iflowProfile()

	body := map[string]any{"web_search": true}
	prof.ApplyRequestPolicy(body)

	if _, present := body["web_search"]; present {
		t.Fatal("expected web_search field to be removed")
	}

	tools, ok := body["tools"].([]any)
	if !ok || len(tools) != 1 {
		t.Fatalf("expected one injected tool, got %#v", body["tools"])
	}
}

func TestIFlowProfileNoopWhenWebSearchDisabled(t *testing.T) {
	prof := iflowProfile()

	body := map[string]any{"web_search": false}
	prof.ApplyRequestPolicy(body)

	if _, present := body["tools"]; present {
		t.Fatal("expected no tools injected when web_search is false")
	}
}

func TestIFlowProfileReclassifiesTokenExpiredBusinessError(t *testing.T) {
	prof := iflowProfile()

	parsed := map[string]any{"raw": map[string]any{"status": float64(439)}}
	prof.ApplyResponsePolicy(parsed)

	businessErr, ok := parsed["businessError"].(*BusinessError)
	if !ok {
		t.Fatalf("expected a businessError, got %#v", parsed["businessError"])
	}

	if businessErr.Kind != corex.KindAuth || businessErr.Code != "token_expired" {
		t.Fatalf("unexpected businessError: %#v", businessErr)
	}
}

func TestIFlowProfileNoopOnNormalResponse(t *testing.T) {
	prof := iflowProfile()

	parsed := map[string]any{"raw": map[string]any{"status": float64(200)}}
	prof.ApplyResponsePolicy(parsed)

	if _, present := parsed["businessError"]; present {
		t.Fatal("expected no businessError for a normal response")
	}
}

func TestQwenProfileNestsEnableThinking(t *testing.T) {
	prof := qwenProfile()

	body := map[string]any{"enable_thinking": true}
	prof.ApplyRequestPolicy(body)

	if _, present := body["enable_thinking"]; present {
		t.Fatal("expected top-level enable_thinking to be removed")
	}

	extra, ok := body["extra_body"].(map[string]any)
	if !ok || extra["enable_thinking"] != true {
		t.Fatalf("expected enable_thinking nested under extra_body, got %#v", body["extra_body"])
	}
}

func TestGLMProfileRenamesMaxTokensAndMapsError(t *testing.T) {
	prof := glmProfile()

	body := map[string]any{"max_tokens": 256}
	prof.ApplyRequestPolicy(body)

	if _, present := body["max_tokens"]; present {
		t.Fatal("expected max_tokens to be removed")
	}

	if body["max_completion_tokens"] != 256 {
		t.Fatalf("expected max_completion_tokens to carry the value, got %#v", body["max_completion_tokens"])
	}

	if got := prof.MapError("1261"); got != "content_filtered" {
		t.Fatalf("MapError(1261) = %q, want content_filtered", got)
	}

	if got := prof.MapError("other"); got != "other" {
		t.Fatalf("MapError(other) = %q, want passthrough", got)
	}
}

func TestAntigravityProfileStripsSessionHeaders(t *testing.T) {
	prof := antigravityProfile()

	header := http.Header{}
	header.Set("session_id", "s1")
	header.Set("conversation_id", "c1")
	prof.ApplyHeaderPolicy(header, "")

	if header.Get("session_id") != "" || header.Get("conversation_id") != "" {
		t.Fatalf("expected session/conversation headers stripped, got %#v", header)
	}
}

func TestAntigravityProfileWrapsUpstreamErrorInBand(t *testing.T) {
	prof := antigravityProfile()

	parsed := map[string]any{
		"text": "",
		"raw": map[string]any{
			"error": map[string]any{"message": "rate limited"},
		},
	}
	prof.ApplyResponsePolicy(parsed)

	if parsed["text"] != "rate limited" || parsed["finishReason"] != "error" {
		t.Fatalf("expected upstream error wrapped in-band, got %#v", parsed)
	}
}

func asRouteCodexError(err error, target **corex.RouteCodexError) bool {
	rcErr, ok := err.(*corex.RouteCodexError)
	if !ok {
		return false
	}

	*target = rcErr

	return true
}
