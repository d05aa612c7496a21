package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/routecodex/routecodex/internal/config"
	"github.com/routecodex/routecodex/internal/corex"
	"github.com/routecodex/routecodex/internal/kernel"
	"github.com/routecodex/routecodex/internal/pool"
	"github.com/routecodex/routecodex/internal/profile"
	"github.com/routecodex/routecodex/internal/protocol"
	"github.com/routecodex/routecodex/internal/toolbridge"
)

// LLMSwitchModule is the terminal module of every chain (§4.2, §4.5): it
// resolves the bound wire protocol's adapter, executes the request through
// the provider kernel, parses the upstream response, and canonicalizes any
// tool calls before handing the payload back to the connector.
type LLMSwitchModule struct {
	id        string
	hash      string
	protocols *protocol.Registry
	executor  *kernel.Executor
	idStyle   toolbridge.IDStyle
}

func (m *LLMSwitchModule) Type() pool.ModuleType { return pool.TypeLLMSwitch }
func (m *LLMSwitchModule) ID() string            { return m.id }
func (m *LLMSwitchModule) ConfigHash() string    { return m.hash }

func (m *LLMSwitchModule) ProcessIncoming(ctx context.Context, payload *corex.Payload) (*corex.Payload, error) {
	binding, ok := payload.Meta["binding"].(config.ProviderBinding)
	if !ok {
		return nil, corex.New(corex.KindRouting, "binding_missing", "llmswitch reached with no provider binding attached")
	}

	var prof *profile.Profile
	if p, ok := payload.Meta["profile"].(*profile.Profile); ok {
		prof = p
	}

	adapter, err := m.protocols.Resolve(protocol.Name(binding.Protocol))
	if err != nil {
		return nil, err
	}

	model, _ := payload.Body["model"].(string)

	body, err := adapter.BuildBody(payload, model)
	if err != nil {
		return nil, err
	}

	if prof != nil && prof.ApplyRequestPolicy != nil {
		prof.ApplyRequestPolicy(body)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal upstream request body: %w", err)
	}

	endpoint := adapter.ResolveEndpoint(binding.BaseURL, model, payload.Streaming)

	// The compatibility module already ran the bound profile's
	// ApplyHeaderPolicy into payload.Headers (§4.2's two-stage chain) — pick
	// that up as the transport base instead of rebuilding it here.
	header := http.Header(payload.Headers)
	if header == nil {
		header = http.Header{}
	}

	header.Set("Content-Type", "application/json")

	if prof != nil && prof.ApplySigningPolicy != nil {
		if name, value := prof.ApplySigningPolicy(raw); name != "" {
			header.Set(name, value)
		}
	}

	kernelBinding := kernel.Binding{
		ProviderKey: binding.ProviderID,
		Credential:  credentialFor(binding),
		Retry:       retryPolicyFor(binding),
	}

	requestID, _ := payload.Meta["requestId"].(string)

	result, err := m.executor.Do(ctx, requestID, kernelBinding, http.MethodPost, endpoint, header, raw)
	if err != nil {
		return nil, err
	}

	parsed, err := adapter.ParseResponse(result.Body)
	if err != nil {
		return nil, err
	}

	bridge := toolbridge.New(m.idStyle)
	envelopes := bridge.CanonicalizeToolCalls(parsed.ToolCalls)

	responseBody := map[string]any{
		"id":           parsed.ID,
		"model":        parsed.Model,
		"role":         parsed.Role,
		"text":         parsed.Text,
		"toolCalls":    envelopes,
		"finishReason": parsed.FinishReason,
		"usage": map[string]any{
			"inputTokens":  parsed.Usage.InputTokens,
			"outputTokens": parsed.Usage.OutputTokens,
		},
		"raw": parsed.Raw,
	}

	if prof != nil {
		if prof.ApplyResponsePolicy != nil {
			prof.ApplyResponsePolicy(responseBody)
		}

		if prof.MapError != nil {
			if code, ok := responseBody["code"].(string); ok {
				responseBody["code"] = prof.MapError(code)
			}
		}
	}

	if businessErr, ok := responseBody["businessError"].(*profile.BusinessError); ok {
		return nil, corex.New(businessErr.Kind, businessErr.Code, businessErr.Message).
			WithRequestID(requestID).
			WithDetails(map[string]any{"upstreamCode": businessErr.UpstreamCode})
	}

	delete(responseBody, "raw")

	out := payload.Clone()
	out.Body = responseBody
	out.Meta["toolDiagnostics"] = bridge.Diagnostics()

	return out, nil
}

func credentialFor(b config.ProviderBinding) kernel.Credential {
	return kernel.Credential{
		Mode:       kernel.AuthMode(b.AuthMode),
		HeaderName: b.AuthHeaderName,
		Value:      b.APIKey,
		FilePath:   b.TokenFile,
		CookieName: b.CookieName,
	}
}

func retryPolicyFor(b config.ProviderBinding) kernel.RetryPolicy {
	policy := kernel.DefaultRetryPolicy()

	if b.RetryStrategy != "" {
		policy.Strategy = kernel.RetryStrategy(b.RetryStrategy)
	}

	if b.MaxRetries > 0 {
		policy.MaxRetries = b.MaxRetries
	}

	return policy
}

// NewLLMSwitchFactory builds a pool.Factory for the terminal chain module.
func NewLLMSwitchFactory(protocols *protocol.Registry, executor *kernel.Executor, idStyle toolbridge.IDStyle) pool.Factory {
	return func(_ context.Context, cfg map[string]any) (pool.Module, error) {
		return &LLMSwitchModule{
			id:        "llmswitch",
			hash:      pool.ConfigHash(cfg),
			protocols: protocols,
			executor:  executor,
			idStyle:   idStyle,
		}, nil
	}
}
