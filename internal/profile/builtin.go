package profile

import (
	"net/http"

	"github.com/routecodex/routecodex/internal/corex"
)

// builtinProfiles returns the eight family profiles shipped out of the box
// (§4.6). Each hook is grounded on a brand-conditional branch the teacher
// scattered through ProxyHandler (buildEndpointURL, setAuthHeader,
// transformRequestToProviderFormat) — here collected declaratively per
// family instead of re-checked inline on every request.
func builtinProfiles() []*Profile {
	return []*Profile{
		openAIProfile(),
		anthropicProfile(),
		geminiProfile(),
		geminiCLIProfile(),
		iflowProfile(),
		antigravityProfile(),
		qwenProfile(),
		glmProfile(),
	}
}

func openAIProfile() *Profile {
	return &Profile{Family: FamilyOpenAI}
}

func anthropicProfile() *Profile {
	return &Profile{
		Family: FamilyAnthropic,
		ApplyHeaderPolicy: func(header http.Header, apiKey string) {
			header.Set("anthropic-version", "2023-06-01")
			header.Set("x-api-key", apiKey)
			header.Del("Authorization")
		},
	}
}

// geminiProfile is grounded directly on the teacher's setAuthHeader switch
// (gemini uses x-goog-api-key, not Bearer) and buildEndpointURL's Gemini
// branch (model encoded in the URL path, handled by the gemini-chat
// adapter's ResolveEndpoint — the profile only owns the header).
func geminiProfile() *Profile {
	return &Profile{
		Family: FamilyGemini,
		ApplyHeaderPolicy: func(header http.Header, apiKey string) {
			header.Set("x-goog-api-key", apiKey)
			header.Del("Authorization")
		},
	}
}

// geminiCLIProfile covers the gemini-cli compatibility surface (OAuth-based
// Code Assist API rather than a raw API key), distinguished from plain
// gemini per spec.md §13's open-question decision on family granularity.
func geminiCLIProfile() *Profile {
	return &Profile{
		Family: FamilyGeminiCLI,
		ApplyHeaderPolicy: func(header http.Header, _ string) {
			header.Set("x-goog-api-client", "routecodex-gemini-cli")
		},
	}
}

// iflowProfile reflects the §13 open-question decision: web-search
// injection is an iflow-specific request policy, applied here rather than
// as a toolbridge special case.
func iflowProfile() *Profile {
	return &Profile{
		Family: FamilyIFlow,
		ApplyRequestPolicy: func(body map[string]any) {
			if enabled, ok := body["web_search"].(bool); ok && enabled {
				delete(body, "web_search")
				body["tools"] = appendBuiltinTool(body["tools"], "web_search")
			}
		},
		// iFlow reports a token-expired condition as an HTTP-200 body of
		// {status:439}; without this it would surface to the client as a
		// successful empty response instead of the auth-class error it is.
		ApplyResponsePolicy: func(parsed map[string]any) {
			raw, _ := parsed["raw"].(map[string]any)
			if raw == nil {
				return
			}

			if isIFlowTokenExpired(raw["status"]) {
				parsed["businessError"] = &BusinessError{
					Kind:         corex.KindAuth,
					Code:         "token_expired",
					Message:      "iflow session token expired (status=439)",
					UpstreamCode: raw["status"],
				}
			}
		},
	}
}

func isIFlowTokenExpired(status any) bool {
	switch v := status.(type) {
	case float64:
		return v == 439
	case int:
		return v == 439
	}

	return false
}

func antigravityProfile() *Profile {
	return &Profile{
		Family: FamilyAntigravity,
		ApplyHeaderPolicy: func(header http.Header, _ string) {
			header.Del("session_id")
			header.Del("conversation_id")
		},
		// antigravity wraps specific upstream failures (a top-level
		// {error:{message,...}} object alongside an otherwise-200 body)
		// into an in-band response error item instead of a transport
		// failure — the client still gets a 200, but sees the failure as
		// assistant text rather than silently dropping it.
		ApplyResponsePolicy: func(parsed map[string]any) {
			raw, _ := parsed["raw"].(map[string]any)
			if raw == nil {
				return
			}

			upstreamErr, _ := raw["error"].(map[string]any)
			if upstreamErr == nil {
				return
			}

			message, _ := upstreamErr["message"].(string)
			if message == "" {
				message = "upstream reported an error"
			}

			parsed["text"] = message
			parsed["finishReason"] = "error"
		},
	}
}

func qwenProfile() *Profile {
	return &Profile{
		Family: FamilyQwen,
		ApplyRequestPolicy: func(body map[string]any) {
			// qwen's OpenAI-compatible endpoint wants enable_thinking
			// nested under an extra_body object, not at the top level.
			if thinking, ok := body["enable_thinking"]; ok {
				delete(body, "enable_thinking")

				extra, _ := body["extra_body"].(map[string]any)
				if extra == nil {
					extra = make(map[string]any)
				}

				extra["enable_thinking"] = thinking
				body["extra_body"] = extra
			}
		},
	}
}

// glmProfile reflects the §13 open-question decision: glm's
// max_tokens/max_completion_tokens split is a profile-level request policy
// with the protocol adapter's own field name as the default, overridable
// here rather than hardcoded per provider in the adapter.
func glmProfile() *Profile {
	return &Profile{
		Family: FamilyGLM,
		ApplyRequestPolicy: func(body map[string]any) {
			if maxTokens, ok := body["max_tokens"]; ok {
				delete(body, "max_tokens")
				body["max_completion_tokens"] = maxTokens
			}
		},
		MapError: func(upstreamCode string) string {
			if upstreamCode == "1261" {
				return "content_filtered"
			}

			return upstreamCode
		},
	}
}

func appendBuiltinTool(existing any, toolType string) []any {
	tools, _ := existing.([]any)

	return append(tools, map[string]any{"type": toolType})
}
