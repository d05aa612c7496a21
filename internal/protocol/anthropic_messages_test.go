package protocol

import (
	"testing"

	"github.com/routecodex/routecodex/internal/corex"
)

func TestAnthropicMessagesResolveEndpoint(t *testing.T) {
	a := NewAnthropicMessagesAdapter()

	got := a.ResolveEndpoint("https://api.anthropic.com", "claude-3-opus", false)
	if got != "https://api.anthropic.com/v1/messages" {
		t.Fatalf("got %q", got)
	}
}

func TestAnthropicMessagesBuildBody(t *testing.T) {
	a := NewAnthropicMessagesAdapter()

	payload := &corex.Payload{Body: map[string]any{"messages": []any{}}}

	body, err := a.BuildBody(payload, "claude-3-opus")
	if err != nil {
		t.Fatalf("BuildBody: %v", err)
	}

	if body["model"] != "claude-3-opus" {
		t.Fatalf("model = %v", body["model"])
	}
}

func TestAnthropicMessagesBuildBodyConvertsCanonicalShape(t *testing.T) {
	a := NewAnthropicMessagesAdapter()

	payload := &corex.Payload{Body: map[string]any{
		"messages": []any{
			map[string]any{"role": "system", "content": "be terse"},
			map[string]any{"role": "user", "content": "list files"},
			map[string]any{
				"role": "assistant",
				"tool_calls": []any{
					map[string]any{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      "list_files",
							"arguments": `{"path":"."}`,
						},
					},
				},
			},
			map[string]any{"role": "tool", "tool_call_id": "call_1", "content": "a.txt"},
		},
		"tools": []any{
			map[string]any{"type": "function", "function": map[string]any{
				"name": "list_files", "description": "lists files", "parameters": map[string]any{"type": "object"},
			}},
		},
	}}

	body, err := a.BuildBody(payload, "claude-3-opus")
	if err != nil {
		t.Fatalf("BuildBody: %v", err)
	}

	if body["system"] != "be terse" {
		t.Fatalf("system = %v, want flattened system message", body["system"])
	}

	messages := body["messages"].([]any)
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages (system flattened out), got %d: %#v", len(messages), messages)
	}

	assistant := messages[1].(map[string]any)
	content := assistant["content"].([]any)

	var sawToolUse bool

	for _, c := range content {
		block := c.(map[string]any)
		if block["type"] == "tool_use" {
			sawToolUse = true

			if block["name"] != "list_files" {
				t.Fatalf("name = %v, want list_files", block["name"])
			}

			input, _ := block["input"].(map[string]any)
			if input["path"] != "." {
				t.Fatalf("input = %#v, want decoded arguments", input)
			}
		}
	}

	if !sawToolUse {
		t.Fatal("expected a tool_use content block")
	}

	toolResult := messages[2].(map[string]any)
	if toolResult["role"] != "user" {
		t.Fatalf("tool result role = %v, want user", toolResult["role"])
	}

	resultContent := toolResult["content"].([]any)[0].(map[string]any)
	if resultContent["type"] != "tool_result" || resultContent["tool_use_id"] != "call_1" {
		t.Fatalf("unexpected tool_result block: %#v", resultContent)
	}

	tools := body["tools"].([]any)
	tool := tools[0].(map[string]any)
	if tool["name"] != "list_files" || tool["input_schema"] == nil {
		t.Fatalf("unexpected tool declaration: %#v", tool)
	}
}

func TestAnthropicMessagesParseResponseTextAndToolUse(t *testing.T) {
	a := NewAnthropicMessagesAdapter()

	raw := []byte(`{
		"id": "msg_1",
		"model": "claude-3-opus",
		"role": "assistant",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "let me check"},
			{"type": "tool_use", "id": "toolu_1", "name": "lookup", "input": {"q": "x"}}
		],
		"usage": {"input_tokens": 20, "output_tokens": 8}
	}`)

	parsed, err := a.ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}

	if parsed.Text != "let me check" {
		t.Fatalf("Text = %q", parsed.Text)
	}

	if parsed.FinishReason != "tool_use" {
		t.Fatalf("FinishReason = %q", parsed.FinishReason)
	}

	if len(parsed.ToolCalls) != 1 || parsed.ToolCalls[0].Name != "lookup" {
		t.Fatalf("unexpected tool calls: %#v", parsed.ToolCalls)
	}

	if parsed.Usage.InputTokens != 20 || parsed.Usage.OutputTokens != 8 {
		t.Fatalf("unexpected usage: %#v", parsed.Usage)
	}
}

func TestAnthropicMessagesParseStreamChunkEvents(t *testing.T) {
	a := NewAnthropicMessagesAdapter()
	state := NewStreamState()

	start := []byte(`{"type":"message_start","message":{"id":"msg_1","model":"claude-3-opus"}}`)
	if _, err := a.ParseStreamChunk(start, state); err != nil {
		t.Fatalf("message_start: %v", err)
	}

	if state.MessageID != "msg_1" {
		t.Fatalf("MessageID = %q", state.MessageID)
	}

	delta := []byte(`{"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}`)

	event, err := a.ParseStreamChunk(delta, state)
	if err != nil {
		t.Fatalf("content_block_delta: %v", err)
	}

	if event.TextDelta != "hi" {
		t.Fatalf("TextDelta = %q", event.TextDelta)
	}

	finish := []byte(`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"input_tokens":5,"output_tokens":3}}`)

	event, err = a.ParseStreamChunk(finish, state)
	if err != nil {
		t.Fatalf("message_delta: %v", err)
	}

	if !event.Done || event.FinishReason != "end_turn" {
		t.Fatalf("unexpected terminal event: %#v", event)
	}
}
