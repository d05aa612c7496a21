package protocol

import (
	"encoding/json"
	"strings"

	"github.com/routecodex/routecodex/internal/corex"
)

// AnthropicMessagesAdapter speaks the native Anthropic Messages wire shape:
// /v1/messages, {messages, system, tools}, content[] blocks of type
// text/tool_use. Grounded on the teacher's AnthropicProvider, whose
// Transform/TransformStream were no-ops because the teacher's internal
// representation already was this shape — here BuildBody does that
// conversion explicitly, translating the canonical chat-shaped request
// (§4.3) every binding assembles into the upstream's native wire shape.
type AnthropicMessagesAdapter struct{}

// NewAnthropicMessagesAdapter constructs the anthropic-messages adapter.
func NewAnthropicMessagesAdapter() *AnthropicMessagesAdapter { return &AnthropicMessagesAdapter{} }

func (a *AnthropicMessagesAdapter) Name() Name { return AnthropicMessages }

func (a *AnthropicMessagesAdapter) ResolveEndpoint(baseURL, _ string, _ bool) string {
	return baseURL + "/v1/messages"
}

func (a *AnthropicMessagesAdapter) BuildBody(req *corex.Payload, model string) (map[string]any, error) {
	body := map[string]any{"model": model}

	if stream, ok := req.Body["stream"].(bool); ok {
		body["stream"] = stream
	}

	var system []string

	var messages []any

	for _, raw := range anySlice(req.Body["messages"]) {
		msg, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		role, _ := msg["role"].(string)

		switch role {
		case "system":
			if text, ok := msg["content"].(string); ok && text != "" {
				system = append(system, text)
			}

		case "tool":
			callID, _ := msg["tool_call_id"].(string)
			messages = append(messages, map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{
						"type":        "tool_result",
						"tool_use_id": callID,
						"content":     msg["content"],
					},
				},
			})

		case "assistant":
			var content []any

			if text, ok := msg["content"].(string); ok && text != "" {
				content = append(content, map[string]any{"type": "text", "text": text})
			}

			for _, rawCall := range anySlice(msg["tool_calls"]) {
				call, ok := rawCall.(map[string]any)
				if !ok {
					continue
				}

				fn, _ := call["function"].(map[string]any)

				var input map[string]any

				if args, ok := fn["arguments"].(string); ok && args != "" {
					_ = json.Unmarshal([]byte(args), &input)
				}

				content = append(content, map[string]any{
					"type":  "tool_use",
					"id":    call["id"],
					"name":  fn["name"],
					"input": input,
				})
			}

			messages = append(messages, map[string]any{"role": "assistant", "content": content})

		default:
			messages = append(messages, map[string]any{"role": role, "content": msg["content"]})
		}
	}

	body["messages"] = messages

	if len(system) > 0 {
		body["system"] = strings.Join(system, "\n")
	}

	if tools := anthropicTools(req.Body["tools"]); len(tools) > 0 {
		body["tools"] = tools
	}

	return body, nil
}

// anthropicTools converts the canonical {type:"function", function:{name,
// description, parameters}} tool declarations into Anthropic's
// {name, description, input_schema} shape.
func anthropicTools(raw any) []any {
	var out []any

	for _, r := range anySlice(raw) {
		tool, ok := r.(map[string]any)
		if !ok {
			continue
		}

		fn, _ := tool["function"].(map[string]any)
		if fn == nil {
			continue
		}

		out = append(out, map[string]any{
			"name":         fn["name"],
			"description":  fn["description"],
			"input_schema": fn["parameters"],
		})
	}

	return out
}

func anySlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func (a *AnthropicMessagesAdapter) ParseResponse(raw []byte) (*ParsedResponse, error) {
	var resp anthropicMessagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, corex.New(corex.KindUpstream, "response_unparseable", err.Error())
	}

	out := &ParsedResponse{ID: resp.ID, Model: resp.Model, Role: resp.Role}

	if resp.Usage != nil {
		out.Usage = Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	}

	if resp.StopReason != nil {
		out.FinishReason = *resp.StopReason
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(args),
			})
		}
	}

	return out, nil
}

func (a *AnthropicMessagesAdapter) ParseStreamChunk(raw []byte, state *StreamState) (*StreamEvent, error) {
	var evt anthropicStreamEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, corex.New(corex.KindUpstream, "response_unparseable", err.Error())
	}

	event := &StreamEvent{}

	switch evt.Type {
	case "message_start":
		if evt.Message != nil {
			state.MessageID = evt.Message.ID
			state.Model = evt.Message.Model
		}
	case "content_block_start":
		if evt.ContentBlock != nil && evt.ContentBlock.Type == "tool_use" {
			event.ToolCall = &ToolCall{ID: evt.ContentBlock.ID, Name: evt.ContentBlock.Name}
		}
	case "content_block_delta":
		if evt.Delta != nil {
			if evt.Delta.Type == "text_delta" {
				event.TextDelta = evt.Delta.Text
			} else if evt.Delta.Type == "input_json_delta" {
				event.ToolDelta = evt.Delta.PartialJSON
			}
		}
	case "message_delta":
		if evt.Delta != nil && evt.Delta.StopReason != "" {
			event.Done = true
			event.FinishReason = evt.Delta.StopReason
		}

		if evt.Usage != nil {
			event.Usage = Usage{InputTokens: evt.Usage.InputTokens, OutputTokens: evt.Usage.OutputTokens}
		}
	}

	return event, nil
}

type anthropicMessagesResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	Role       string `json:"role"`
	StopReason *string `json:"stop_reason"`
	Content    []struct {
		Type  string `json:"type"`
		Text  string `json:"text"`
		ID    string `json:"id"`
		Name  string `json:"name"`
		Input any    `json:"input"`
	} `json:"content"`
	Usage *anthropicUsage `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
	} `json:"message"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Usage *anthropicUsage `json:"usage"`
}
