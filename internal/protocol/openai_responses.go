package protocol

import (
	"encoding/json"

	"github.com/routecodex/routecodex/internal/corex"
)

// OpenAIResponsesAdapter speaks the OpenAI Responses wire shape:
// /responses, {input, tools}, output[] items of type message/function_call.
// Distinct from OpenAIChatAdapter because the request/response envelopes
// differ even though both protocols come from the same brand — exactly the
// case spec.md §4.5 calls out as why adapters key on protocol, not brand.
type OpenAIResponsesAdapter struct{}

// NewOpenAIResponsesAdapter constructs the openai-responses adapter.
func NewOpenAIResponsesAdapter() *OpenAIResponsesAdapter { return &OpenAIResponsesAdapter{} }

func (a *OpenAIResponsesAdapter) Name() Name { return OpenAIResponses }

func (a *OpenAIResponsesAdapter) ResolveEndpoint(baseURL, _ string, _ bool) string {
	return baseURL + "/responses"
}

func (a *OpenAIResponsesAdapter) BuildBody(req *corex.Payload, model string) (map[string]any, error) {
	body := map[string]any{"model": model}

	if stream, ok := req.Body["stream"].(bool); ok {
		body["stream"] = stream
	}

	instructions, input := messagesToInputItems(req.Body["messages"])
	if instructions != "" {
		body["instructions"] = instructions
	}

	body["input"] = input

	if tools, ok := req.Body["tools"]; ok {
		body["tools"] = responsesTools(tools)
	}

	return body, nil
}

// messagesToInputItems converts the canonical chat-shaped message list into
// Responses' input[] items (§4.3 "Chat -> Responses (request)"): a leading
// system message is flattened out into `instructions` rather than emitted
// as an input item, assistant tool_calls become function_call items, and
// tool-role messages become function_call_output items.
func messagesToInputItems(messages any) (instructions string, items []any) {
	list, ok := messages.([]any)
	if !ok {
		return "", nil
	}

	items = make([]any, 0, len(list))

	for _, m := range list {
		msg, ok := m.(map[string]any)
		if !ok {
			continue
		}

		role, _ := msg["role"].(string)

		switch role {
		case "system":
			if text, ok := msg["content"].(string); ok {
				if instructions != "" {
					instructions += "\n"
				}

				instructions += text
			}

		case "tool":
			items = append(items, map[string]any{
				"type":    "function_call_output",
				"call_id": msg["tool_call_id"],
				"output":  msg["content"],
			})

		case "assistant":
			if text, ok := msg["content"].(string); ok && text != "" {
				items = append(items, map[string]any{
					"type":    "message",
					"role":    "assistant",
					"content": text,
				})
			}

			for _, rawCall := range anySlice(msg["tool_calls"]) {
				call, ok := rawCall.(map[string]any)
				if !ok {
					continue
				}

				fn, _ := call["function"].(map[string]any)

				items = append(items, map[string]any{
					"type":      "function_call",
					"call_id":   call["id"],
					"name":      fn["name"],
					"arguments": fn["arguments"],
				})
			}

		default:
			items = append(items, map[string]any{
				"type":    "message",
				"role":    role,
				"content": msg["content"],
			})
		}
	}

	return instructions, items
}

// responsesTools converts the canonical {type:"function", function:{...}}
// declarations into Responses' flattened {type:"function", name,
// description, parameters} shape.
func responsesTools(raw any) []any {
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
			"type":        "function",
			"name":        fn["name"],
			"description": fn["description"],
			"parameters":  fn["parameters"],
		})
	}

	return out
}

func (a *OpenAIResponsesAdapter) ParseResponse(raw []byte) (*ParsedResponse, error) {
	var resp openAIResponsesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, corex.New(corex.KindUpstream, "response_unparseable", err.Error())
	}

	out := &ParsedResponse{ID: resp.ID, Model: resp.Model, Role: "assistant"}

	if resp.Usage != nil {
		out.Usage = Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	}

	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				if c.Type == "output_text" {
					out.Text += c.Text
				}
			}
		case "function_call":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        item.CallID,
				Name:      item.Name,
				Arguments: item.Arguments,
			})
		}
	}

	out.FinishReason = resp.Status

	return out, nil
}

func (a *OpenAIResponsesAdapter) ParseStreamChunk(raw []byte, state *StreamState) (*StreamEvent, error) {
	var chunk openAIResponsesStreamEvent
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil, corex.New(corex.KindUpstream, "response_unparseable", err.Error())
	}

	event := &StreamEvent{}

	switch chunk.Type {
	case "response.output_text.delta":
		event.TextDelta = chunk.Delta
	case "response.function_call_arguments.delta":
		event.ToolDelta = chunk.Delta
	case "response.function_call.created":
		event.ToolCall = &ToolCall{ID: chunk.CallID, Name: chunk.Name}
	case "response.completed":
		event.Done = true
		event.FinishReason = "stop"

		if chunk.Response != nil && chunk.Response.Usage != nil {
			event.Usage = Usage{
				InputTokens:  chunk.Response.Usage.InputTokens,
				OutputTokens: chunk.Response.Usage.OutputTokens,
			}
		}
	}

	return event, nil
}

type openAIResponsesResponse struct {
	ID     string `json:"id"`
	Model  string `json:"model"`
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		CallID  string `json:"call_id"`
		Name    string `json:"name"`
		Arguments string `json:"arguments"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage *openAIResponsesUsage `json:"usage"`
}

type openAIResponsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type openAIResponsesStreamEvent struct {
	Type     string `json:"type"`
	Delta    string `json:"delta"`
	CallID   string `json:"call_id"`
	Name     string `json:"name"`
	Response *struct {
		Usage *openAIResponsesUsage `json:"usage"`
	} `json:"response"`
}
