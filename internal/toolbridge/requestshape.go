package toolbridge

import (
	"encoding/json"
	"strings"
)

// CanonicalizeResponsesRequest converts an OpenAI Responses-shaped request
// body into the canonical chat-style body every protocol adapter's
// BuildBody assumes (§4.3 "Responses -> Chat (request)"): `instructions`
// is flattened into a leading system message, `input` items carrying
// prior-turn tool calls/results are folded into assistant tool_calls and
// tool-role messages, and dotted tool names are rewritten with the server
// portion recorded for MCP discovery.
func (b *Bridge) CanonicalizeResponsesRequest(body map[string]any) map[string]any {
	out := cloneShallow(body)
	delete(out, "input")
	delete(out, "instructions")

	var messages []any

	if instructions, ok := body["instructions"].(string); ok && instructions != "" {
		messages = append(messages, map[string]any{"role": "system", "content": instructions})
	}

	items := responsesInputItems(body["input"])

	var pendingToolCalls []any

	flushToolCalls := func() {
		if len(pendingToolCalls) == 0 {
			return
		}

		messages = append(messages, map[string]any{"role": "assistant", "tool_calls": pendingToolCalls})
		pendingToolCalls = nil
	}

	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		switch item["type"] {
		case "message", "":
			flushToolCalls()

			role, _ := item["role"].(string)
			if role == "" {
				role = "user"
			}

			messages = append(messages, map[string]any{"role": role, "content": flattenResponsesContent(item["content"])})

		case "function_call":
			name, _ := item["name"].(string)
			if short, server, dotted := RewriteDottedToolName(name); dotted {
				b.mcpServers[server] = true
				name = short
			}

			callID, _ := item["call_id"].(string)

			pendingToolCalls = append(pendingToolCalls, map[string]any{
				"id":   callID,
				"type": "function",
				"function": map[string]any{
					"name":      name,
					"arguments": item["arguments"],
				},
			})

		case "function_call_output":
			flushToolCalls()

			callID, _ := item["call_id"].(string)
			messages = append(messages, map[string]any{
				"role":         "tool",
				"tool_call_id": callID,
				"content":      flattenResponsesContent(item["output"]),
			})
		}
	}

	flushToolCalls()

	out["messages"] = messages

	return out
}

func responsesInputItems(input any) []any {
	switch v := input.(type) {
	case []any:
		return v
	case string:
		return []any{map[string]any{"type": "message", "role": "user", "content": v}}
	default:
		return nil
	}
}

// flattenResponsesContent collapses a Responses content value (a plain
// string, or an array of {type:"input_text"|"output_text", text} parts)
// down to the plain string canonical chat messages carry.
func flattenResponsesContent(content any) string {
	if s, ok := content.(string); ok {
		return s
	}

	parts, ok := content.([]any)
	if !ok {
		return ""
	}

	var texts []string

	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}

		if text, ok := part["text"].(string); ok {
			texts = append(texts, text)
		}
	}

	return strings.Join(texts, "\n")
}

// CanonicalizeMessagesRequest converts an Anthropic Messages-shaped request
// body into the canonical chat-style body (§4.3, applied symmetrically to
// the Responses direction): the top-level `system` field becomes a
// leading system message, and each message's content blocks are split into
// plain text, assistant tool_calls (from tool_use blocks), and tool-role
// messages (from tool_result blocks).
func (b *Bridge) CanonicalizeMessagesRequest(body map[string]any) map[string]any {
	out := cloneShallow(body)
	delete(out, "system")

	var messages []any

	if system, ok := body["system"]; ok {
		if text := flattenAnthropicSystem(system); text != "" {
			messages = append(messages, map[string]any{"role": "system", "content": text})
		}
	}

	for _, raw := range anySlice(body["messages"]) {
		msg, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		role, _ := msg["role"].(string)

		if text, ok := msg["content"].(string); ok {
			messages = append(messages, map[string]any{"role": role, "content": text})
			continue
		}

		blocks := anySlice(msg["content"])

		var text strings.Builder

		var toolCalls []any

		for _, raw := range blocks {
			block, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			switch block["type"] {
			case "text":
				if t, _ := block["text"].(string); t != "" {
					if text.Len() > 0 {
						text.WriteByte('\n')
					}

					text.WriteString(t)
				}

			case "tool_use":
				name, _ := block["name"].(string)
				if short, server, dotted := RewriteDottedToolName(name); dotted {
					b.mcpServers[server] = true
					name = short
				}

				args, _ := json.Marshal(block["input"])

				toolCalls = append(toolCalls, map[string]any{
					"id":   block["id"],
					"type": "function",
					"function": map[string]any{
						"name":      name,
						"arguments": string(args),
					},
				})

			case "tool_result":
				messages = append(messages, map[string]any{
					"role":         "tool",
					"tool_call_id": block["tool_use_id"],
					"content":      flattenResponsesContent(block["content"]),
				})
			}
		}

		if text.Len() == 0 && len(toolCalls) == 0 {
			continue
		}

		entry := map[string]any{"role": role}
		if text.Len() > 0 {
			entry["content"] = text.String()
		}

		if len(toolCalls) > 0 {
			entry["tool_calls"] = toolCalls
		}

		messages = append(messages, entry)
	}

	out["messages"] = messages

	return out
}

func flattenAnthropicSystem(system any) string {
	if s, ok := system.(string); ok {
		return s
	}

	var texts []string

	for _, raw := range anySlice(system) {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		if t, _ := block["text"].(string); t != "" {
			texts = append(texts, t)
		}
	}

	return strings.Join(texts, "\n")
}

func anySlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func cloneShallow(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}

	return out
}
