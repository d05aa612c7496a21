package toolbridge

import "encoding/json"

// ToChatCompletion renders the canonical neutral response produced by
// llmswitch into an OpenAI Chat Completions response body (§4.3 "Chat"
// is itself the canonical response shape, so this mostly just nests it
// under choices/usage the way real chat.completion objects do).
func ToChatCompletion(neutral map[string]any) map[string]any {
	calls := toolCalls(neutral)

	message := map[string]any{"role": neutral["role"], "content": neutral["text"]}
	if len(calls) > 0 {
		message["tool_calls"] = openAIToolCalls(calls)
	}

	return map[string]any{
		"id":      neutral["id"],
		"object":  "chat.completion",
		"model":   neutral["model"],
		"choices": []any{map[string]any{"index": 0, "message": message, "finish_reason": neutral["finishReason"]}},
		"usage":   chatUsage(neutral),
	}
}

// ToResponses renders the canonical neutral response into an OpenAI
// Responses response body (§4.3 "Chat -> Responses (response)"): a
// message output item for any text, a function_call output item per tool
// call, status reflecting whether a tool call is still pending a result.
func ToResponses(neutral map[string]any) map[string]any {
	calls := toolCalls(neutral)

	var output []any

	if text, _ := neutral["text"].(string); text != "" {
		output = append(output, map[string]any{
			"type": "message",
			"role": neutral["role"],
			"content": []any{
				map[string]any{"type": "output_text", "text": text},
			},
		})
	}

	status := "completed"

	for _, c := range calls {
		args, _ := marshalArguments(c.Arguments)
		output = append(output, map[string]any{
			"type":      "function_call",
			"call_id":   c.ID,
			"name":      c.Name,
			"arguments": args,
			"status":    "in_progress",
		})

		status = "in_progress"
	}

	return map[string]any{
		"id":     neutral["id"],
		"model":  neutral["model"],
		"status": status,
		"output": output,
		"usage":  responsesUsage(neutral),
	}
}

// ToMessages renders the canonical neutral response into an Anthropic
// Messages response body: text becomes a text content block, each tool
// call becomes a tool_use block, and finishReason is mapped onto
// Anthropic's stop_reason vocabulary.
func ToMessages(neutral map[string]any) map[string]any {
	calls := toolCalls(neutral)

	var content []any

	if text, _ := neutral["text"].(string); text != "" {
		content = append(content, map[string]any{"type": "text", "text": text})
	}

	for _, c := range calls {
		content = append(content, map[string]any{
			"type":  "tool_use",
			"id":    c.ID,
			"name":  c.Name,
			"input": c.Arguments,
		})
	}

	return map[string]any{
		"id":         neutral["id"],
		"model":      neutral["model"],
		"role":       neutral["role"],
		"type":       "message",
		"content":    content,
		"stop_reason": anthropicStopReason(neutral["finishReason"], len(calls) > 0),
		"usage":      anthropicUsage(neutral),
	}
}

func toolCalls(neutral map[string]any) []ToolCallEnvelope {
	calls, _ := neutral["toolCalls"].([]ToolCallEnvelope)
	return calls
}

func openAIToolCalls(calls []ToolCallEnvelope) []any {
	out := make([]any, 0, len(calls))

	for _, c := range calls {
		args, _ := marshalArguments(c.Arguments)
		out = append(out, map[string]any{
			"id":   c.ID,
			"type": "function",
			"function": map[string]any{
				"name":      c.Name,
				"arguments": args,
			},
		})
	}

	return out
}

func marshalArguments(args map[string]any) (string, error) {
	raw, err := json.Marshal(args)
	return string(raw), err
}

func chatUsage(neutral map[string]any) map[string]any {
	usage, _ := neutral["usage"].(map[string]any)

	return map[string]any{
		"prompt_tokens":     usage["inputTokens"],
		"completion_tokens": usage["outputTokens"],
	}
}

func responsesUsage(neutral map[string]any) map[string]any {
	usage, _ := neutral["usage"].(map[string]any)

	return map[string]any{
		"input_tokens":  usage["inputTokens"],
		"output_tokens": usage["outputTokens"],
	}
}

func anthropicUsage(neutral map[string]any) map[string]any {
	return responsesUsage(neutral)
}

func anthropicStopReason(finishReason any, hasToolCall bool) string {
	if hasToolCall {
		return "tool_use"
	}

	reason, _ := finishReason.(string)

	switch reason {
	case "length":
		return "max_tokens"
	case "stop", "":
		return "end_turn"
	default:
		return reason
	}
}
