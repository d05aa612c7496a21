package protocol

import (
	"encoding/json"

	"github.com/routecodex/routecodex/internal/corex"
)

// OpenAIChatAdapter speaks the OpenAI Chat Completions wire shape:
// /chat/completions, {messages, tools}, choices[].message/delta.
type OpenAIChatAdapter struct{}

// NewOpenAIChatAdapter constructs the openai-chat adapter.
func NewOpenAIChatAdapter() *OpenAIChatAdapter { return &OpenAIChatAdapter{} }

func (a *OpenAIChatAdapter) Name() Name { return OpenAIChat }

func (a *OpenAIChatAdapter) ResolveEndpoint(baseURL, _ string, _ bool) string {
	return baseURL + "/chat/completions"
}

func (a *OpenAIChatAdapter) BuildBody(req *corex.Payload, model string) (map[string]any, error) {
	body := cloneBody(req.Body)
	body["model"] = model

	return body, nil
}

func (a *OpenAIChatAdapter) ParseResponse(raw []byte) (*ParsedResponse, error) {
	var resp openAIChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, corex.New(corex.KindUpstream, "response_unparseable", err.Error())
	}

	out := &ParsedResponse{ID: resp.ID, Model: resp.Model}

	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err == nil {
		out.Raw = asMap
	}

	if resp.Usage != nil {
		out.Usage = Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	}

	if len(resp.Choices) == 0 {
		return out, nil
	}

	choice := resp.Choices[0]
	out.Role = choice.Message.Role
	out.Text = choice.Message.Content
	out.FinishReason = choice.FinishReason

	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return out, nil
}

func (a *OpenAIChatAdapter) ParseStreamChunk(raw []byte, state *StreamState) (*StreamEvent, error) {
	var chunk openAIChatStreamChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil, corex.New(corex.KindUpstream, "response_unparseable", err.Error())
	}

	if state.MessageID == "" {
		state.MessageID = chunk.ID
	}

	if state.Model == "" {
		state.Model = chunk.Model
	}

	if len(chunk.Choices) == 0 {
		return &StreamEvent{}, nil
	}

	choice := chunk.Choices[0]

	event := &StreamEvent{}

	if len(choice.Delta.ToolCalls) > 0 {
		tc := choice.Delta.ToolCalls[0]
		if tc.Function.Name != "" {
			event.ToolCall = &ToolCall{ID: tc.ID, Name: tc.Function.Name}
		}

		event.ToolDelta = tc.Function.Arguments
	} else if choice.Delta.Content != "" {
		event.TextDelta = choice.Delta.Content
	}

	if choice.FinishReason != "" {
		event.Done = true
		event.FinishReason = choice.FinishReason

		if chunk.Usage != nil {
			event.Usage = Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
		}
	}

	return event, nil
}

func cloneBody(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}

	return out
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role      string              `json:"role"`
			Content   string              `json:"content"`
			ToolCalls []openAIChatToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIChatUsage `json:"usage"`
}

type openAIChatToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openAIChatStreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content   string               `json:"content"`
			ToolCalls []openAIChatToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIChatUsage `json:"usage"`
}
