package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/routecodex/routecodex/internal/corex"
)

// GeminiChatAdapter speaks the Gemini generateContent wire shape:
// /models/{model}:{generateContent|streamGenerateContent}, {contents,
// systemInstruction, tools}, candidates[].content.parts[]. Grounded on the
// teacher's GeminiProvider.transformAnthropicToGemini/convertGeminiToAnthropic.
type GeminiChatAdapter struct{}

// NewGeminiChatAdapter constructs the gemini-chat adapter.
func NewGeminiChatAdapter() *GeminiChatAdapter { return &GeminiChatAdapter{} }

func (a *GeminiChatAdapter) Name() Name { return GeminiChat }

func (a *GeminiChatAdapter) ResolveEndpoint(baseURL, model string, streaming bool) string {
	action := "generateContent"
	if streaming {
		action = "streamGenerateContent"
	}

	return fmt.Sprintf("%s/%s:%s", baseURL, model, action)
}

func (a *GeminiChatAdapter) BuildBody(req *corex.Payload, _ string) (map[string]any, error) {
	body := req.Body

	contents := make([]any, 0)

	messages, _ := body["messages"].([]any)
	for _, m := range messages {
		msg, ok := m.(map[string]any)
		if !ok {
			continue
		}

		role := "user"
		if r, _ := msg["role"].(string); r == "assistant" {
			role = "model"
		}

		text, _ := msg["content"].(string)

		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []any{map[string]any{"text": text}},
		})
	}

	out := map[string]any{"contents": contents}

	if system, ok := body["system"]; ok {
		out["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": system}},
		}
	}

	if tools, ok := body["tools"]; ok {
		out["tools"] = convertToolsToGemini(tools)
	}

	return out, nil
}

func convertToolsToGemini(tools any) any {
	list, ok := tools.([]any)
	if !ok {
		return nil
	}

	decls := make([]any, 0, len(list))

	for _, t := range list {
		tool, ok := t.(map[string]any)
		if !ok {
			continue
		}

		fn, _ := tool["function"].(map[string]any)
		if fn == nil {
			fn = tool
		}

		decls = append(decls, map[string]any{
			"name":        fn["name"],
			"description": fn["description"],
			"parameters":  fn["parameters"],
		})
	}

	return []any{map[string]any{"functionDeclarations": decls}}
}

func (a *GeminiChatAdapter) ParseResponse(raw []byte) (*ParsedResponse, error) {
	var resp geminiGenerateContentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, corex.New(corex.KindUpstream, "response_unparseable", err.Error())
	}

	out := &ParsedResponse{Model: resp.ModelVersion, ID: resp.ResponseID, Role: "assistant"}

	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}

	if len(resp.Candidates) == 0 {
		return out, nil
	}

	cand := resp.Candidates[0]
	out.FinishReason = strings.ToLower(cand.FinishReason)

	if cand.Content == nil {
		return out, nil
	}

	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			out.Text += part.Text
		}

		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}

	return out, nil
}

func (a *GeminiChatAdapter) ParseStreamChunk(raw []byte, state *StreamState) (*StreamEvent, error) {
	parsed, err := a.ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	event := &StreamEvent{TextDelta: parsed.Text}

	if len(parsed.ToolCalls) > 0 {
		event.ToolCall = &parsed.ToolCalls[0]
		event.ToolDelta = parsed.ToolCalls[0].Arguments
	}

	if parsed.FinishReason != "" {
		event.Done = true
		event.FinishReason = parsed.FinishReason
		event.Usage = parsed.Usage
	}

	return event, nil
}

type geminiGenerateContentResponse struct {
	ModelVersion  string `json:"modelVersion"`
	ResponseID    string `json:"responseId"`
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content"`
	FinishReason string         `json:"finishReason"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}
