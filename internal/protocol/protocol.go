// Package protocol implements the four wire protocol adapters (§4.5):
// openai-chat, openai-responses, anthropic-messages, gemini-chat. An
// adapter owns exactly three operations — resolve the upstream endpoint,
// build the outgoing body, parse the upstream response — and must never
// branch on a provider's brand or family; brand-specific behavior belongs
// in internal/profile.
package protocol

import "github.com/routecodex/routecodex/internal/corex"

// Name identifies one of the four supported wire protocols.
type Name string

const (
	OpenAIChat        Name = "openai-chat"
	OpenAIResponses   Name = "openai-responses"
	AnthropicMessages Name = "anthropic-messages"
	GeminiChat        Name = "gemini-chat"
)

// ParsedResponse is the protocol-neutral shape every adapter's parse
// operation normalizes an upstream reply into. toolbridge consumes this to
// build canonical Tool Result Envelopes; callers that don't need tool
// bridging can read Text/ToolCalls/Usage directly.
type ParsedResponse struct {
	ID           string
	Model        string
	Role         string
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
	Raw          map[string]any
}

// ToolCall is the protocol-neutral shape an adapter extracts a model's tool
// invocation into, before toolbridge canonicalizes it further.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON text, as the wire protocol delivered it
}

// Usage is the protocol-neutral token accounting shape.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Adapter is implemented once per wire protocol (§4.5). baseURL and model
// are supplied by the caller (resolved from the Provider Binding); an
// adapter must treat them as opaque strings, never switching on their value.
type Adapter interface {
	Name() Name
	ResolveEndpoint(baseURL, model string, streaming bool) string
	BuildBody(req *corex.Payload, model string) (map[string]any, error)
	ParseResponse(raw []byte) (*ParsedResponse, error)
	ParseStreamChunk(raw []byte, state *StreamState) (*StreamEvent, error)
}

// StreamState accumulates cross-chunk state while parsing a streaming
// response — which content blocks are open, what's been emitted so far.
// Grounded on the teacher's providers.StreamState.
type StreamState struct {
	MessageID        string
	Model            string
	MessageStartSent bool
	Blocks           map[int]*blockState
}

type blockState struct {
	Kind        string // "text" or "tool_use"
	StartSent   bool
	StopSent    bool
	ToolCallID  string
	ToolName    string
	ArgsSoFar   string
}

// NewStreamState constructs an empty accumulator.
func NewStreamState() *StreamState {
	return &StreamState{Blocks: make(map[int]*blockState)}
}

// StreamEvent is one normalized increment of a streaming response: either
// a text delta, a tool-call delta, or a terminal event carrying the finish
// reason and usage.
type StreamEvent struct {
	TextDelta    string
	ToolCall     *ToolCall
	ToolDelta    string // incremental JSON text for ToolCall.Arguments
	Done         bool
	FinishReason string
	Usage        Usage
}

// Registry resolves a protocol Name to its Adapter, analogous to the
// Profile Registry (§4.7) but for the fixed set of four wire protocols.
type Registry struct {
	adapters map[Name]Adapter
}

// NewRegistry constructs a Registry preloaded with the four built-in
// adapters.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[Name]Adapter)}
	r.Register(NewOpenAIChatAdapter())
	r.Register(NewOpenAIResponsesAdapter())
	r.Register(NewAnthropicMessagesAdapter())
	r.Register(NewGeminiChatAdapter())

	return r
}

// Register adds or replaces an adapter, keyed by its own Name().
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Resolve looks up an adapter by protocol name.
func (r *Registry) Resolve(name Name) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, corex.New(corex.KindBinding, "protocol_unknown", "no adapter registered for protocol "+string(name))
	}

	return a, nil
}
