// Package gateway implements the HTTP ingress that replaces the teacher's
// direct provider proxy with the dynamic connector (§4.2, §6.1): parse the
// incoming request, resolve a route, assemble and execute its module chain,
// and write the result back. It owns no routing or provider logic itself —
// that all lives in internal/route, internal/connector, and internal/modules.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/routecodex/routecodex/internal/connector"
	"github.com/routecodex/routecodex/internal/corex"
	"github.com/routecodex/routecodex/internal/memory"
	"github.com/routecodex/routecodex/internal/protocol"
	"github.com/routecodex/routecodex/internal/route"
	"github.com/routecodex/routecodex/internal/toolbridge"
)

// Handler is the HTTP entry point for chat-completion-shaped requests,
// mirroring the teacher's ProxyHandler.ServeHTTP control flow (read body,
// resolve a provider, forward, respond) but routed through the dynamic
// connector instead of calling a provider directly.
type Handler struct {
	routes    *route.Table
	connector *connector.Connector
	logger    *slog.Logger
	resources *memory.Manager
}

// Option configures a Handler.
type Option func(*Handler)

// WithResourceTracking registers every in-flight request body with mgr as a
// tracked transient resource (§5 "Memory manager ... tracks registered
// transient resources") for the duration of its chain execution, released
// unconditionally once the response has been written.
func WithResourceTracking(mgr *memory.Manager) Option {
	return func(h *Handler) { h.resources = mgr }
}

// NewHandler constructs a Handler bound to a route table and connector.
func NewHandler(routes *route.Table, conn *connector.Connector, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{routes: routes, connector: conn, logger: logger}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, "failed to read request body: %v", err)
		return
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON request body: %v", err)
		return
	}

	clientProtocol := clientProtocolForPath(r.URL.Path)
	bridge := toolbridge.New(idStyleFor(clientProtocol))

	canonical := decoded

	switch clientProtocol {
	case protocol.OpenAIResponses:
		canonical = bridge.CanonicalizeResponsesRequest(decoded)
	case protocol.AnthropicMessages:
		canonical = bridge.CanonicalizeMessagesRequest(decoded)
	}

	toolbridge.InjectMCPTools(canonical, bridge.MCPServers())

	model, _ := canonical["model"].(string)
	providerHint := r.URL.Query().Get("provider")

	def, err := h.routes.Match(model, providerHint)
	if err != nil {
		httpError(w, http.StatusNotFound, "no route matched model %q: %v", model, err)
		return
	}

	streaming := isStreamingRequested(canonical)
	requestID := corex.NewRequestID()

	facts := map[string]any{
		"model":         model,
		"streaming":     streaming,
		"inputTokens":   h.routes.CountTokens(string(body)),
		"routeId":       def.ID,
		"routeCategory": def.Category,
	}

	payload := &corex.Payload{
		Body:      canonical,
		Raw:       body,
		Streaming: streaming,
		Headers:   make(map[string][]string),
		Meta: map[string]any{
			"requestId":      requestID,
			"clientProtocol": string(clientProtocol),
		},
	}

	h.logger.Info("dispatching request",
		"requestId", requestID,
		"model", model,
		"routeId", def.ID,
		"inputTokens", facts["inputTokens"],
	)

	if h.resources != nil {
		h.resources.Track(requestID, int64(len(body)), 0)
		defer h.resources.Release(requestID)
	}

	out, err := h.connector.Handle(r.Context(), requestID, def, facts, payload)
	if err != nil {
		h.writeError(w, requestID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if encodeErr := json.NewEncoder(w).Encode(renderForClient(clientProtocol, out.Body)); encodeErr != nil {
		h.logger.Error("failed to encode response", "requestId", requestID, "error", encodeErr)
	}
}

// clientProtocolForPath maps the ingress path (§6.1's three endpoints) onto
// the protocol vocabulary the adapters already use, since the shapes those
// endpoints speak on the wire are exactly the shapes the named protocols
// describe for their upstream-bound counterparts.
func clientProtocolForPath(path string) protocol.Name {
	switch path {
	case "/v1/responses":
		return protocol.OpenAIResponses
	case "/v1/messages":
		return protocol.AnthropicMessages
	default:
		return protocol.OpenAIChat
	}
}

func idStyleFor(p protocol.Name) toolbridge.IDStyle {
	if p == protocol.AnthropicMessages {
		return toolbridge.IDStyleAnthropic
	}

	return toolbridge.IDStyleOpenAI
}

// renderForClient converts the canonical neutral response produced by the
// module chain back into the wire shape the originating endpoint expects
// (§4.3's response-side conversions); openai-chat is a no-op since the
// canonical shape already matches it.
func renderForClient(p protocol.Name, neutral map[string]any) map[string]any {
	switch p {
	case protocol.OpenAIResponses:
		return toolbridge.ToResponses(neutral)
	case protocol.AnthropicMessages:
		return toolbridge.ToMessages(neutral)
	default:
		return toolbridge.ToChatCompletion(neutral)
	}
}

func isStreamingRequested(body map[string]any) bool {
	stream, _ := body["stream"].(bool)
	return stream
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	http.Error(w, fmt.Sprintf(format, args...), status)
}

// writeError maps a core error's Kind onto an HTTP status, mirroring the
// error taxonomy's intent (validation/routing/binding are the caller's
// fault, auth is unauthorized, instance failures are transient upstream
// unavailability) rather than collapsing everything to 502 the way the
// teacher's httpError helper does.
func (h *Handler) writeError(w http.ResponseWriter, requestID string, err error) {
	status := http.StatusBadGateway

	var rcErr *corex.RouteCodexError
	if errors.As(err, &rcErr) {
		switch rcErr.Kind {
		case corex.KindValidation, corex.KindRouting, corex.KindBinding:
			status = http.StatusBadRequest
		case corex.KindAuth:
			status = http.StatusUnauthorized
		case corex.KindInstance:
			status = http.StatusServiceUnavailable
		case corex.KindUpstream:
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
	}

	h.logger.Error("request failed", "requestId", requestID, "status", status, "error", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if encodeErr := json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message":   err.Error(),
			"requestId": requestID,
		},
	}); encodeErr != nil {
		h.logger.Error("failed to encode error response", "requestId", requestID, "error", encodeErr)
	}
}
