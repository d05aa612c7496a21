package toolbridge

import (
	"encoding/json"
	"strings"

	"github.com/routecodex/routecodex/internal/protocol"
)

// Bridge converts tool calls and tool results between the wire shapes
// protocol adapters parse and the canonical envelopes the rest of the
// system works with. It is the only place tool-call IDs get rewritten,
// argument text gets parsed, and shell argv gets inspected.
type Bridge struct {
	idStyle      IDStyle
	diagnostics  []string
	allowedTools []string        // set by WithAllowedTools; empty means unrestricted
	mcpServers   map[string]bool // populated by dot-rewrite during request canonicalization
}

// New constructs a Bridge targeting a specific output ID style, as chosen by
// the caller (see IDStyle).
func New(idStyle IDStyle) *Bridge {
	return &Bridge{idStyle: idStyle, mcpServers: make(map[string]bool)}
}

// WithAllowedTools gives CanonicalizeToolCalls a known tool set; a call
// naming anything outside it is still emitted, with a diagnostic note
// recording it as an "unsupported call" (§4.3). A nil/empty set leaves
// every name accepted.
func (b *Bridge) WithAllowedTools(names []string) *Bridge {
	b.allowedTools = names
	return b
}

// MCPServers returns the MCP server names discovered via dot-rewritten
// tool names (server.fn -> fn) since construction, for MCP tool injection.
func (b *Bridge) MCPServers() []string {
	servers := make([]string, 0, len(b.mcpServers))
	for name := range b.mcpServers {
		servers = append(servers, name)
	}

	return servers
}

func (b *Bridge) isAllowed(name string) bool {
	if len(b.allowedTools) == 0 {
		return true
	}

	for _, allowed := range b.allowedTools {
		if allowed == name {
			return true
		}
	}

	return false
}

// Diagnostics returns every self-repair note accumulated since
// construction (malformed ID prefixes fixed, lenient-parse stage used).
func (b *Bridge) Diagnostics() []string {
	return b.diagnostics
}

func (b *Bridge) note(msg string) {
	b.diagnostics = append(b.diagnostics, msg)
}

// CanonicalizeToolCalls converts a protocol adapter's parsed tool calls
// into canonical envelopes: IDs normalized to the target style, arguments
// parsed via the lenient cascade, shell argv rewritten when it contains a
// meta-operator.
func (b *Bridge) CanonicalizeToolCalls(calls []protocol.ToolCall) []ToolCallEnvelope {
	out := make([]ToolCallEnvelope, 0, len(calls))

	for _, c := range calls {
		name := c.Name
		if short, server, dotted := RewriteDottedToolName(name); dotted {
			b.mcpServers[server] = true
			name = short
		}

		args, stage := ParseArguments(c.Arguments)
		if stage != "strict" {
			b.note("tool " + name + " arguments parsed via " + stage + " stage")
		}

		if argv, ok := extractArgv(args); ok {
			if rewritten, changed := RewriteShellArgv(argv); changed {
				b.note("tool " + name + " argv rewritten for shell meta-operator")
				args["command"] = rewritten
			}
		}

		id := c.ID
		if id != "" {
			var diag []string
			id = NormalizeToolCallID(id, b.idStyle, &diag)
			b.diagnostics = append(b.diagnostics, diag...)
		}

		switch {
		case name == "":
			b.note("tool call missing function name; argument stage=" + stage)
		case !b.isAllowed(name):
			b.note("tool " + name + " is not in the allowed tool set; rejected as unsupported call")
		case name == "view_image":
			if path, _ := args["path"].(string); path != "" && !looksLikeImagePath(path) {
				b.note("view_image called on a non-image path: " + path)
			}
		}

		out = append(out, ToolCallEnvelope{ID: id, Name: name, Arguments: args})
	}

	return out
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".svg"}

func looksLikeImagePath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}

// RewriteDottedToolName splits a dotted tool name (e.g. "server.fn") into
// its MCP server and short function name (§4.3 "tool names containing a
// dot ... are rewritten to the portion after the last dot and the full
// name is recorded for MCP server discovery"). ok is false for a name with
// no dot, in which case name is returned unchanged.
func RewriteDottedToolName(name string) (short, server string, ok bool) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return name, "", false
	}

	return name[idx+1:], name[:idx], true
}

func extractArgv(args map[string]any) ([]string, bool) {
	raw, ok := args["command"]
	if !ok {
		return nil, false
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}

	argv := make([]string, 0, len(list))

	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}

		argv = append(argv, s)
	}

	return argv, true
}

// ChatToolResultMessage builds an OpenAI Chat "tool" role message from a
// canonical result envelope — grounded on the teacher's extractToolResults,
// generalized from "parse Anthropic content blocks inline" to "accept an
// already-canonical envelope".
func (b *Bridge) ChatToolResultMessage(result *ToolResultEnvelope, toolCallID string) map[string]any {
	var diag []string
	id := NormalizeToolCallID(toolCallID, IDStyleOpenAI, &diag)
	b.diagnostics = append(b.diagnostics, diag...)

	return map[string]any{
		"role":         "tool",
		"tool_call_id": id,
		"content":      formatResultContent(result.Result),
	}
}

// formatResultContent prefers the structured Output a tool produced,
// falling back to combined stdout/stderr for a self-repaired or
// shell-executed result that never set Output.
func formatResultContent(r ResultInfo) string {
	if r.Output != nil {
		return formatAny(r.Output)
	}

	if r.Stderr != "" && r.Stdout == "" {
		return r.Stderr
	}

	if r.Stdout != "" && r.Stderr == "" {
		return r.Stdout
	}

	return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
}

// AnthropicToolResultBlock builds an Anthropic tool_result content block
// from a canonical result envelope.
func (b *Bridge) AnthropicToolResultBlock(result *ToolResultEnvelope, toolCallID string) map[string]any {
	var diag []string
	id := NormalizeToolCallID(toolCallID, IDStyleAnthropic, &diag)
	b.diagnostics = append(b.diagnostics, diag...)

	content := result.Result.Output
	if content == nil {
		content = formatResultContent(result.Result)
	}

	return map[string]any{
		"type":        "tool_result",
		"tool_use_id": id,
		"content":     content,
		"is_error":    !result.Result.Success,
	}
}

// ResponsesFunctionCallOutput builds an OpenAI Responses function_call_output
// item from a canonical result envelope.
func (b *Bridge) ResponsesFunctionCallOutput(result *ToolResultEnvelope, callID string) map[string]any {
	return map[string]any{
		"type":    "function_call_output",
		"call_id": callID,
		"output":  formatResultContent(result.Result),
	}
}

// formatAny mirrors the teacher's formatToolResultContent: strings pass
// through, content-block arrays are flattened to their text, everything
// else is JSON-marshaled.
func formatAny(content any) string {
	if str, ok := content.(string); ok {
		return str
	}

	if arr, ok := content.([]any); ok {
		var parts []string

		for _, block := range arr {
			m, ok := block.(map[string]any)
			if !ok {
				continue
			}

			if t, _ := m["type"].(string); t == "text" {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}

		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}

	if raw, err := json.Marshal(content); err == nil {
		return string(raw)
	}

	return ""
}
