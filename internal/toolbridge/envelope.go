// Package toolbridge implements the tool canonicalizer (§4.3): the only
// component in the system allowed to touch tool-call structure. Every
// other package treats tool calls/results as opaque data once they leave
// here.
package toolbridge

import "time"

// ToolCallEnvelope is the canonical shape a tool invocation is normalized
// into regardless of which wire protocol produced it.
type ToolCallEnvelope struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResultEnvelopeVersion is the version tag every canonical tool result
// carries, so downstream consumers can detect a schema change.
const ToolResultEnvelopeVersion = "rcc.tool.v1"

// ToolRef names the tool and call a result belongs to (§3 "tool:{name,
// call_id}").
type ToolRef struct {
	Name   string `json:"name"`
	CallID string `json:"call_id"`
}

// ExecutedInfo records what was actually run to produce a result, when the
// tool call was turned into a shell invocation (§3 "executed:{command,
// workdir?}"). Command is nil for results that never went through one.
type ExecutedInfo struct {
	Command []string `json:"command,omitempty"`
	Workdir string   `json:"workdir,omitempty"`
}

// ResultInfo is the canonical outcome shape (§3 "result:{success,
// exit_code?, duration_seconds?, stdout?, stderr?, output}").
type ResultInfo struct {
	Success         bool     `json:"success"`
	ExitCode        *int     `json:"exit_code,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Stdout          string   `json:"stdout,omitempty"`
	Stderr          string   `json:"stderr,omitempty"`
	Output          any      `json:"output,omitempty"`
}

// MetaInfo carries bookkeeping alongside a result (§3 "meta:{call_id,
// ts}").
type MetaInfo struct {
	CallID string `json:"call_id"`
	TS     int64  `json:"ts"`
}

// ToolResultEnvelope is the canonical shape a tool's execution outcome is
// normalized into (§3 "Tool Result Envelope (canonical)").
type ToolResultEnvelope struct {
	Version   string         `json:"version"`
	Tool      ToolRef        `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Executed  ExecutedInfo   `json:"executed"`
	Result    ResultInfo     `json:"result"`
	Meta      MetaInfo       `json:"meta"`
}

// NewToolResultEnvelope constructs a populated, successful envelope at the
// current schema version. Self-repair (SelfRepair) overwrites Result in
// place once a failure is detected.
func NewToolResultEnvelope(toolName, callID string, arguments map[string]any, output any) *ToolResultEnvelope {
	return &ToolResultEnvelope{
		Version:   ToolResultEnvelopeVersion,
		Tool:      ToolRef{Name: toolName, CallID: callID},
		Arguments: arguments,
		Result:    ResultInfo{Success: true, Output: output},
		Meta:      MetaInfo{CallID: callID, TS: time.Now().Unix()},
	}
}

// WithExecuted attaches the command/workdir a tool call was turned into.
func (e *ToolResultEnvelope) WithExecuted(command []string, workdir string) *ToolResultEnvelope {
	e.Executed = ExecutedInfo{Command: command, Workdir: workdir}
	return e
}

// SelfRepair forces the envelope into the shape §4.3 mandates for a
// detected failure (unsupported call, missing function name, argument
// parse failure, view_image on a non-image path): stderr becomes a
// structured diagnostic hint listing the allowed tools and a correct-shape
// example, success is forced false, and the original upstream body is
// preserved under Output rather than discarded.
func (e *ToolResultEnvelope) SelfRepair(reason string, allowedTools []string) *ToolResultEnvelope {
	e.Result.Success = false
	e.Result.Stderr = repairHint(reason, e.Tool.Name, allowedTools)

	return e
}

func repairHint(reason, toolName string, allowedTools []string) string {
	hint := "tool call rejected: " + reason
	if len(allowedTools) > 0 {
		hint += "; allowed tools: " + joinCommas(allowedTools)
	}

	hint += `; expected shape: {"id":"call_1","name":"` + firstOrPlaceholder(allowedTools, toolName) +
		`","arguments":{"...":"..."}}`

	return hint
}

func joinCommas(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}

	return out
}

func firstOrPlaceholder(allowedTools []string, fallback string) string {
	if len(allowedTools) > 0 {
		return allowedTools[0]
	}

	if fallback != "" {
		return fallback
	}

	return "tool_name"
}
