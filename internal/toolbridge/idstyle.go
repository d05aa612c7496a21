package toolbridge

import "strings"

// IDStyle names which brand's tool-call ID convention output is normalized
// to. The caller picks it: the gateway uses the style of the client-facing
// protocol, and the llmswitch module the style it was constructed with. No
// per-binding toolCallIdStyle option is read, and fc_-style ids are never
// produced.
type IDStyle string

const (
	IDStyleAnthropic IDStyle = "toolu" // toolu_*
	IDStyleOpenAI    IDStyle = "call"  // call_*
)

// NormalizeToolCallID converts a tool-call ID between the toolu_*/call_*
// conventions, repairing the malformed double-prefix case the teacher's
// extractToolResults self-repairs inline (toolu_toolu_xxx -> call_xxx).
// diagnostics, if non-nil, receives a note whenever a repair was applied so
// callers can surface it without every call site duplicating the logic.
func NormalizeToolCallID(id string, target IDStyle, diagnostics *[]string) string {
	core := id
	repaired := false

	for strings.HasPrefix(core, "toolu_toolu_") || strings.HasPrefix(core, "call_call_") {
		switch {
		case strings.HasPrefix(core, "toolu_toolu_"):
			core = strings.TrimPrefix(core, "toolu_")
		case strings.HasPrefix(core, "call_call_"):
			core = strings.TrimPrefix(core, "call_")
		}

		repaired = true
	}

	core = strings.TrimPrefix(core, "toolu_")
	core = strings.TrimPrefix(core, "call_")

	if repaired && diagnostics != nil {
		*diagnostics = append(*diagnostics, "repaired malformed double tool-call id prefix: "+id)
	}

	switch target {
	case IDStyleAnthropic:
		return "toolu_" + core
	case IDStyleOpenAI:
		return "call_" + core
	default:
		return core
	}
}
