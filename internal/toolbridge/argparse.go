package toolbridge

import (
	"encoding/json"
	"strings"
)

// ParseArguments runs the lenient argument-parsing cascade (§4.3): a tool
// call's arguments arrive as raw text from the wire protocol and must be
// coerced into a map even when the upstream model produced slightly
// malformed JSON. Each stage is tried in order; the first that succeeds
// wins. Returns the parsed map and the name of the stage that succeeded,
// for self-repair diagnostics.
func ParseArguments(raw string) (map[string]any, string) {
	raw = strings.TrimSpace(raw)

	if raw == "" {
		return map[string]any{}, "empty"
	}

	if parsed, ok := tryUnmarshalObject(raw); ok {
		return parsed, "strict"
	}

	// Stage 2: trailing-comma/unquoted-key repair is out of scope for a
	// hand-rolled cascade; instead try balancing truncated JSON by closing
	// unclosed braces/brackets, the single most common truncation failure
	// mode from streamed tool-call argument deltas.
	if balanced := balanceJSON(raw); balanced != raw {
		if parsed, ok := tryUnmarshalObject(balanced); ok {
			return parsed, "balanced"
		}
	}

	// Stage 3: single-quoted JSON-ish text (some models emit Python-style
	// dict literals instead of JSON).
	if requoted := singleToDoubleQuotes(raw); requoted != raw {
		if parsed, ok := tryUnmarshalObject(requoted); ok {
			return parsed, "requoted"
		}
	}

	// Stage 4: not an object at all — wrap the raw text under a single
	// synthetic key rather than failing the whole call.
	return map[string]any{"_raw": raw}, "fallback_raw"
}

func tryUnmarshalObject(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}

	return m, true
}

// balanceJSON appends closing braces/brackets for any left unclosed,
// tracking string state so braces inside string literals are not counted.
func balanceJSON(s string) string {
	var stack []byte

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}

			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(stack) == 0 {
		return s
	}

	var b strings.Builder
	b.WriteString(s)

	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}

	return b.String()
}

// singleToDoubleQuotes is a best-effort rewrite of Python-dict-literal text
// into JSON: replaces every single quote with a double quote and every
// True/False/None with true/false/null, wherever they appear (inside
// double-quoted strings too).
func singleToDoubleQuotes(s string) string {
	s = strings.ReplaceAll(s, "'", "\"")
	s = strings.ReplaceAll(s, "True", "true")
	s = strings.ReplaceAll(s, "False", "false")
	s = strings.ReplaceAll(s, "None", "null")

	return s
}
