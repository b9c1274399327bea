package llm

import (
	"encoding/json"
	"strings"
)

// DecodeJSON unmarshals model output into dst, tolerating the code fences
// chat models wrap JSON payloads in. Output cut off mid-array, from a model
// that ran out of tokens, is recovered by dropping the incomplete trailing
// element and closing the open containers.
func DecodeJSON(content string, dst any) error {
	text := stripCodeFence(content)
	err := json.Unmarshal([]byte(text), dst)
	if err == nil {
		return nil
	}
	recovered, ok := recoverTruncated(text)
	if !ok {
		return err
	}
	if json.Unmarshal([]byte(recovered), dst) != nil {
		return err
	}
	return nil
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag on the opening fence line.
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// recoverTruncated salvages a payload whose trailing element was cut off.
// It keeps everything through the last object that closed cleanly inside the
// outermost array and re-closes the document. The document must be a bare
// array of objects or a single object wrapping one array of objects; ok is
// false when no complete element exists or the document already closed.
func recoverTruncated(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	// Depth at which completed array elements close.
	var base int
	var closer string
	switch text[0] {
	case '[':
		base, closer = 0, "]"
	case '{':
		base, closer = 1, "]}"
	default:
		return "", false
	}

	depth := 0
	last := -1
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		switch ch := text[i]; {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == base {
				last = i
			}
			if depth < base {
				// The document closed on its own; the parse failure was
				// not truncation.
				return "", false
			}
		}
	}
	if last <= 0 {
		return "", false
	}

	kept := strings.TrimRight(text[:last+1], " \t\r\n")
	kept = strings.TrimSuffix(kept, ",")
	if !strings.Contains(kept, "[") {
		return "", false
	}
	return kept + closer, true
}
