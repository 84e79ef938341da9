package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON recovers a JSON object or array from raw model output, which
// may be pure JSON, JSON inside markdown code fences, or JSON embedded in
// surrounding prose. Stages run in order, stopping at the first success.
func ExtractJSON(raw string) (json.RawMessage, error) {
	clean := stripFences(strings.TrimSpace(raw))

	if msg, ok := validJSON(clean); ok {
		return msg, nil
	}

	if candidate, ok := balancedSlice(clean); ok {
		if msg, ok := validJSON(candidate); ok {
			return msg, nil
		}
	}

	return nil, fmt.Errorf("no parseable JSON in model output")
}

// DecodeInto extracts JSON from raw and unmarshals it into v.
func DecodeInto(raw string, v any) error {
	msg, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(msg, v); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}

// stripFences removes a ``` or ```json wrapper if the model ignored the
// no-markdown instruction.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line (``` or ```json).
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	} else {
		return s
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func validJSON(s string) (json.RawMessage, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return json.RawMessage(s), true
	}
	return nil, false
}

// balancedSlice scans for the first opening brace or bracket and returns the
// substring up to its balanced partner. The scanner tracks string-literal and
// escape state so braces inside quoted values do not break the balance.
func balancedSlice(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return "", false
	}

	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
