package ai

import (
	"encoding/json"
	"strings"

	"whiteboard/internal/action"
)

// Reply is the structured result of one orchestrated request.
type Reply struct {
	RequestID string          `json:"requestId,omitempty"`
	Message   string          `json:"message"`
	Actions   []action.Action `json:"-"`
	Drops     []action.Drop   `json:"drops,omitempty"`
	// Recovered is false when the reply held no usable JSON and Message is
	// the raw text.
	Recovered bool `json:"recovered"`
}

type wireReply struct {
	Message *string         `json:"message"`
	Actions json.RawMessage `json:"actions"`
}

// ParseReply extracts {message, actions} from raw model output. It tries the
// whole text, then the first balanced {...} substring, then falls back to the
// raw text as the message with no actions. It never fails.
func ParseReply(raw string) Reply {
	text := strings.TrimSpace(raw)
	if r, ok := parseObject(text); ok {
		return r
	}
	if obj, ok := FirstObject(text); ok {
		if r, ok := parseObject(obj); ok {
			return r
		}
	}
	return Reply{Message: text}
}

func parseObject(s string) (Reply, bool) {
	var w wireReply
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return Reply{}, false
	}
	if w.Message == nil && w.Actions == nil {
		return Reply{}, false
	}

	r := Reply{Recovered: true}
	if w.Message != nil {
		r.Message = *w.Message
	}
	if len(w.Actions) > 0 {
		var entries []json.RawMessage
		if err := json.Unmarshal(w.Actions, &entries); err == nil {
			r.Actions, r.Drops = action.DecodeEach(entries)
		} else {
			r.Drops = []action.Drop{{Index: -1, Item: -1, Reason: action.ReasonMalformed, Detail: "actions is not an array"}}
		}
	}
	return r, true
}

// FirstObject returns the first balanced {...} substring of s. Braces inside
// JSON strings are ignored.
func FirstObject(s string) (string, bool) {
	return firstBalanced(s, '{', '}')
}

// FirstArray returns the first balanced [...] substring of s.
func FirstArray(s string) (string, bool) {
	return firstBalanced(s, '[', ']')
}

func firstBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
