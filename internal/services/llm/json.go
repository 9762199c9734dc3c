package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a response contains no decodable JSON value
var ErrNoJSON = errors.New("no JSON found in response")

// ExtractJSON decodes a model response leniently: the whole text, then the
// first {...} block, then the first [...] block. When the array opens before
// any object it is tried first, so a list wrapped in prose is not reduced to
// its first element. Markdown code fences are ignored.
func ExtractJSON(text string) (interface{}, error) {
	text = stripCodeFence(strings.TrimSpace(text))
	if text == "" {
		return nil, ErrNoJSON
	}

	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, nil
	}

	order := [][2]byte{{'{', '}'}, {'[', ']'}}
	if a, o := strings.IndexByte(text, '['), strings.IndexByte(text, '{'); a >= 0 && (o < 0 || a < o) {
		order[0], order[1] = order[1], order[0]
	}
	for _, delims := range order {
		if block, ok := firstBlock(text, delims[0], delims[1]); ok {
			if err := json.Unmarshal([]byte(block), &v); err == nil {
				return v, nil
			}
		}
	}
	return nil, ErrNoJSON
}

// firstBlock returns the balanced block starting at the first open delimiter,
// ignoring delimiters inside JSON strings
func firstBlock(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
