package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON value out of free-form model output.
// It tolerates markdown code fences and leading/trailing prose around the
// value: the substring from the first opening bracket to the last matching
// closing bracket of the same kind is tried first, then the whole trimmed
// text. The second return value is false when no valid JSON can be found;
// extraction never produces an error.
func ExtractJSON(raw string) (json.RawMessage, bool) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return nil, false
	}

	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false
	}

	objStart := strings.IndexByte(content, '{')
	arrStart := strings.IndexByte(content, '[')

	start, end := -1, -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start, end = objStart, strings.LastIndexByte(content, '}')
	case arrStart >= 0:
		start, end = arrStart, strings.LastIndexByte(content, ']')
	}

	if start >= 0 && end > start {
		candidate := content[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), true
		}
	}

	if json.Valid([]byte(content)) {
		return json.RawMessage(content), true
	}
	return nil, false
}
