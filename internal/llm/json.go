package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON object out of model text. It accepts bare JSON,
// JSON wrapped in a Markdown code fence, and an object embedded in prose.
func ExtractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	s = stripFence(s)
	if isObject(s) {
		return json.RawMessage(s), nil
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start && isObject(s[start:end+1]) {
		return json.RawMessage(s[start : end+1]), nil
	}
	return nil, ErrInvalidJSON
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isObject(s string) bool {
	b := bytes.TrimSpace([]byte(s))
	if len(b) == 0 || b[0] != '{' {
		return false
	}
	return json.Valid(b)
}

// Decode extracts and unmarshals a model answer into T. Any failure is
// reported as ErrInvalidJSON.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	obj, err := ExtractJSON(string(raw))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(obj, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return out, nil
}
