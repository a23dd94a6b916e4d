package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ParseJSON extracts the first JSON object or array from raw model
// output into out, tolerating markdown code fences around it.
func ParseJSON(raw string, out any) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return errors.New("empty output")
	}

	if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
		if strings.HasPrefix(s, "json") {
			s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = strings.TrimSpace(s[:idx])
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return errors.New("missing JSON value")
	}
	end := strings.LastIndex(s, "}")
	if s[start] == '[' {
		end = strings.LastIndex(s, "]")
	}
	if end < 0 || start >= end {
		return errors.New("missing JSON value")
	}

	s = s[start : end+1]
	return json.Unmarshal([]byte(s), out)
}
