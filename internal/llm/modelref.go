package llm

import "strings"

// ModelRef identifies a provider and model, parsed from strings like
// "anthropic/claude-sonnet-4-5-20250929" or "openai/gpt-4o". A bare
// model id leaves Provider empty and resolves against the registry's
// default provider.
type ModelRef struct {
	Provider string `json:"provider,omitempty"`
	ID       string `json:"id"`
}

func ParseModelRef(s string) ModelRef {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "/"); i >= 0 {
		return ModelRef{
			Provider: strings.ToLower(strings.TrimSpace(s[:i])),
			ID:       strings.TrimSpace(s[i+1:]),
		}
	}
	return ModelRef{ID: s}
}

// Label is the display name used for report columns and per-executor
// result buckets. It never fails: a ref with no model id labels as
// "unknown".
func (m ModelRef) Label() string {
	if strings.TrimSpace(m.ID) == "" {
		return "unknown"
	}
	return m.ID
}

func (m ModelRef) String() string {
	if m.Provider == "" {
		return m.ID
	}
	return m.Provider + "/" + m.ID
}

func (m ModelRef) IsZero() bool {
	return m.Provider == "" && strings.TrimSpace(m.ID) == ""
}
