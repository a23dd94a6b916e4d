package executor

import "github.com/promptarena/promptarena/internal/llm"

// FinishReason classifies how an execution ended.
type FinishReason string

const (
	// FinishStop is a natural final answer.
	FinishStop FinishReason = "stop"
	// FinishLength means the model hit its output token limit.
	FinishLength FinishReason = "length"
	// FinishToolCalls means the step budget ran out while the model
	// was still requesting tools.
	FinishToolCalls FinishReason = "tool-calls"
	// FinishError covers provider, tool, and rendering failures.
	FinishError FinishReason = "error"
	// FinishTimeout means the configured execution timeout fired.
	FinishTimeout FinishReason = "timeout"
)

// ToolCall records one tool invocation within a step.
type ToolCall struct {
	ID     string         `json:"id,omitempty"`
	Name   string         `json:"name"`
	Input  map[string]any `json:"input,omitempty"`
	Output any            `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Step is one round of the agentic loop. Number is 1-based.
type Step struct {
	Number    int        `json:"number"`
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     llm.Usage  `json:"usage"`
}

// Result is the terminal outcome of one execution. Executors never
// panic and never return a Go error; every failure lands here.
type Result struct {
	Output       any          `json:"output,omitempty"`
	RawText      string       `json:"raw_text,omitempty"`
	Steps        []Step       `json:"steps,omitempty"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        llm.Usage    `json:"usage"`
	Err          error        `json:"-"`
}

// ErrorMessage returns the failure text, or "" for clean runs.
func (r *Result) ErrorMessage() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
