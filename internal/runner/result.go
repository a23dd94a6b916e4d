package runner

import (
	"strings"
	"time"

	"github.com/promptarena/promptarena/internal/executor"
	"github.com/promptarena/promptarena/internal/llm"
)

// TestCase is one declarative test: an input, an optional expected
// value, and an optional name and timeout. HasExpect distinguishes an
// absent expectation from an explicit null one.
type TestCase struct {
	Name      string
	Input     string
	Expect    any
	HasExpect bool
	Timeout   time.Duration
}

// DisplayName is the case name, falling back to a trimmed input
// preview for unnamed cases.
func (tc TestCase) DisplayName() string {
	if tc.Name != "" {
		return tc.Name
	}
	input := strings.TrimSpace(tc.Input)
	if len(input) > 40 {
		return input[:37] + "..."
	}
	return input
}

// ExecutorInfo identifies which executor produced a result.
type ExecutorInfo struct {
	Model  string          `json:"model"`
	Config executor.Config `json:"config"`
}

// EvalResult is the outcome of one (TestCase, Executor) pairing.
type EvalResult struct {
	Name         string                `json:"name,omitempty"`
	Input        string                `json:"input"`
	Output       any                   `json:"output,omitempty"`
	DurationMs   int64                 `json:"duration_ms"`
	Passed       bool                  `json:"passed"`
	ExecutionID  string                `json:"execution_id"`
	Error        string                `json:"error,omitempty"`
	Expected     any                   `json:"expected,omitempty"`
	HasExpected  bool                  `json:"has_expected,omitempty"`
	FinishReason executor.FinishReason `json:"finish_reason,omitempty"`
	Steps        []executor.Step       `json:"steps,omitempty"`
	Executor     *ExecutorInfo         `json:"executor,omitempty"`
	Usage        llm.Usage             `json:"usage"`
}

// ExecutorResults is the per-executor accumulator bucket.
type ExecutorResults struct {
	Passed  int           `json:"passed"`
	Failed  int           `json:"failed"`
	Results []*EvalResult `json:"results"`
}

// TestResults is the aggregate of one suite run. ExecutorResults is
// populated only when more than one executor config was supplied; its
// buckets partition Results.
type TestResults struct {
	PromptName      string                      `json:"prompt_name,omitempty"`
	Total           int                         `json:"total"`
	Passed          int                         `json:"passed"`
	Failed          int                         `json:"failed"`
	DurationMs      int64                       `json:"duration_ms"`
	Results         []*EvalResult               `json:"results"`
	ExecutorResults map[string]*ExecutorResults `json:"executor_results,omitempty"`
}
