// Package executor runs one input against a prompt definition through
// the agentic tool-calling loop: render, call the model, execute any
// requested tools, feed results back, repeat until a final answer or
// the step budget runs out.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/promptarena/promptarena/internal/llm"
	"github.com/promptarena/promptarena/internal/promptdef"
)

// Defaults applied when a Config leaves the field zero.
const (
	DefaultMaxSteps = 5
	DefaultTimeout  = 30 * time.Second
)

// Config describes one way to run a prompt. One Config maps to exactly
// one Executor, constructed once and reused across all cases.
type Config struct {
	Model           llm.ModelRef  `json:"model"`
	MaxSteps        int           `json:"max_steps,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
	Temperature     *float64      `json:"temperature,omitempty"`
	MaxOutputTokens int           `json:"max_output_tokens,omitempty"`
}

// Label names this config in reports and result buckets.
func (c Config) Label() string {
	return c.Model.Label()
}

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Executor runs one input against a prompt definition. It never panics
// and never returns a Go error; failures are recorded on the Result.
type Executor func(ctx context.Context, prompt *promptdef.Prompt, input string) *Result

// Factory builds Executors bound to configured providers.
type Factory struct {
	registry *llm.Registry
}

// NewFactory returns a factory resolving models against registry.
func NewFactory(registry *llm.Registry) *Factory {
	return &Factory{registry: registry}
}

// New resolves cfg against the provider registry and returns a bound
// Executor. Resolution failures are synchronous; after this point all
// failure is data on the Result.
func (f *Factory) New(cfg Config) (Executor, error) {
	if f == nil || f.registry == nil {
		return nil, errors.New("executor: nil factory")
	}
	cfg = cfg.withDefaults()
	provider, err := f.registry.ForModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	return newExecutor(provider, cfg), nil
}

func newExecutor(provider llm.Provider, cfg Config) Executor {
	return func(ctx context.Context, prompt *promptdef.Prompt, input string) (res *Result) {
		defer func() {
			if r := recover(); r != nil {
				res = &Result{
					FinishReason: FinishError,
					Err:          fmt.Errorf("executor panic: %v", r),
				}
			}
		}()

		if ctx == nil {
			ctx = context.Background()
		}

		steps := &stepCollector{}
		done := make(chan *Result, 1)

		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- failed(steps, fmt.Errorf("executor panic: %v", r))
				}
			}()
			done <- runLoop(ctx, provider, cfg, prompt, input, steps)
		}()

		timer := time.NewTimer(cfg.Timeout)
		defer timer.Stop()

		// On timeout the in-flight round is abandoned, not cancelled;
		// its eventual result is discarded.
		select {
		case r := <-done:
			return r
		case <-timer.C:
			return &Result{
				Steps:        steps.snapshot(),
				Usage:        steps.totals(),
				FinishReason: FinishTimeout,
				Err:          errors.New("Execution timeout"),
			}
		}
	}
}

func runLoop(ctx context.Context, provider llm.Provider, cfg Config, prompt *promptdef.Prompt, input string, steps *stepCollector) *Result {
	if prompt == nil {
		return failed(steps, errors.New("executor: nil prompt"))
	}

	system, err := promptdef.RenderSystem(prompt, nil)
	if err != nil {
		return failed(steps, err)
	}

	req := &llm.Request{
		Model:       cfg.Model.ID,
		System:      system,
		Tools:       toolSpecs(prompt.Tools),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxOutputTokens,
	}
	if prompt.Output != nil {
		req.OutputSchema = prompt.Output.Schema
	}

	messages := []llm.Message{llm.UserText(input)}

	var lastText string
	var lastToolResult any
	var haveToolResult bool

	for step := 0; step < cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return failed(steps, err)
		}

		req.Messages = messages
		resp, err := provider.Complete(ctx, req)
		if err != nil {
			return failed(steps, err)
		}

		rec := Step{Text: resp.Text(), Usage: resp.Usage}
		if rec.Text != "" {
			lastText = rec.Text
		}

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			steps.add(rec)
			if resp.StopReason == llm.StopToolUse {
				return failed(steps, fmt.Errorf("provider %s reported tool use without tool calls", provider.Name()))
			}
			reason := FinishStop
			if resp.StopReason == llm.StopMaxTokens {
				reason = FinishLength
			}
			return finish(prompt, steps, reason, lastText, lastToolResult, haveToolResult)
		}

		assistant := llm.Message{Role: llm.RoleAssistant, Parts: resp.Parts}
		feedback := llm.Message{Role: llm.RoleTool}
		for _, call := range calls {
			out, callErr := invokeTool(ctx, prompt, call)
			tc := ToolCall{ID: call.CallID, Name: call.ToolName, Input: call.Input}
			if callErr != nil {
				tc.Error = callErr.Error()
				feedback.Parts = append(feedback.Parts, llm.ToolResultPart(call.CallID, callErr.Error(), true))
			} else {
				tc.Output = out
				lastToolResult = out
				haveToolResult = true
				feedback.Parts = append(feedback.Parts, llm.ToolResultPart(call.CallID, encodeToolOutput(out), false))
			}
			rec.ToolCalls = append(rec.ToolCalls, tc)
		}
		steps.add(rec)
		messages = append(messages, assistant, feedback)
	}

	// Step budget exhausted with the model still requesting tools.
	return finish(prompt, steps, FinishToolCalls, lastText, lastToolResult, haveToolResult)
}

// finish derives the output. Final text wins; with a declared output
// schema the text is parsed and validated, falling back to the raw
// text when it does not fit. Runs that never produced text fall back
// to the last successful tool result.
func finish(prompt *promptdef.Prompt, steps *stepCollector, reason FinishReason, lastText string, lastToolResult any, haveToolResult bool) *Result {
	res := &Result{
		Steps:        steps.snapshot(),
		Usage:        steps.totals(),
		FinishReason: reason,
		RawText:      lastText,
	}

	if lastText == "" {
		if haveToolResult {
			res.Output = lastToolResult
		}
		return res
	}

	res.Output = lastText
	if prompt.Output != nil {
		var parsed any
		if err := llm.ParseJSON(lastText, &parsed); err != nil {
			return res
		}
		if err := prompt.Output.Validate(parsed); err != nil {
			return res
		}
		res.Output = parsed
	}
	return res
}

func failed(steps *stepCollector, err error) *Result {
	return &Result{
		Steps:        steps.snapshot(),
		Usage:        steps.totals(),
		FinishReason: FinishError,
		Err:          err,
	}
}

func invokeTool(ctx context.Context, prompt *promptdef.Prompt, call llm.Part) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("tool %q panicked: %v", call.ToolName, r)
		}
	}()

	tool, ok := prompt.Tool(call.ToolName)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", call.ToolName)
	}
	if tool.Execute == nil {
		return nil, fmt.Errorf("tool %q has no implementation", call.ToolName)
	}
	return tool.Execute(ctx, call.Input)
}

func toolSpecs(tools []promptdef.Tool) []llm.ToolSpec {
	if len(tools) == 0 {
		return nil
	}
	out := make([]llm.ToolSpec, 0, len(tools))
	for _, t := range tools {
		out = append(out, llm.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

func encodeToolOutput(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// stepCollector accumulates steps where the timeout path may abandon
// the loop goroutine mid-run; both sides go through the mutex.
type stepCollector struct {
	mu    sync.Mutex
	steps []Step
	usage llm.Usage
}

func (s *stepCollector) add(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step.Number = len(s.steps) + 1
	s.steps = append(s.steps, step)
	s.usage = s.usage.Add(step.Usage)
}

func (s *stepCollector) snapshot() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

func (s *stepCollector) totals() llm.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}
