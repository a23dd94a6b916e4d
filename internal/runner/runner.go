// Package runner orchestrates a prompt test suite: every case runs
// against every configured executor, results aggregate overall and per
// executor, and progress streams to listeners while telemetry flows to
// an analytics sink off the critical path.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptarena/promptarena/internal/executor"
	"github.com/promptarena/promptarena/internal/matcher"
	"github.com/promptarena/promptarena/internal/promptdef"
)

// DefaultCaseTimeout bounds one (case, executor) attempt end to end.
const DefaultCaseTimeout = 30 * time.Second

var nopLog = zap.NewNop().Sugar()

// Suite owns a prompt, its test cases, and the executor configs they
// run against. Runs are independent; a Suite is safe to Run repeatedly.
type Suite struct {
	prompt    *promptdef.Prompt
	cases     []TestCase
	factory   *executor.Factory
	configs   []executor.Config
	sink      Sink
	listeners []Listener
	log       *zap.SugaredLogger
}

// Option configures a Suite.
type Option func(*Suite)

// WithExecutors adds default executor configs for every run.
func WithExecutors(configs ...executor.Config) Option {
	return func(s *Suite) {
		s.configs = append(s.configs, configs...)
	}
}

// WithSink routes telemetry to sink. Defaults to NopSink.
func WithSink(sink Sink) Option {
	return func(s *Suite) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithListener registers a progress listener.
func WithListener(fn Listener) Option {
	return func(s *Suite) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

// WithLogger sets the diagnostic logger. Defaults to a nop logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Suite) {
		if log != nil {
			s.log = log
		}
	}
}

// New builds a Suite over prompt and cases. The factory binds executor
// configs to providers when Run resolves them.
func New(prompt *promptdef.Prompt, cases []TestCase, factory *executor.Factory, opts ...Option) *Suite {
	s := &Suite{
		prompt:  prompt,
		cases:   append([]TestCase(nil), cases...),
		factory: factory,
		sink:    NopSink{},
		log:     nopLog,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// TestCases returns a copy of the declared cases.
func (s *Suite) TestCases() []TestCase {
	if s == nil {
		return nil
	}
	out := make([]TestCase, len(s.cases))
	copy(out, s.cases)
	return out
}

// PromptDefinition returns the prompt under test.
func (s *Suite) PromptDefinition() *promptdef.Prompt {
	if s == nil {
		return nil
	}
	return s.prompt
}

// RunOptions tune one Run call.
type RunOptions struct {
	// Bail stops the suite after the first row with any failure. The
	// failing row itself still completes across all executors.
	Bail bool
	// Executors overrides the suite's configured list for this run.
	Executors []executor.Config
}

type boundExecutor struct {
	cfg   executor.Config
	label string
	run   executor.Executor
}

// Run executes every case against every configured executor. Rows run
// sequentially in declaration order; within a row all executors run
// concurrently and the row completes before the next starts. The only
// error Run returns is an upfront configuration error; every execution
// failure is data on the results.
func (s *Suite) Run(ctx context.Context, opts *RunOptions) (*TestResults, error) {
	if s == nil {
		return nil, errors.New("runner: nil suite")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &RunOptions{}
	}

	configs := opts.Executors
	if len(configs) == 0 {
		configs = s.configs
	}
	if len(configs) == 0 {
		return nil, errors.New("runner: no executor configured")
	}

	bound := make([]boundExecutor, 0, len(configs))
	for _, cfg := range configs {
		exec, err := s.factory.New(cfg)
		if err != nil {
			return nil, err
		}
		bound = append(bound, boundExecutor{cfg: cfg, label: cfg.Label(), run: exec})
	}

	// Buckets key on display label; configs that share a label share a
	// bucket.
	buckets := make(map[string]*ExecutorResults, len(bound))
	for _, b := range bound {
		if buckets[b.label] == nil {
			buckets[b.label] = &ExecutorResults{}
		}
	}

	results := &TestResults{}
	if s.prompt != nil {
		results.PromptName = s.prompt.Name
	}
	start := time.Now()

	type settled struct {
		label string
		res   *EvalResult
	}

	for i, tc := range s.cases {
		if ctx.Err() != nil {
			s.logger().Debugw("suite run canceled", "completed_rows", i)
			break
		}

		s.emit(Event{Type: EventTestStart, Start: &StartInfo{
			Current: i + 1,
			Total:   len(s.cases),
			Name:    tc.DisplayName(),
			Input:   tc.Input,
		}})

		ch := make(chan settled, len(bound))
		for _, b := range bound {
			go func(b boundExecutor) {
				ch <- settled{label: b.label, res: s.RunSingle(ctx, tc, b.run, b.cfg)}
			}(b)
		}

		rowFailed := false
		for range bound {
			st := <-ch
			res := st.res
			results.Results = append(results.Results, res)
			bucket := buckets[st.label]
			if res.Passed {
				results.Passed++
				bucket.Passed++
			} else {
				results.Failed++
				bucket.Failed++
				rowFailed = true
			}
			bucket.Results = append(bucket.Results, res)

			s.emit(Event{Type: EventTestComplete, Result: res})
			s.track(func() { s.sink.TrackTestCase(res) })
		}

		if opts.Bail && rowFailed {
			break
		}
	}

	results.Total = len(results.Results)
	results.DurationMs = time.Since(start).Milliseconds()
	if len(configs) > 1 {
		results.ExecutorResults = buckets
	}

	s.track(func() { s.sink.TrackTestRun(results) })
	return results, nil
}

// RunSingle executes one case against one executor with a test-level
// timeout guard and shapes the EvalResult. Exposed for direct
// single-case evaluation; Run uses it for every (case, executor)
// pairing.
func (s *Suite) RunSingle(ctx context.Context, tc TestCase, exec executor.Executor, cfg executor.Config) *EvalResult {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := tc.Timeout
	if timeout <= 0 {
		timeout = DefaultCaseTimeout
	}

	res := &EvalResult{
		Name:        tc.Name,
		Input:       tc.Input,
		ExecutionID: uuid.NewString(),
		Executor:    &ExecutorInfo{Model: cfg.Label(), Config: cfg},
	}
	if tc.HasExpect {
		res.Expected = tc.Expect
		res.HasExpected = true
	}

	if exec == nil {
		res.Error = "runner: nil executor"
		res.FinishReason = executor.FinishError
		return res
	}

	start := time.Now()
	done := make(chan *executor.Result, 1)
	go func() {
		// The executor contract says it never panics; catch anyway so
		// one bad case cannot abort the suite.
		defer func() {
			if r := recover(); r != nil {
				done <- &executor.Result{
					FinishReason: executor.FinishError,
					Err:          fmt.Errorf("executor panic: %v", r),
				}
			}
		}()
		done <- exec(ctx, s.PromptDefinition(), tc.Input)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case er := <-done:
		res.DurationMs = time.Since(start).Milliseconds()
		shapeResult(res, er, tc)
	case <-timer.C:
		res.DurationMs = time.Since(start).Milliseconds()
		res.Error = "Test timeout"
		res.FinishReason = executor.FinishTimeout
	}
	return res
}

// shapeResult folds an execution outcome into the EvalResult. Error
// and timeout finishes fail without consulting the matcher; anything
// else passes unless an expectation exists and does not match.
func shapeResult(res *EvalResult, er *executor.Result, tc TestCase) {
	if er == nil {
		res.Error = "runner: executor returned no result"
		res.FinishReason = executor.FinishError
		return
	}

	res.Output = er.Output
	res.Steps = er.Steps
	res.Usage = er.Usage
	res.FinishReason = er.FinishReason

	switch er.FinishReason {
	case executor.FinishError, executor.FinishTimeout:
		res.Error = er.ErrorMessage()
	default:
		if tc.HasExpect {
			res.Passed = matcher.Match(er.Output, tc.Expect)
		} else {
			res.Passed = true
		}
	}
}

func (s *Suite) emit(ev Event) {
	for _, fn := range s.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger().Debugw("progress listener panicked", "panic", r)
				}
			}()
			fn(ev)
		}()
	}
}

// track runs a sink call behind a recover so telemetry can never abort
// the suite.
func (s *Suite) track(fn func()) {
	if s.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger().Debugw("analytics sink panicked", "panic", r)
		}
	}()
	fn()
}

func (s *Suite) logger() *zap.SugaredLogger {
	if s != nil && s.log != nil {
		return s.log
	}
	return nopLog
}
