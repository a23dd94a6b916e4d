package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptarena/promptarena/internal/analytics"
	"github.com/promptarena/promptarena/internal/config"
	"github.com/promptarena/promptarena/internal/discovery"
	"github.com/promptarena/promptarena/internal/executor"
	"github.com/promptarena/promptarena/internal/llm"
	"github.com/promptarena/promptarena/internal/promptdef"
	"github.com/promptarena/promptarena/internal/report"
	"github.com/promptarena/promptarena/internal/runner"
	"github.com/promptarena/promptarena/internal/store"
	"github.com/promptarena/promptarena/internal/watch"
)

var errTestsFailed = errors.New("promptarena: tests failed")

const analyticsDrainTimeout = 3 * time.Second

type testOptions struct {
	watch     bool
	bail      bool
	executors []string
	output    string
	export    string
	noSave    bool
	quiet     bool
}

func newTestCmd(st *cliState) *cobra.Command {
	var opts testOptions

	cmd := &cobra.Command{
		Use:   "test [pattern]",
		Short: "Run prompt test suites",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := discovery.DefaultPattern
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				pattern = args[0]
			}
			return runTests(cmd, st, &opts, pattern)
		},
	}

	cmd.Flags().BoolVar(&opts.watch, "watch", false, "re-run suites when their files change")
	cmd.Flags().BoolVar(&opts.bail, "bail", false, "stop after the first failing case")
	cmd.Flags().StringArrayVar(&opts.executors, "executor", nil, "executor override: model[,key=value...] (repeatable)")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json|github")
	cmd.Flags().StringVar(&opts.export, "export", "", "write results to an .xlsx workbook")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "skip saving the run to local history")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "suppress per-case progress output")

	return cmd
}

func runTests(cmd *cobra.Command, st *cliState, opts *testOptions, pattern string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("test: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("test: nil options")
	}

	format, err := report.ResolveFormat(opts.output, "")
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}

	overrides, err := parseExecutorFlags(opts.executors)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.watch {
		return runTestsWatch(ctx, cmd, st, opts, pattern, format, overrides)
	}
	return runTestsOnce(ctx, cmd, st, opts, pattern, format, overrides)
}

func runTestsOnce(ctx context.Context, cmd *cobra.Command, st *cliState, opts *testOptions, pattern string, format report.Format, overrides []executor.Config) error {
	files, err := discovery.Discover(pattern)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("test: no suite files match %q", pattern)
	}
	if opts.export != "" && len(files) > 1 {
		return fmt.Errorf("test: --export needs a single suite (pattern matched %d files)", len(files))
	}

	registry, err := newRegistry(st.cfg)
	if err != nil {
		return err
	}
	factory := executor.NewFactory(registry)

	log := debugLogger()
	client := analyticsClient(st.cfg, log)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), analyticsDrainTimeout)
		defer cancel()
		_ = client.Close(drainCtx)
	}()

	var stor store.Store
	if !opts.noSave {
		stor, err = openStore(st.cfg)
		if err != nil {
			return err
		}
		if stor != nil {
			defer stor.Close()
		}
	}

	anyFailed := false
	for _, path := range files {
		f, err := promptdef.LoadFile(path)
		if err != nil {
			return err
		}

		configs, err := resolveExecutors(st.cfg, f, overrides)
		if err != nil {
			return fmt.Errorf("test: %s: %w", path, err)
		}

		suiteOpts := []runner.Option{
			runner.WithExecutors(configs...),
			runner.WithSink(client),
			runner.WithLogger(log),
		}
		if listener := progressListener(opts, format); listener != nil {
			suiteOpts = append(suiteOpts, runner.WithListener(listener))
		}
		suite := runner.New(f.Prompt, suiteCases(f), factory, suiteOpts...)

		res, err := suite.Run(ctx, &runner.RunOptions{Bail: opts.bail})
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), report.FormatResults(res, format))

		if opts.export != "" {
			if err := report.ExportXLSX(res, opts.export); err != nil {
				return err
			}
			fmt.Fprintf(stderrWriter, "Exported results to %s\n", opts.export)
		}

		if stor != nil {
			if err := saveRun(stor, res, len(configs)); err != nil {
				return err
			}
		}

		if res.Failed > 0 {
			anyFailed = true
		}
		if ctx.Err() != nil {
			break
		}
	}

	if anyFailed {
		return errTestsFailed
	}
	return nil
}

// runTestsWatch re-runs matching suites whenever one changes. Failures
// keep the watch alive; interrupt exits cleanly with code 0.
func runTestsWatch(ctx context.Context, cmd *cobra.Command, st *cliState, opts *testOptions, pattern string, format report.Format, overrides []executor.Config) error {
	log := debugLogger()

	runPass := func() {
		err := runTestsOnce(ctx, cmd, st, opts, pattern, format, overrides)
		switch {
		case err == nil:
		case errors.Is(err, errTestsFailed):
		default:
			fmt.Fprintln(stderrWriter, err)
		}
	}

	runPass()

	changes := make(chan struct{}, 1)
	notify := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	first := true
	for {
		targets := watchTargets(pattern)
		w, err := watch.New(targets, notify, watch.WithLogger(log))
		if err != nil {
			return err
		}
		w.Start()

		if first {
			pterm.Info.Printfln("Watching %d suite files (Ctrl-C to stop)", len(targets))
			first = false
		}

		select {
		case <-ctx.Done():
			_ = w.Close()
			return nil
		case <-changes:
			_ = w.Close()
			pterm.Info.Printfln("Change detected, re-running")
			runPass()
		}
	}
}

// watchTargets re-discovers the files to watch, falling back to the
// working directory so a first suite file can still be picked up.
func watchTargets(pattern string) []string {
	files, err := discovery.Discover(pattern)
	if err == nil && len(files) > 0 {
		return files
	}
	return []string{"."}
}

// analyticsClient builds the telemetry client from config. A disabled
// or endpoint-less config yields a client whose methods all no-op.
func analyticsClient(cfg *config.Config, log *zap.SugaredLogger) *analytics.Client {
	endpoint := ""
	apiKey := ""
	if cfg != nil && !cfg.Analytics.Disabled {
		endpoint = cfg.Analytics.Endpoint
		apiKey = cfg.Analytics.APIKey
	}
	return analytics.NewClient(endpoint, analytics.WithAPIKey(apiKey), analytics.WithLogger(log))
}

// progressListener renders per-case progress with a spinner while a row
// is in flight. It stays silent for machine formats and under --quiet
// so stdout carries only the report.
func progressListener(opts *testOptions, format report.Format) runner.Listener {
	if opts == nil || opts.quiet || format != report.FormatTable {
		return nil
	}

	var spinner *pterm.SpinnerPrinter
	return func(ev runner.Event) {
		switch ev.Type {
		case runner.EventTestStart:
			if ev.Start == nil {
				return
			}
			spinner, _ = pterm.DefaultSpinner.Start(fmt.Sprintf("case %d/%d: %s", ev.Start.Current, ev.Start.Total, ev.Start.Name))
		case runner.EventTestComplete:
			if spinner != nil {
				_ = spinner.Stop()
				spinner = nil
			}
			res := ev.Result
			if res == nil {
				return
			}
			name := res.Name
			if name == "" {
				name = strings.TrimSpace(res.Input)
				if len(name) > 40 {
					name = name[:37] + "..."
				}
			}
			model := ""
			if res.Executor != nil {
				model = res.Executor.Model
			}
			switch {
			case res.Passed:
				pterm.Success.Printfln("%s [%s] %dms", name, model, res.DurationMs)
			case res.Error != "":
				pterm.Error.Printfln("%s [%s] %s", name, model, res.Error)
			default:
				pterm.Error.Printfln("%s [%s] %dms", name, model, res.DurationMs)
			}
		}
	}
}

func suiteCases(f *promptdef.File) []runner.TestCase {
	out := make([]runner.TestCase, 0, len(f.Cases))
	for _, cs := range f.Cases {
		out = append(out, runner.TestCase{
			Name:      cs.Name,
			Input:     cs.Input,
			Expect:    cs.Expect,
			HasExpect: cs.HasExpect,
			Timeout:   cs.Timeout,
		})
	}
	return out
}

// resolveExecutors picks the executor configs for one suite: CLI
// overrides win, then the file's executors, then config defaults.
// Config defaults also fill fields the chosen specs leave zero.
func resolveExecutors(cfg *config.Config, f *promptdef.File, overrides []executor.Config) ([]executor.Config, error) {
	specs := overrides
	if len(specs) == 0 && f != nil {
		for _, e := range f.Executors {
			specs = append(specs, executor.Config{
				Model:           llm.ParseModelRef(e.Model),
				MaxSteps:        e.MaxSteps,
				Timeout:         e.Timeout,
				Temperature:     e.Temperature,
				MaxOutputTokens: e.MaxOutputTokens,
			})
		}
	}
	if len(specs) == 0 {
		specs = []executor.Config{{}}
	}

	var defaults config.DefaultsConfig
	if cfg != nil {
		defaults = cfg.Defaults
	}

	out := make([]executor.Config, 0, len(specs))
	for _, c := range specs {
		c = fillExecutorDefaults(c, defaults)
		if c.Model.IsZero() {
			return nil, errors.New("no model configured (declare executors, set defaults.model, or pass --executor)")
		}
		out = append(out, c)
	}
	return out, nil
}

func fillExecutorDefaults(c executor.Config, d config.DefaultsConfig) executor.Config {
	if c.Model.IsZero() && strings.TrimSpace(d.Model) != "" {
		c.Model = llm.ParseModelRef(d.Model)
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = d.MaxSteps
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = d.MaxOutputTokens
	}
	return c
}

type executorOverrides struct {
	MaxSteps        int           `mapstructure:"max_steps"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Temperature     *float64      `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
}

func parseExecutorFlags(values []string) ([]executor.Config, error) {
	out := make([]executor.Config, 0, len(values))
	for _, raw := range values {
		cfg, err := parseExecutorFlag(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// parseExecutorFlag parses one --executor value: "model[,key=value...]"
// with max_steps, timeout, temperature, and max_output_tokens keys.
func parseExecutorFlag(raw string) (executor.Config, error) {
	parts := strings.Split(raw, ",")
	model := strings.TrimSpace(parts[0])
	if model == "" {
		return executor.Config{}, fmt.Errorf("test: --executor %q: missing model", raw)
	}

	kv := make(map[string]any)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return executor.Config{}, fmt.Errorf("test: --executor %q: expected key=value, got %q", raw, part)
		}
		kv[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	var overrides executorOverrides
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &overrides,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return executor.Config{}, fmt.Errorf("test: build override decoder: %w", err)
	}
	if err := dec.Decode(kv); err != nil {
		return executor.Config{}, fmt.Errorf("test: --executor %q: %w", raw, err)
	}

	return executor.Config{
		Model:           llm.ParseModelRef(model),
		MaxSteps:        overrides.MaxSteps,
		Timeout:         overrides.Timeout,
		Temperature:     overrides.Temperature,
		MaxOutputTokens: overrides.MaxOutputTokens,
	}, nil
}

// saveRun persists one finished suite run. It uses a fresh context so
// an interrupted run still lands in history.
func saveRun(stor store.Store, res *runner.TestResults, executorCount int) error {
	rec := &store.RunRecord{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		PromptName:    res.PromptName,
		Total:         res.Total,
		Passed:        res.Passed,
		Failed:        res.Failed,
		DurationMs:    res.DurationMs,
		ExecutorCount: executorCount,
	}
	for _, r := range res.Results {
		if r == nil {
			continue
		}
		rr := &store.ResultRecord{
			ExecutionID: r.ExecutionID,
			RunID:       rec.ID,
			CaseName:    r.Name,
			Input:       r.Input,
			Passed:      r.Passed,
			DurationMs:  r.DurationMs,
			Tokens:      r.Usage.TotalTokens,
			Error:       r.Error,
		}
		if r.Executor != nil {
			rr.ExecutorLabel = r.Executor.Model
		}
		rec.Results = append(rec.Results, rr)
	}

	if err := stor.SaveRun(context.Background(), rec); err != nil {
		return fmt.Errorf("test: save run: %w", err)
	}
	return nil
}
