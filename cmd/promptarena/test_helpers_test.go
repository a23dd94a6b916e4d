package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/promptarena/promptarena/internal/config"
	"github.com/promptarena/promptarena/internal/executor"
	"github.com/promptarena/promptarena/internal/llm"
	"github.com/promptarena/promptarena/internal/promptdef"
	"github.com/promptarena/promptarena/internal/report"
	"github.com/promptarena/promptarena/internal/runner"
	"github.com/promptarena/promptarena/internal/store"
)

func TestParseExecutorFlag(t *testing.T) {
	t.Parallel()

	got, err := parseExecutorFlag("openai/gpt-4.1-mini")
	if err != nil {
		t.Fatalf("parseExecutorFlag(model only): %v", err)
	}
	if got.Model.Provider != "openai" || got.Model.ID != "gpt-4.1-mini" {
		t.Fatalf("model ref: got %+v", got.Model)
	}
	if got.MaxSteps != 0 || got.Timeout != 0 || got.Temperature != nil || got.MaxOutputTokens != 0 {
		t.Fatalf("expected zero overrides, got %+v", got)
	}

	got, err = parseExecutorFlag("stub/m1, max_steps=8, timeout=90s, temperature=0.25, max_output_tokens=2048")
	if err != nil {
		t.Fatalf("parseExecutorFlag(full): %v", err)
	}
	if got.Model.Provider != "stub" || got.Model.ID != "m1" {
		t.Fatalf("model ref: got %+v", got.Model)
	}
	if got.MaxSteps != 8 {
		t.Fatalf("max_steps: got %d want 8", got.MaxSteps)
	}
	if got.Timeout != 90*time.Second {
		t.Fatalf("timeout: got %v want 90s", got.Timeout)
	}
	if got.Temperature == nil || *got.Temperature != 0.25 {
		t.Fatalf("temperature: got %v want 0.25", got.Temperature)
	}
	if got.MaxOutputTokens != 2048 {
		t.Fatalf("max_output_tokens: got %d want 2048", got.MaxOutputTokens)
	}

	// Empty segments are tolerated.
	got, err = parseExecutorFlag("m,,max_steps=3,")
	if err != nil {
		t.Fatalf("parseExecutorFlag(empty segments): %v", err)
	}
	if got.Model.ID != "m" || got.MaxSteps != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestParseExecutorFlag_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
	}{
		{",max_steps=2", "missing model"},
		{"   ", "missing model"},
		{"m,max_steps", "expected key=value"},
		{"m,wat=1", "wat"},
		{"m,temperature=abc", "temperature"},
	}
	for _, tc := range cases {
		if _, err := parseExecutorFlag(tc.raw); err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("parseExecutorFlag(%q): got %v, want error containing %q", tc.raw, err, tc.want)
		}
	}
}

func TestParseExecutorFlags(t *testing.T) {
	t.Parallel()

	configs, err := parseExecutorFlags([]string{"stub/a", "stub/b,max_steps=2"})
	if err != nil {
		t.Fatalf("parseExecutorFlags: %v", err)
	}
	if len(configs) != 2 || configs[0].Model.ID != "a" || configs[1].Model.ID != "b" || configs[1].MaxSteps != 2 {
		t.Fatalf("got %+v", configs)
	}

	if _, err := parseExecutorFlags([]string{"stub/a", ""}); err == nil {
		t.Fatalf("expected error for empty flag value")
	}

	configs, err = parseExecutorFlags(nil)
	if err != nil || len(configs) != 0 {
		t.Fatalf("parseExecutorFlags(nil): got %v, %v", configs, err)
	}
}

func TestResolveExecutors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Defaults: config.DefaultsConfig{
		Model:           "anthropic/claude-sonnet-4-5-20250929",
		MaxSteps:        7,
		Timeout:         45 * time.Second,
		MaxOutputTokens: 1024,
	}}
	file := &promptdef.File{Executors: []promptdef.ExecutorSpec{
		{Model: "openai/gpt-4o", MaxSteps: 3},
		{Model: "bare-model", Timeout: 5 * time.Second},
	}}

	t.Run("overrides win", func(t *testing.T) {
		overrides := []executor.Config{{Model: llm.ParseModelRef("stub/x")}}
		got, err := resolveExecutors(cfg, file, overrides)
		if err != nil {
			t.Fatalf("resolveExecutors: %v", err)
		}
		if len(got) != 1 || got[0].Model.ID != "x" {
			t.Fatalf("got %+v", got)
		}
		// Defaults still fill the zero fields of the override.
		if got[0].MaxSteps != 7 || got[0].Timeout != 45*time.Second || got[0].MaxOutputTokens != 1024 {
			t.Fatalf("expected defaults filled, got %+v", got[0])
		}
	})

	t.Run("file executors", func(t *testing.T) {
		got, err := resolveExecutors(cfg, file, nil)
		if err != nil {
			t.Fatalf("resolveExecutors: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d configs", len(got))
		}
		if got[0].Model.Provider != "openai" || got[0].Model.ID != "gpt-4o" {
			t.Fatalf("first model: %+v", got[0].Model)
		}
		if got[0].MaxSteps != 3 {
			t.Fatalf("declared max_steps overridden: %+v", got[0])
		}
		if got[0].Timeout != 45*time.Second {
			t.Fatalf("timeout default not filled: %+v", got[0])
		}
		if got[1].Model.ID != "bare-model" || got[1].Timeout != 5*time.Second || got[1].MaxSteps != 7 {
			t.Fatalf("second config: %+v", got[1])
		}
	})

	t.Run("defaults only", func(t *testing.T) {
		got, err := resolveExecutors(cfg, &promptdef.File{}, nil)
		if err != nil {
			t.Fatalf("resolveExecutors: %v", err)
		}
		if len(got) != 1 || got[0].Model.Provider != "anthropic" || got[0].Model.ID != "claude-sonnet-4-5-20250929" {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("no model anywhere", func(t *testing.T) {
		_, err := resolveExecutors(&config.Config{}, &promptdef.File{}, nil)
		if err == nil || !strings.Contains(err.Error(), "no model configured") {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("nil config", func(t *testing.T) {
		got, err := resolveExecutors(nil, nil, []executor.Config{{Model: llm.ParseModelRef("stub/y")}})
		if err != nil || len(got) != 1 || got[0].Model.ID != "y" {
			t.Fatalf("got %+v, %v", got, err)
		}
	})
}

func TestFillExecutorDefaults(t *testing.T) {
	t.Parallel()

	d := config.DefaultsConfig{Model: "stub/d", MaxSteps: 4, Timeout: time.Minute, MaxOutputTokens: 512}

	got := fillExecutorDefaults(executor.Config{}, d)
	if got.Model.ID != "d" || got.MaxSteps != 4 || got.Timeout != time.Minute || got.MaxOutputTokens != 512 {
		t.Fatalf("got %+v", got)
	}

	set := executor.Config{
		Model:           llm.ParseModelRef("stub/mine"),
		MaxSteps:        1,
		Timeout:         time.Second,
		MaxOutputTokens: 9,
	}
	got = fillExecutorDefaults(set, d)
	if got.Model.ID != "mine" || got.MaxSteps != 1 || got.Timeout != time.Second || got.MaxOutputTokens != 9 {
		t.Fatalf("set fields overridden: %+v", got)
	}

	got = fillExecutorDefaults(executor.Config{}, config.DefaultsConfig{})
	if !got.Model.IsZero() || got.MaxSteps != 0 {
		t.Fatalf("empty defaults changed config: %+v", got)
	}
}

func TestSuiteCases(t *testing.T) {
	t.Parallel()

	f := &promptdef.File{Cases: []promptdef.CaseSpec{
		{Name: "named", Input: "hi", Expect: "ok", HasExpect: true, Timeout: 2 * time.Second},
		{Input: "unnamed"},
	}}

	got := suiteCases(f)
	if len(got) != 2 {
		t.Fatalf("got %d cases", len(got))
	}
	if got[0].Name != "named" || got[0].Input != "hi" || got[0].Expect != "ok" || !got[0].HasExpect || got[0].Timeout != 2*time.Second {
		t.Fatalf("first case: %+v", got[0])
	}
	if got[1].Name != "" || got[1].Input != "unnamed" || got[1].HasExpect {
		t.Fatalf("second case: %+v", got[1])
	}
}

func TestProgressListener(t *testing.T) {
	t.Parallel()

	if progressListener(nil, report.FormatTable) != nil {
		t.Fatalf("expected nil listener for nil options")
	}
	if progressListener(&testOptions{quiet: true}, report.FormatTable) != nil {
		t.Fatalf("expected nil listener under --quiet")
	}
	if progressListener(&testOptions{}, report.FormatJSON) != nil {
		t.Fatalf("expected nil listener for json output")
	}
	if progressListener(&testOptions{}, report.FormatGitHub) != nil {
		t.Fatalf("expected nil listener for github output")
	}
	if progressListener(&testOptions{}, report.FormatTable) == nil {
		t.Fatalf("expected listener for table output")
	}
}

func TestWatchTargets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "greet.prompt.yaml")
	writeFile(t, path, minimalSuiteYAML("greeter", "ok"))

	got := watchTargets(path)
	if len(got) != 1 || got[0] != path {
		t.Fatalf("got %v", got)
	}

	got = watchTargets(filepath.Join(dir, "missing.prompt.yaml"))
	if len(got) != 1 || got[0] != "." {
		t.Fatalf("expected cwd fallback, got %v", got)
	}
}

func TestAnalyticsClient(t *testing.T) {
	t.Parallel()

	if analyticsClient(nil, nil).Enabled() {
		t.Fatalf("expected disabled client for nil config")
	}

	cfg := &config.Config{Analytics: config.AnalyticsConfig{Endpoint: "http://127.0.0.1:9", Disabled: true}}
	if analyticsClient(cfg, nil).Enabled() {
		t.Fatalf("expected disabled client when analytics.disabled is set")
	}

	cfg.Analytics.Disabled = false
	if !analyticsClient(cfg, nil).Enabled() {
		t.Fatalf("expected enabled client")
	}
}

func TestSaveRun(t *testing.T) {
	t.Parallel()

	stor, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = stor.Close() })

	res := &runner.TestResults{
		PromptName: "greeter",
		Total:      2,
		Passed:     1,
		Failed:     1,
		DurationMs: 32,
		Results: []*runner.EvalResult{
			{
				ExecutionID: "ex-1",
				Name:        "greets",
				Input:       "hi",
				Passed:      true,
				DurationMs:  12,
				Usage:       llm.Usage{TotalTokens: 30},
				Executor:    &runner.ExecutorInfo{Model: "m-1"},
			},
			nil,
			{
				ExecutionID: "ex-2",
				Input:       "what is up",
				Passed:      false,
				DurationMs:  20,
				Error:       "mismatch",
			},
		},
	}

	if err := saveRun(stor, res, 2); err != nil {
		t.Fatalf("saveRun: %v", err)
	}

	runs, err := stor.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs", len(runs))
	}
	rec := runs[0]
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("missing id or created_at: %+v", rec)
	}
	if rec.PromptName != "greeter" || rec.Total != 2 || rec.Passed != 1 || rec.Failed != 1 || rec.DurationMs != 32 || rec.ExecutorCount != 2 {
		t.Fatalf("run record: %+v", rec)
	}

	results, err := stor.GetRunResults(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRunResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	byExec := make(map[string]*store.ResultRecord, len(results))
	for _, r := range results {
		byExec[r.ExecutionID] = r
		if r.RunID != rec.ID {
			t.Fatalf("result not linked to run: %+v", r)
		}
	}
	first := byExec["ex-1"]
	if first == nil || first.CaseName != "greets" || first.Input != "hi" || !first.Passed || first.Tokens != 30 || first.ExecutorLabel != "m-1" {
		t.Fatalf("first result: %+v", first)
	}
	second := byExec["ex-2"]
	if second == nil || second.Passed || second.Error != "mismatch" || second.ExecutorLabel != "" {
		t.Fatalf("second result: %+v", second)
	}
}

func TestSaveRun_StoreError(t *testing.T) {
	t.Parallel()

	stor, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	_ = stor.Close()

	err = saveRun(stor, &runner.TestResults{PromptName: "p"}, 1)
	if err == nil || !strings.Contains(err.Error(), "test: save run:") {
		t.Fatalf("got %v", err)
	}
}
