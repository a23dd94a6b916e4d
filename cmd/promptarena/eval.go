package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptarena/promptarena/internal/config"
	"github.com/promptarena/promptarena/internal/executor"
	"github.com/promptarena/promptarena/internal/promptdef"
	"github.com/promptarena/promptarena/internal/report"
	"github.com/promptarena/promptarena/internal/runner"
)

type evalOptions struct {
	input    string
	executor string
	output   string
}

func newEvalCmd(st *cliState) *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval <file>",
		Short: "Evaluate one input against a prompt file",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, st, &opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input message to evaluate")
	cmd.Flags().StringVar(&opts.executor, "executor", "", "executor override: model[,key=value...]")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runEval(cmd *cobra.Command, st *cliState, opts *evalOptions, path string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("eval: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("eval: nil options")
	}
	if strings.TrimSpace(opts.input) == "" {
		return fmt.Errorf("eval: missing --input")
	}

	format, err := report.ResolveFormat(opts.output, "")
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}

	f, err := promptdef.LoadFile(path)
	if err != nil {
		return err
	}

	var overrides []executor.Config
	if strings.TrimSpace(opts.executor) != "" {
		override, err := parseExecutorFlag(opts.executor)
		if err != nil {
			return err
		}
		overrides = []executor.Config{override}
	}
	configs, err := resolveExecutors(st.cfg, f, overrides)
	if err != nil {
		return fmt.Errorf("eval: %s: %w", path, err)
	}
	execCfg := configs[0]

	registry, err := newRegistry(st.cfg)
	if err != nil {
		return err
	}
	factory := executor.NewFactory(registry)
	exec, err := factory.New(execCfg)
	if err != nil {
		return err
	}

	suite := runner.New(f.Prompt, nil, factory, runner.WithLogger(debugLogger()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res := suite.RunSingle(ctx, runner.TestCase{Input: opts.input}, exec, execCfg)

	if format == report.FormatJSON {
		b, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("eval: marshal json: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
	} else {
		printEvalResult(cmd.OutOrStdout(), f.Prompt, res)
	}

	if !res.Passed {
		return errTestsFailed
	}
	return nil
}

func printEvalResult(out io.Writer, p *promptdef.Prompt, res *runner.EvalResult) {
	name := "<unnamed>"
	if p != nil && p.Name != "" {
		name = p.Name
	}
	model := ""
	if res.Executor != nil {
		model = res.Executor.Model
	}

	fmt.Fprintf(out, "Prompt: %s [%s]\n", name, model)
	fmt.Fprintf(out, "Result: %s finish=%s latency_ms=%d tokens=%d\n",
		statusLabel(res.Passed), res.FinishReason, res.DurationMs, res.Usage.TotalTokens)
	if res.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", res.Error)
	}
	if len(res.Steps) > 1 {
		fmt.Fprintf(out, "Steps: %d\n", len(res.Steps))
	}
	if res.Output != nil {
		fmt.Fprintln(out, "Output:")
		fmt.Fprintln(out, renderEvalOutput(res.Output))
	}
}

// renderEvalOutput shows text output verbatim and anything structured
// as indented JSON.
func renderEvalOutput(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
