package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptarena/promptarena/internal/config"
	"github.com/promptarena/promptarena/internal/store"
)

type historyOptions struct {
	promptName string
	limit      int
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show stored run history",
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
			if len(args) == 1 {
				return runHistoryShow(cmd, st, args[0])
			}
			return runHistoryList(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.promptName, "prompt", "", "only runs for this prompt")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max runs to list")

	return cmd
}

func runHistoryList(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}

	stor, err := historyStore(st)
	if err != nil {
		return err
	}
	defer stor.Close()

	var runs []*store.RunRecord
	promptName := strings.TrimSpace(opts.promptName)
	if promptName != "" {
		runs, err = stor.GetPromptHistory(cmd.Context(), promptName, opts.limit)
	} else {
		runs, err = stor.ListRuns(cmd.Context(), opts.limit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN_ID\tCREATED\tPROMPT\tCASES\tPASSED\tFAILED\tDURATION(ms)")
	for _, r := range runs {
		name := r.PromptName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID,
			formatTime(r.CreatedAt),
			name,
			r.Total,
			r.Passed,
			r.Failed,
			r.DurationMs,
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, st *cliState, runID string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("history: missing run id")
	}

	stor, err := historyStore(st)
	if err != nil {
		return err
	}
	defer stor.Close()

	run, err := stor.GetRun(cmd.Context(), runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("history: run %q not found", runID)
		}
		return err
	}

	results, err := stor.GetRunResults(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	name := run.PromptName
	if name == "" {
		name = "-"
	}
	_, _ = fmt.Fprintf(out, "Run: %s\n", run.ID)
	_, _ = fmt.Fprintf(out, "Created: %s\n", formatTime(run.CreatedAt))
	_, _ = fmt.Fprintf(out, "Prompt: %s\n", name)
	_, _ = fmt.Fprintf(out, "Cases: %d passed=%d failed=%d duration_ms=%d executors=%d\n",
		run.Total, run.Passed, run.Failed, run.DurationMs, run.ExecutorCount)

	if len(results) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CASE\tRESULT\tEXECUTOR\tLAT(ms)\tTOKENS\tERROR")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			resultCaseName(r),
			statusLabel(r.Passed),
			r.ExecutorLabel,
			r.DurationMs,
			r.Tokens,
			r.Error,
		)
	}
	return tw.Flush()
}

// historyStore opens the configured store, rejecting disabled storage
// with a readable error instead of a nil store.
func historyStore(st *cliState) (store.Store, error) {
	stor, err := openStore(st.cfg)
	if err != nil {
		return nil, err
	}
	if stor == nil {
		return nil, fmt.Errorf("history: storage is disabled (storage.type: none)")
	}
	return stor, nil
}

func resultCaseName(r *store.ResultRecord) string {
	if r.CaseName != "" {
		return r.CaseName
	}
	input := strings.TrimSpace(r.Input)
	if len(input) > 40 {
		return input[:37] + "..."
	}
	return input
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}

func statusLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}
