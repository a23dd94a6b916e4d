package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promptarena/promptarena/internal/discovery"
	"github.com/promptarena/promptarena/internal/promptdef"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [pattern]",
		Short: "List discovered prompt suites",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := discovery.DefaultPattern
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				pattern = args[0]
			}
			return runList(cmd, pattern)
		},
	}
}

func runList(cmd *cobra.Command, pattern string) error {
	files, err := discovery.Discover(pattern)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(files) == 0 {
		_, _ = fmt.Fprintln(out, "No suite files found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tPROMPT\tCASES\tEXECUTORS")
	for _, path := range files {
		f, err := promptdef.LoadFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", path, f.Prompt.Name, len(f.Cases), executorSummary(f))
	}
	return tw.Flush()
}

func executorSummary(f *promptdef.File) string {
	if len(f.Executors) == 0 {
		return "-"
	}
	models := make([]string, 0, len(f.Executors))
	for _, e := range f.Executors {
		models = append(models, e.Model)
	}
	return strings.Join(models, ",")
}
