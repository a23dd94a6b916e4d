package report

import (
	"bytes"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/pterm/pterm"

	"github.com/promptarena/promptarena/internal/runner"
)

type caseKey struct {
	name  string
	input string
}

// formatMatrix renders a case × executor comparison: one cell per
// pairing, a pass-rate bar per executor, and a latency/token summary.
func formatMatrix(res *runner.TestResults) string {
	labels := make([]string, 0, len(res.ExecutorResults))
	for label := range res.ExecutorResults {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	// Row order follows first appearance in the aggregate result list.
	order := make([]caseKey, 0)
	seen := make(map[caseKey]struct{})
	display := make(map[caseKey]string)
	for _, rr := range res.Results {
		if rr == nil {
			continue
		}
		key := caseKey{rr.Name, rr.Input}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		order = append(order, key)
		display[key] = caseLabel(rr)
	}

	cells := make(map[string]map[caseKey]*runner.EvalResult, len(labels))
	for label, bucket := range res.ExecutorResults {
		if bucket == nil {
			continue
		}
		byCase := make(map[caseKey]*runner.EvalResult, len(bucket.Results))
		for _, rr := range bucket.Results {
			if rr == nil {
				continue
			}
			byCase[caseKey{rr.Name, rr.Input}] = rr
		}
		cells[label] = byCase
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Prompt: %s %s\n", promptName(res), coloredStatus(runPassed(res)))
	fmt.Fprintf(&buf, "Executors: %d Cases: %d passed=%d failed=%d pass_rate=%.2f latency_ms=%d\n\n",
		len(res.ExecutorResults), res.Total, res.Passed, res.Failed, passRate(res), res.DurationMs)

	data := pterm.TableData{append([]string{"CASE"}, labels...)}
	for _, key := range order {
		row := []string{display[key]}
		for _, label := range labels {
			row = append(row, matrixCell(cells[label][key]))
		}
		data = append(data, row)
	}
	if table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender(); err == nil {
		buf.WriteString(table)
		buf.WriteByte('\n')
	}

	buf.WriteString("\nPass rate:\n")
	bars := make(pterm.Bars, 0, len(labels))
	for _, label := range labels {
		bucket := res.ExecutorResults[label]
		if bucket == nil {
			continue
		}
		style := pterm.NewStyle(pterm.FgGreen)
		if bucket.Failed > 0 {
			style = pterm.NewStyle(pterm.FgRed)
		}
		bars = append(bars, pterm.Bar{Label: label, Value: bucketPassPercent(bucket), Style: style})
	}
	if chart, err := pterm.DefaultBarChart.WithHorizontal().WithShowValue().WithBars(bars).Srender(); err == nil {
		buf.WriteString(chart)
	}

	buf.WriteByte('\n')
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXECUTOR\tPASSED\tFAILED\tAVG LAT(ms)\tTOKENS")
	for _, label := range labels {
		bucket := res.ExecutorResults[label]
		if bucket == nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n",
			label, bucket.Passed, bucket.Failed, bucketAvgLatency(bucket), bucketTokens(bucket))
	}
	_ = tw.Flush()

	writeFailureDetails(&buf, res.Results)
	buf.WriteByte('\n')
	return buf.String()
}

func matrixCell(rr *runner.EvalResult) string {
	if rr == nil {
		return pterm.Gray("-")
	}
	if rr.Passed {
		return pterm.Green(fmt.Sprintf("✓ %dms", rr.DurationMs))
	}
	if rr.Error != "" {
		return pterm.Red("✗ " + truncate(rr.Error, 24))
	}
	return pterm.Red(fmt.Sprintf("✗ %dms", rr.DurationMs))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func bucketPassPercent(bucket *runner.ExecutorResults) int {
	total := bucket.Passed + bucket.Failed
	if total == 0 {
		return 0
	}
	return bucket.Passed * 100 / total
}

func bucketAvgLatency(bucket *runner.ExecutorResults) int64 {
	if len(bucket.Results) == 0 {
		return 0
	}
	var sum int64
	for _, rr := range bucket.Results {
		if rr != nil {
			sum += rr.DurationMs
		}
	}
	return sum / int64(len(bucket.Results))
}

func bucketTokens(bucket *runner.ExecutorResults) int {
	total := 0
	for _, rr := range bucket.Results {
		if rr != nil {
			total += rr.Usage.TotalTokens
		}
	}
	return total
}
