// Package report renders runner results for terminals, CI logs, and
// machine consumers. The table format switches to a comparison matrix
// automatically when a run covered more than one executor.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/promptarena/promptarena/internal/runner"
)

type Format string

const (
	FormatTable  Format = "table"
	FormatJSON   Format = "json"
	FormatGitHub Format = "github"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
)

// ParseFormat maps a user-supplied format name to a Format, returning
// "" for anything unrecognized.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table":
		return FormatTable
	case "json", "jsonl":
		return FormatJSON
	case "github", "gh":
		return FormatGitHub
	default:
		return ""
	}
}

// ResolveFormat picks the output format from the --output flag value,
// falling back to the config default and then to the table format.
func ResolveFormat(flagValue, configValue string) (Format, error) {
	if strings.TrimSpace(flagValue) != "" {
		out := ParseFormat(flagValue)
		if out == "" {
			return "", fmt.Errorf("invalid --output %q (expected table|json|github)", flagValue)
		}
		return out, nil
	}
	if out := ParseFormat(configValue); out != "" {
		return out, nil
	}
	return FormatTable, nil
}

func coloredStatus(passed bool) string {
	if passed {
		return colorGreen + "PASS" + colorReset
	}
	return colorRed + "FAIL" + colorReset
}

func passLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func runPassed(res *runner.TestResults) bool {
	return res != nil && res.Failed == 0
}

func passRate(res *runner.TestResults) float64 {
	if res == nil || res.Total == 0 {
		return 0
	}
	return float64(res.Passed) / float64(res.Total)
}

// FormatResults renders one run in the requested format. In the table
// format, runs that compared multiple executors render as a matrix.
func FormatResults(res *runner.TestResults, format Format) string {
	switch format {
	case FormatTable:
		if res != nil && len(res.ExecutorResults) > 0 {
			return formatMatrix(res)
		}
		return formatResultsTable(res)
	case FormatJSON:
		return formatResultsJSON(res)
	case FormatGitHub:
		return formatResultsGitHub(res)
	default:
		return fmt.Sprintf("error: unknown output format %q\n", format)
	}
}

func formatResultsTable(res *runner.TestResults) string {
	if res == nil {
		return "Prompt: <nil> " + coloredStatus(false) + "\n\n"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Prompt: %s %s\n", promptName(res), coloredStatus(runPassed(res)))
	fmt.Fprintf(&buf, "Cases: %d passed=%d failed=%d pass_rate=%.2f latency_ms=%d tokens=%d\n",
		res.Total, res.Passed, res.Failed, passRate(res), res.DurationMs, totalTokens(res))

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CASE\tRESULT\tFINISH\tLAT(ms)\tTOKENS\tERROR")
	for _, rr := range res.Results {
		if rr == nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			caseLabel(rr), coloredStatus(rr.Passed), rr.FinishReason, rr.DurationMs, rr.Usage.TotalTokens, rr.Error)
	}
	_ = tw.Flush()

	writeFailureDetails(&buf, res.Results)
	buf.WriteByte('\n')
	return buf.String()
}

// writeFailureDetails appends expected/actual diagnostics for failed
// cases below the table, so a mismatch is readable without rerunning
// in JSON mode.
func writeFailureDetails(buf *bytes.Buffer, results []*runner.EvalResult) {
	n := 0
	for _, rr := range results {
		if rr == nil || rr.Passed {
			continue
		}
		if n == 0 {
			buf.WriteString("\nFailures:\n")
		}
		n++
		label := caseLabel(rr)
		if rr.Executor != nil {
			label += " [" + rr.Executor.Model + "]"
		}
		fmt.Fprintf(buf, "  %d) %s\n", n, label)
		if rr.Error != "" {
			fmt.Fprintf(buf, "     error:    %s\n", rr.Error)
			continue
		}
		if rr.HasExpected {
			fmt.Fprintf(buf, "     expected: %s\n", compactJSON(rr.Expected))
		}
		fmt.Fprintf(buf, "     actual:   %s\n", compactJSON(rr.Output))
	}
}

// caseLabel mirrors the suite runner's display naming: explicit name,
// else a trimmed input preview.
func caseLabel(rr *runner.EvalResult) string {
	if rr.Name != "" {
		return rr.Name
	}
	input := strings.TrimSpace(rr.Input)
	if len(input) > 40 {
		return input[:37] + "..."
	}
	return input
}

func promptName(res *runner.TestResults) string {
	if res == nil || strings.TrimSpace(res.PromptName) == "" {
		return "<unnamed>"
	}
	return res.PromptName
}

func totalTokens(res *runner.TestResults) int {
	total := 0
	for _, rr := range res.Results {
		if rr != nil {
			total += rr.Usage.TotalTokens
		}
	}
	return total
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

type jsonRunReport struct {
	Passed   bool    `json:"run_passed"`
	PassRate float64 `json:"pass_rate"`
	*runner.TestResults
}

func formatResultsJSON(res *runner.TestResults) string {
	if res == nil {
		return "{\"error\":\"nil results\"}\n"
	}

	out := jsonRunReport{
		Passed:      runPassed(res),
		PassRate:    passRate(res),
		TestResults: res,
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}\n", err.Error())
	}
	return string(b) + "\n"
}

func formatResultsGitHub(res *runner.TestResults) string {
	if res == nil {
		return "::error::nil results\n"
	}

	var buf strings.Builder
	for _, rr := range res.Results {
		if rr == nil || rr.Passed {
			continue
		}
		msg := fmt.Sprintf("prompt=%s case=%s finish=%s", promptName(res), caseLabel(rr), rr.FinishReason)
		if rr.Error != "" {
			msg += " error=" + rr.Error
		} else if rr.HasExpected {
			msg += fmt.Sprintf(" expected=%s actual=%s", compactJSON(rr.Expected), compactJSON(rr.Output))
		}
		buf.WriteString("::error::")
		buf.WriteString(sanitizeGitHubAnnotation(msg))
		buf.WriteByte('\n')
	}

	buf.WriteString(fmt.Sprintf("Summary: prompt=%s cases=%d passed=%d failed=%d pass_rate=%.3f\n",
		promptName(res), res.Total, res.Passed, res.Failed, passRate(res)))
	return buf.String()
}

func sanitizeGitHubAnnotation(s string) string {
	// GitHub Actions commands treat CR/LF and percent-encoding specially.
	// Keep it simple: flatten newlines and carriage returns.
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
