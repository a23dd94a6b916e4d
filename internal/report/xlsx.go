package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/promptarena/promptarena/internal/runner"
)

const (
	resultsSheet       = "Results"
	minColumn          = 'A'
	maxColumn          = 'H'
	defaultColumnWidth = 16

	patternType  = "pattern"
	patternValue = 1
	failBgColor  = "FF5900"
	slowBgColor  = "FFEB9C"

	// Rows slower than this get the warning background.
	slowCaseThresholdMs = 10000
)

var xlsxHeaders = []string{
	"CASE", "INPUT", "EXECUTOR", "RESULT", "FINISH", "DURATION_MS", "TOKENS", "ERROR",
}

// ExportXLSX writes one workbook row per (case, executor) result so a
// run can be shared or filtered outside the terminal.
func ExportXLSX(res *runner.TestResults, path string) error {
	if res == nil {
		return fmt.Errorf("report: nil results")
	}
	if path == "" {
		return fmt.Errorf("report: empty export path")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("report: name sheet: %w", err)
	}
	for col := minColumn; col <= maxColumn; col++ {
		colName := string(col)
		f.SetColWidth(resultsSheet, colName, colName, defaultColumnWidth)
	}
	for i, header := range xlsxHeaders {
		cell := fmt.Sprintf("%c1", minColumn+i)
		f.SetCellValue(resultsSheet, cell, header)
	}

	failStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: patternType, Pattern: patternValue, Color: []string{failBgColor}},
	})
	if err != nil {
		return fmt.Errorf("report: fail style: %w", err)
	}
	slowStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: patternType, Pattern: patternValue, Color: []string{slowBgColor}},
	})
	if err != nil {
		return fmt.Errorf("report: slow style: %w", err)
	}

	row := 2
	for _, rr := range res.Results {
		if rr == nil {
			continue
		}
		writeResultRow(f, row, rr, failStyle, slowStyle)
		row++
	}

	writeXLSXSummary(f, row+1, res)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save workbook: %w", err)
	}
	return nil
}

func writeResultRow(f *excelize.File, row int, rr *runner.EvalResult, failStyle, slowStyle int) {
	executor := ""
	if rr.Executor != nil {
		executor = rr.Executor.Model
	}
	cells := []any{
		caseLabel(rr),
		rr.Input,
		executor,
		passLabel(rr.Passed),
		string(rr.FinishReason),
		rr.DurationMs,
		rr.Usage.TotalTokens,
		rr.Error,
	}

	for i, cell := range cells {
		cellName := fmt.Sprintf("%c%d", minColumn+i, row)
		f.SetCellValue(resultsSheet, cellName, cell)

		if !rr.Passed {
			f.SetCellStyle(resultsSheet, cellName, cellName, failStyle)
		} else if rr.DurationMs > slowCaseThresholdMs {
			f.SetCellStyle(resultsSheet, cellName, cellName, slowStyle)
		}
	}
}

func writeXLSXSummary(f *excelize.File, startRow int, res *runner.TestResults) {
	f.SetCellValue(resultsSheet, fmt.Sprintf("A%d", startRow), "Summary")
	f.SetCellValue(resultsSheet, fmt.Sprintf("A%d", startRow+1), fmt.Sprintf("Prompt: %s", promptName(res)))
	f.SetCellValue(resultsSheet, fmt.Sprintf("A%d", startRow+2), fmt.Sprintf("Total cases: %d", res.Total))
	f.SetCellValue(resultsSheet, fmt.Sprintf("A%d", startRow+3), fmt.Sprintf("Passed: %d", res.Passed))
	f.SetCellValue(resultsSheet, fmt.Sprintf("A%d", startRow+4), fmt.Sprintf("Failed: %d", res.Failed))
	f.SetCellValue(resultsSheet, fmt.Sprintf("A%d", startRow+5), fmt.Sprintf("Duration: %dms", res.DurationMs))
}
