package analytics

import (
	"time"

	"github.com/google/uuid"

	"github.com/promptarena/promptarena/internal/runner"
)

// RunRecord is the wire form of a completed suite run.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	PromptName string    `json:"prompt_name,omitempty"`
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	DurationMs int64     `json:"duration_ms"`
	Executors  []string  `json:"executors,omitempty"`
}

// CaseRecord is the wire form of a single evaluation.
type CaseRecord struct {
	ExecutionID  string    `json:"execution_id"`
	Timestamp    time.Time `json:"timestamp"`
	Name         string    `json:"name,omitempty"`
	Input        string    `json:"input,omitempty"`
	Executor     string    `json:"executor,omitempty"`
	Passed       bool      `json:"passed"`
	DurationMs   int64     `json:"duration_ms"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Error        string    `json:"error,omitempty"`
	TotalTokens  int       `json:"total_tokens,omitempty"`
}

// Batch is the POST body accepted by an ingest endpoint.
type Batch struct {
	SentAt time.Time    `json:"sent_at"`
	Runs   []RunRecord  `json:"runs,omitempty"`
	Cases  []CaseRecord `json:"cases,omitempty"`
}

func newRunRecord(res *runner.TestResults) RunRecord {
	rec := RunRecord{
		RunID:      uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		PromptName: res.PromptName,
		Total:      res.Total,
		Passed:     res.Passed,
		Failed:     res.Failed,
		DurationMs: res.DurationMs,
	}
	seen := make(map[string]bool)
	for _, r := range res.Results {
		if r == nil || r.Executor == nil || seen[r.Executor.Model] {
			continue
		}
		seen[r.Executor.Model] = true
		rec.Executors = append(rec.Executors, r.Executor.Model)
	}
	return rec
}

func newCaseRecord(res *runner.EvalResult) CaseRecord {
	rec := CaseRecord{
		ExecutionID:  res.ExecutionID,
		Timestamp:    time.Now().UTC(),
		Name:         res.Name,
		Input:        res.Input,
		Passed:       res.Passed,
		DurationMs:   res.DurationMs,
		FinishReason: string(res.FinishReason),
		Error:        res.Error,
		TotalTokens:  res.Usage.TotalTokens,
	}
	if res.Executor != nil {
		rec.Executor = res.Executor.Model
	}
	return rec
}
