package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptarena/promptarena/internal/analytics"
	"github.com/promptarena/promptarena/internal/store"
)

const defaultRunListLimit = 20

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), defaultRunListLimit)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetRunResults(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	if _, err := s.store.GetRun(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	results, err := s.store.GetRunResults(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (s *Server) handleGetPromptHistory(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	promptName := strings.TrimSpace(c.Param("prompt"))
	if promptName == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing prompt name"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), defaultRunListLimit)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	runs, err := s.store.GetPromptHistory(c.Request.Context(), promptName, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, runs)
}

// handleIngest accepts the analytics client's batch format, so a team
// can point PROMPTARENA_ANALYTICS_ENDPOINT at its own serve instance
// and collect everyone's runs in one place.
func (s *Server) handleIngest(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	var batch analytics.Batch
	if err := c.ShouldBindJSON(&batch); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("invalid batch: %w", err))
		return
	}
	if len(batch.Runs) == 0 && len(batch.Cases) == 0 {
		respondError(c, http.StatusBadRequest, errors.New("empty batch"))
		return
	}

	for i, r := range batch.Runs {
		if strings.TrimSpace(r.RunID) == "" {
			respondError(c, http.StatusBadRequest, fmt.Errorf("runs[%d]: missing run_id", i))
			return
		}
	}
	for i, cr := range batch.Cases {
		if strings.TrimSpace(cr.ExecutionID) == "" {
			respondError(c, http.StatusBadRequest, fmt.Errorf("cases[%d]: missing execution_id", i))
			return
		}
	}

	runs, results := ingestRecords(&batch)
	if err := s.store.IngestBatch(c.Request.Context(), runs, results); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"runs": len(runs), "results": len(results)})
}

// ingestRecords converts wire records to store records. Cases arriving
// in a single-run batch are attributed to that run; threshold-flushed
// case batches carry no run and are stored unattributed.
func ingestRecords(batch *analytics.Batch) ([]*store.RunRecord, []*store.ResultRecord) {
	runs := make([]*store.RunRecord, 0, len(batch.Runs))
	for _, r := range batch.Runs {
		runs = append(runs, &store.RunRecord{
			ID:            r.RunID,
			CreatedAt:     r.Timestamp,
			PromptName:    r.PromptName,
			Total:         r.Total,
			Passed:        r.Passed,
			Failed:        r.Failed,
			DurationMs:    r.DurationMs,
			ExecutorCount: len(r.Executors),
		})
	}

	batchRunID := ""
	if len(batch.Runs) == 1 {
		batchRunID = batch.Runs[0].RunID
	}

	results := make([]*store.ResultRecord, 0, len(batch.Cases))
	for _, cr := range batch.Cases {
		results = append(results, &store.ResultRecord{
			ExecutionID:   cr.ExecutionID,
			RunID:         batchRunID,
			CaseName:      cr.Name,
			Input:         cr.Input,
			ExecutorLabel: cr.Executor,
			Passed:        cr.Passed,
			DurationMs:    cr.DurationMs,
			Tokens:        cr.TotalTokens,
			Error:         cr.Error,
		})
	}
	return runs, results
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limit must be > 0")
	}
	return v, nil
}
