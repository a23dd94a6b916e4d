package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultHistoryLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertRunStmt     *sql.Stmt
	insertResultStmt  *sql.Stmt
	ingestRunStmt     *sql.Stmt
	ingestResultStmt  *sql.Stmt
	getRunStmt        *sql.Stmt
	listRunsStmt      *sql.Stmt
	resultsByRunStmt  *sql.Stmt
	promptHistoryStmt *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			prompt_name TEXT NOT NULL,
			total INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			executor_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			execution_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			case_name TEXT NOT NULL,
			input TEXT NOT NULL,
			executor_label TEXT NOT NULL,
			passed INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			tokens INTEGER NOT NULL,
			error TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_prompt ON runs(prompt_name, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertRunStmt,
			query: `
				INSERT INTO runs (
					id, created_at, prompt_name, total, passed, failed, duration_ms, executor_count
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert run: %w",
		},
		{
			dst: &s.insertResultStmt,
			query: `
				INSERT INTO results (
					execution_id, run_id, case_name, input, executor_label, passed, duration_ms, tokens, error
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert result: %w",
		},
		{
			dst: &s.ingestRunStmt,
			query: `
				INSERT OR IGNORE INTO runs (
					id, created_at, prompt_name, total, passed, failed, duration_ms, executor_count
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare ingest run: %w",
		},
		{
			dst: &s.ingestResultStmt,
			query: `
				INSERT OR IGNORE INTO results (
					execution_id, run_id, case_name, input, executor_label, passed, duration_ms, tokens, error
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare ingest result: %w",
		},
		{
			dst: &s.getRunStmt,
			query: `
				SELECT id, created_at, prompt_name, total, passed, failed, duration_ms, executor_count
				FROM runs WHERE id = ?
			`,
			errFmt: "store: prepare get run: %w",
		},
		{
			dst: &s.listRunsStmt,
			query: `
				SELECT id, created_at, prompt_name, total, passed, failed, duration_ms, executor_count
				FROM runs
				ORDER BY created_at DESC, id ASC
				LIMIT ?
			`,
			errFmt: "store: prepare list runs: %w",
		},
		{
			dst: &s.resultsByRunStmt,
			query: `
				SELECT execution_id, run_id, case_name, input, executor_label, passed, duration_ms, tokens, error
				FROM results
				WHERE run_id = ?
				ORDER BY rowid ASC
			`,
			errFmt: "store: prepare get results: %w",
		},
		{
			dst: &s.promptHistoryStmt,
			query: `
				SELECT id, created_at, prompt_name, total, passed, failed, duration_ms, executor_count
				FROM runs
				WHERE prompt_name = ?
				ORDER BY created_at DESC, id ASC
				LIMIT ?
			`,
			errFmt: "store: prepare prompt history: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertRunStmt,
		s.insertResultStmt,
		s.ingestRunStmt,
		s.ingestResultStmt,
		s.getRunStmt,
		s.listRunsStmt,
		s.resultsByRunStmt,
		s.promptHistoryStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun persists a run summary and its evaluation results in one
// transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if run == nil {
		return errors.New("store: nil run")
	}

	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("store: empty run id")
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	for i, r := range run.Results {
		if r == nil || strings.TrimSpace(r.ExecutionID) == "" {
			return fmt.Errorf("store: results[%d]: empty execution id", i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	runStmt := tx.StmtContext(ctx, s.insertRunStmt)
	defer runStmt.Close()

	_, err = runStmt.ExecContext(
		ctx,
		id,
		createdAt.UTC().UnixMilli(),
		run.PromptName,
		run.Total,
		run.Passed,
		run.Failed,
		run.DurationMs,
		run.ExecutorCount,
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	if len(run.Results) > 0 {
		resultStmt := tx.StmtContext(ctx, s.insertResultStmt)
		defer resultStmt.Close()

		for i, r := range run.Results {
			runID := strings.TrimSpace(r.RunID)
			if runID == "" {
				runID = id
			}
			if _, err := resultStmt.ExecContext(
				ctx,
				r.ExecutionID,
				runID,
				r.CaseName,
				r.Input,
				r.ExecutorLabel,
				r.Passed,
				r.DurationMs,
				r.Tokens,
				r.Error,
			); err != nil {
				return fmt.Errorf("store: insert results[%d]: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run: %w", err)
	}
	return nil
}

// IngestBatch stores submitted records, silently skipping IDs that are
// already present so redelivered batches stay idempotent.
func (s *SQLiteStore) IngestBatch(ctx context.Context, runs []*RunRecord, results []*ResultRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if len(runs) == 0 && len(results) == 0 {
		return nil
	}
	for i, run := range runs {
		if run == nil || strings.TrimSpace(run.ID) == "" {
			return fmt.Errorf("store: ingest runs[%d]: empty id", i)
		}
	}
	for i, r := range results {
		if r == nil || strings.TrimSpace(r.ExecutionID) == "" {
			return fmt.Errorf("store: ingest results[%d]: empty execution id", i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin ingest tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if len(runs) > 0 {
		runStmt := tx.StmtContext(ctx, s.ingestRunStmt)
		defer runStmt.Close()

		for i, run := range runs {
			createdAt := run.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			if _, err := runStmt.ExecContext(
				ctx,
				strings.TrimSpace(run.ID),
				createdAt.UTC().UnixMilli(),
				run.PromptName,
				run.Total,
				run.Passed,
				run.Failed,
				run.DurationMs,
				run.ExecutorCount,
			); err != nil {
				return fmt.Errorf("store: ingest runs[%d]: %w", i, err)
			}
		}
	}

	if len(results) > 0 {
		resultStmt := tx.StmtContext(ctx, s.ingestResultStmt)
		defer resultStmt.Close()

		for i, r := range results {
			if _, err := resultStmt.ExecContext(
				ctx,
				r.ExecutionID,
				r.RunID,
				r.CaseName,
				r.Input,
				r.ExecutorLabel,
				r.Passed,
				r.DurationMs,
				r.Tokens,
				r.Error,
			); err != nil {
				return fmt.Errorf("store: ingest results[%d]: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit ingest: %w", err)
	}
	return nil
}

// GetRun loads a run summary by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty run id")
	}

	row := s.getRunStmt.QueryRowContext(ctx, id)
	run, err := scanRun(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.listRunsStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()
	return scanRunRows(rows)
}

// GetRunResults lists the evaluation results for a run in insertion
// order.
func (s *SQLiteStore) GetRunResults(ctx context.Context, runID string) ([]*ResultRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("store: empty run id")
	}

	rows, err := s.resultsByRunStmt.QueryContext(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get run results: %w", err)
	}
	defer rows.Close()
	return scanResultRows(rows)
}

// GetPromptHistory returns recent runs for a prompt, newest first.
func (s *SQLiteStore) GetPromptHistory(ctx context.Context, promptName string, limit int) ([]*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	promptName = strings.TrimSpace(promptName)
	if promptName == "" {
		return nil, errors.New("store: empty prompt name")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.promptHistoryStmt.QueryContext(ctx, promptName, limit)
	if err != nil {
		return nil, fmt.Errorf("store: prompt history: %w", err)
	}
	defer rows.Close()
	return scanRunRows(rows)
}

func scanRun(scan func(dest ...any) error) (*RunRecord, error) {
	var (
		id            string
		createdAtMS   int64
		promptName    string
		total         int
		passed        int
		failed        int
		durationMS    int64
		executorCount int
	)
	if err := scan(&id, &createdAtMS, &promptName, &total, &passed, &failed, &durationMS, &executorCount); err != nil {
		return nil, err
	}
	return &RunRecord{
		ID:            id,
		CreatedAt:     time.UnixMilli(createdAtMS).UTC(),
		PromptName:    promptName,
		Total:         total,
		Passed:        passed,
		Failed:        failed,
		DurationMs:    durationMS,
		ExecutorCount: executorCount,
	}, nil
}

func scanRunRows(rows *sql.Rows) ([]*RunRecord, error) {
	var out []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

func scanResultRows(rows *sql.Rows) ([]*ResultRecord, error) {
	var out []*ResultRecord
	for rows.Next() {
		var (
			executionID   string
			runID         string
			caseName      string
			input         string
			executorLabel string
			passed        bool
			durationMS    int64
			tokens        int
			errMsg        string
		)
		if err := rows.Scan(
			&executionID,
			&runID,
			&caseName,
			&input,
			&executorLabel,
			&passed,
			&durationMS,
			&tokens,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("store: scan result: %w", err)
		}
		out = append(out, &ResultRecord{
			ExecutionID:   executionID,
			RunID:         runID,
			CaseName:      caseName,
			Input:         input,
			ExecutorLabel: executorLabel,
			Passed:        passed,
			DurationMs:    durationMS,
			Tokens:        tokens,
			Error:         errMsg,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan result rows: %w", err)
	}
	return out, nil
}
