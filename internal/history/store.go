// Package history persists finished coordinations and their lifecycle events
// in a local SQLite database so past runs can be listed and inspected.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/coordinator/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrRunNotFound is returned by GetRun for unknown IDs.
var ErrRunNotFound = errors.New("coordination run not found")

// RunSummary is one row of the runs listing.
type RunSummary struct {
	ID                string
	PlanID            string
	PlanFile          string
	TaskID            string
	WorkflowID        string
	CoordinationType  string
	Status            models.ExecutionStatus
	StartedAt         time.Time
	FinishedAt        time.Time
	Elapsed           time.Duration
	TotalCost         float64
	AverageConfidence float64
	Iterations        int
	Converged         bool
}

// Run is a stored coordination with its per-agent results.
type Run struct {
	RunSummary
	Errors       []string
	AgentResults []StoredAgentResult
}

// StoredAgentResult is one persisted agent outcome.
type StoredAgentResult struct {
	models.AgentResult
	Completed bool
}

// StoredEvent is one persisted lifecycle event.
type StoredEvent struct {
	ExecutionID string
	Type        string
	AgentType   string
	TaskID      string
	WorkflowID  string
	Payload     string // JSON
	CreatedAt   time.Time
}

// AgentStats aggregates every stored result for one agent type.
type AgentStats struct {
	AgentType         string
	Invocations       int
	Failures          int
	AverageConfidence float64
	AverageDuration   time.Duration
	TotalCost         float64
}

// SuccessRate returns the share of invocations without an error.
func (s AgentStats) SuccessRate() float64 {
	if s.Invocations == 0 {
		return 0
	}
	return float64(s.Invocations-s.Failures) / float64(s.Invocations)
}

// Store manages the SQLite history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	if dbPath == ":memory:" {
		return openAndInitStore(dbPath)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	return openAndInitStore(dbPath)
}

func openAndInitStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// busy_timeout goes first so the remaining pragmas wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func (s *Store) getSchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	return version, err
}

// RecordResult stores a finished coordination and its agent results in one
// transaction. Recording the same ID twice replaces the earlier row.
func (s *Store) RecordResult(ctx context.Context, result *models.CoordinationResult, planFile string) error {
	if result == nil {
		return errors.New("nil coordination result")
	}
	if result.ID == "" {
		return errors.New("coordination result has no id")
	}

	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Replace semantics: drop earlier agent rows for this run first.
	if _, err := tx.ExecContext(ctx, "DELETE FROM agent_results WHERE run_id = ?", result.ID); err != nil {
		return fmt.Errorf("clear agent results: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO coordination_runs (
			id, plan_id, plan_file, task_id, workflow_id, coordination_type, status,
			started_at, finished_at, elapsed_ms, total_cost, average_confidence,
			iterations, converged, errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.PlanID, planFile, result.TaskID, result.WorkflowID,
		result.CoordinationType, string(result.Status),
		result.StartTime.UTC(), result.EndTime.UTC(), result.Elapsed.Milliseconds(),
		result.TotalCost, result.AverageConfidence,
		result.Iterations, result.Converged, string(errorsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	completed := make(map[string]bool, len(result.CompletedAgents))
	for _, a := range result.CompletedAgents {
		completed[a] = true
	}

	for i, ar := range result.AgentResults {
		data := ar.ResultData
		if data == nil {
			data = map[string]any{}
		}
		dataJSON, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal result data for %s: %w", ar.AgentType, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO agent_results (
				run_id, position, agent_type, confidence, cost_units, duration_ms,
				completed, error, result_data
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.ID, i, ar.AgentType, ar.ConfidenceScore, ar.CostUnits,
			ar.Duration.Milliseconds(), completed[ar.AgentType], ar.Error, string(dataJSON),
		)
		if err != nil {
			return fmt.Errorf("insert agent result %s: %w", ar.AgentType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const runColumns = `id, plan_id, plan_file, task_id, workflow_id, coordination_type, status,
	started_at, finished_at, elapsed_ms, total_cost, average_confidence, iterations, converged`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner, extra ...any) (*RunSummary, error) {
	var (
		r         RunSummary
		status    string
		elapsedMs int64
	)
	dest := []any{
		&r.ID, &r.PlanID, &r.PlanFile, &r.TaskID, &r.WorkflowID, &r.CoordinationType, &status,
		&r.StartedAt, &r.FinishedAt, &elapsedMs, &r.TotalCost, &r.AverageConfidence,
		&r.Iterations, &r.Converged,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	r.Status = models.ExecutionStatus(status)
	r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	return &r, nil
}

// GetRun loads one coordination by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var errorsJSON string
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+", errors FROM coordination_runs WHERE id = ?", id)
	summary, err := scanSummary(row, &errorsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	run := &Run{RunSummary: *summary}
	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_type, confidence, cost_units, duration_ms, completed, error, result_data
		FROM agent_results WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query agent results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ar         StoredAgentResult
			durationMs int64
			dataJSON   string
		)
		if err := rows.Scan(&ar.AgentType, &ar.ConfidenceScore, &ar.CostUnits, &durationMs,
			&ar.Completed, &ar.Error, &dataJSON); err != nil {
			return nil, fmt.Errorf("scan agent result: %w", err)
		}
		ar.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal([]byte(dataJSON), &ar.ResultData); err != nil {
			return nil, fmt.Errorf("decode result data for %s: %w", ar.AgentType, err)
		}
		run.AgentResults = append(run.AgentResults, ar)
	}
	return run, rows.Err()
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	query := "SELECT " + runColumns + " FROM coordination_runs ORDER BY started_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunSummary
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// AgentStats aggregates the stored results of agentType across all runs.
func (s *Store) AgentStats(ctx context.Context, agentType string) (*AgentStats, error) {
	stats := &AgentStats{AgentType: agentType}
	var avgDurationMs float64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(confidence), 0),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(SUM(cost_units), 0)
		FROM agent_results WHERE agent_type = ?`, agentType,
	).Scan(&stats.Invocations, &stats.Failures, &stats.AverageConfidence, &avgDurationMs, &stats.TotalCost)
	if err != nil {
		return nil, fmt.Errorf("query agent stats: %w", err)
	}
	stats.AverageDuration = time.Duration(avgDurationMs * float64(time.Millisecond))
	return stats, nil
}

// RecordEvent appends one lifecycle event. payload is stored as JSON.
func (s *Store) RecordEvent(ctx context.Context, ev StoredEvent) error {
	if ev.Payload == "" {
		ev.Payload = "{}"
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coordination_events (execution_id, event_type, agent_type, task_id, workflow_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ExecutionID, ev.Type, ev.AgentType, ev.TaskID, ev.WorkflowID, ev.Payload, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Events returns the stored events of one execution in arrival order.
func (s *Store) Events(ctx context.Context, executionID string) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, event_type, agent_type, task_id, workflow_id, payload, created_at
		FROM coordination_events WHERE execution_id = ? ORDER BY id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		if err := rows.Scan(&ev.ExecutionID, &ev.Type, &ev.AgentType, &ev.TaskID, &ev.WorkflowID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
