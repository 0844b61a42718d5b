// Package history keeps a SQLite ledger of task runs and their attempts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/fixloop/internal/models"
)

// TaskRun is one recorded task outcome.
type TaskRun struct {
	ID              int64
	TaskID          string
	Description     string
	State           models.EndState
	AttemptsUsed    int
	GenerationCalls int
	Duration        time.Duration
	ErrorMessage    string
	CodeFile        string
	DesignDoc       string
	Timestamp       time.Time
}

// AttemptRow is one recorded attempt of a task run.
type AttemptRow struct {
	Attempt  int
	Outcome  models.AttemptOutcome
	Feedback string
	Duration time.Duration
}

// Stats counts recorded runs per end state.
type Stats struct {
	Total     int
	Succeeded int
	Exhausted int
	Aborted   int
}

// Store manages the SQLite run ledger
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the database at dbPath and applies migrations.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each new connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
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

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a task result and its attempts, returning the run ID.
func (s *Store) Record(ctx context.Context, result models.TaskResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var errMsg string
	if result.Error != nil {
		errMsg = result.Error.Error()
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO task_runs
		(task_id, description, state, attempts_used, generation_calls, duration_ms, error_message, code_file, design_doc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.Task.ID,
		result.Task.Description,
		string(result.State),
		result.AttemptsUsed(),
		result.GenerationCalls,
		result.Duration.Milliseconds(),
		errMsg,
		result.Artifacts.CodeFile,
		result.Artifacts.DesignDocHTML,
	)
	if err != nil {
		return 0, fmt.Errorf("insert task run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	for _, a := range result.Attempts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO task_attempts
			(run_id, attempt, outcome, feedback, duration_ms) VALUES (?, ?, ?, ?, ?)`,
			runID, a.Number, string(a.Outcome), a.Feedback, a.Duration.Milliseconds(),
		); err != nil {
			return 0, fmt.Errorf("insert attempt %d: %w", a.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit task run: %w", err)
	}
	return runID, nil
}

// List returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]TaskRun, error) {
	query := `SELECT id, task_id, description, state, attempts_used, generation_calls, duration_ms, error_message, code_file, design_doc, timestamp
		FROM task_runs
		ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task runs: %w", err)
	}
	defer rows.Close()

	var runs []TaskRun
	for rows.Next() {
		var run TaskRun
		var state string
		var durationMS sql.NullInt64
		var errMsg, codeFile, designDoc sql.NullString
		if err := rows.Scan(
			&run.ID,
			&run.TaskID,
			&run.Description,
			&state,
			&run.AttemptsUsed,
			&run.GenerationCalls,
			&durationMS,
			&errMsg,
			&codeFile,
			&designDoc,
			&run.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan task run: %w", err)
		}
		run.State = models.EndState(state)
		run.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		run.ErrorMessage = errMsg.String
		run.CodeFile = codeFile.String
		run.DesignDoc = designDoc.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task runs: %w", err)
	}
	return runs, nil
}

// Attempts returns the recorded attempts of a run in order.
func (s *Store) Attempts(ctx context.Context, runID int64) ([]AttemptRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT attempt, outcome, feedback, duration_ms
		FROM task_attempts WHERE run_id = ? ORDER BY attempt`, runID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []AttemptRow
	for rows.Next() {
		var a AttemptRow
		var outcome string
		var feedback sql.NullString
		var durationMS sql.NullInt64
		if err := rows.Scan(&a.Attempt, &outcome, &feedback, &durationMS); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Outcome = models.AttemptOutcome(outcome)
		a.Feedback = feedback.String
		a.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// Stats counts runs per end state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM task_runs GROUP BY state`)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += n
		switch models.EndState(state) {
		case models.StateSucceeded:
			stats.Succeeded = n
		case models.StateExhausted:
			stats.Exhausted = n
		case models.StateAborted:
			stats.Aborted = n
		}
	}
	return stats, rows.Err()
}
