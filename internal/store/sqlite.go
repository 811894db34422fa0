package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seantiz/taskroute/internal/model"

	_ "modernc.org/sqlite"
)

const createWorkflowsTable = `
CREATE TABLE IF NOT EXISTS workflows (
    id                   TEXT PRIMARY KEY,
    title                TEXT NOT NULL,
    description          TEXT NOT NULL,
    status               TEXT NOT NULL,
    level                TEXT NOT NULL,
    score                REAL NOT NULL,
    complexity           TEXT NOT NULL,
    total_progress       REAL NOT NULL,
    estimated_cost       REAL NOT NULL,
    total_cost           REAL NOT NULL,
    duration_s           REAL,
    created_at           DATETIME NOT NULL,
    estimated_completion DATETIME NOT NULL,
    actual_completion    DATETIME
)`

const createStepsTable = `
CREATE TABLE IF NOT EXISTS steps (
    workflow_id  TEXT NOT NULL REFERENCES workflows(id),
    seq          INTEGER NOT NULL,
    id           TEXT NOT NULL,
    name         TEXT NOT NULL,
    description  TEXT NOT NULL,
    platform     TEXT NOT NULL,
    status       TEXT NOT NULL,
    progress     INTEGER NOT NULL,
    dependencies TEXT NOT NULL,
    start_time   DATETIME,
    end_time     DATETIME,
    duration_s   REAL,
    cost         REAL,
    output       TEXT NOT NULL,
    PRIMARY KEY (workflow_id, seq)
)`

const workflowColumns = `id, title, description, status, complexity, total_progress,
	estimated_cost, total_cost, created_at, estimated_completion, actual_completion`

// ErrNotFound is returned when a workflow is not in the history.
var ErrNotFound = errors.New("workflow not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each :memory: connection is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for name, ddl := range map[string]string{"workflows": createWorkflowsTable, "steps": createStepsTable} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("create %s table: %w", name, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveWorkflow inserts a workflow and its steps in one transaction.
func (s *SQLiteStore) SaveWorkflow(ctx context.Context, w *model.WorkflowExecution) error {
	complexity, err := json.Marshal(w.Complexity)
	if err != nil {
		return fmt.Errorf("encode complexity: %w", err)
	}

	var durationS *float64
	if w.ActualCompletion != nil {
		d := w.ActualCompletion.Sub(w.CreatedAt).Seconds()
		durationS = &d
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflows (
			id, title, description, status, level, score, complexity,
			total_progress, estimated_cost, total_cost, duration_s,
			created_at, estimated_completion, actual_completion
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Title, w.Description, w.Status, w.Complexity.Level, w.Complexity.Score, string(complexity),
		w.TotalProgress, w.EstimatedCost, w.TotalCost, durationS,
		w.CreatedAt.UTC(), w.EstimatedCompletion.UTC(), utcPtr(w.ActualCompletion),
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("insert workflow %s: %w", w.ID, model.ErrDuplicateID)
		}
		return fmt.Errorf("insert workflow: %w", err)
	}

	for seq, st := range w.Steps {
		deps, err := json.Marshal(st.Dependencies)
		if err != nil {
			return fmt.Errorf("encode dependencies: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO steps (
				workflow_id, seq, id, name, description, platform, status, progress,
				dependencies, start_time, end_time, duration_s, cost, output
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.ID, seq, st.ID, st.Name, st.Description, st.Platform, st.Status, st.Progress,
			string(deps), utcPtr(st.StartTime), utcPtr(st.EndTime), st.DurationS, st.Cost, st.Output,
		)
		if err != nil {
			return fmt.Errorf("insert step %s: %w", st.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow and its steps by ID.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, id string) (*model.WorkflowExecution, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	w, err := scanWorkflow(tx.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}

	if w.Steps, err = loadSteps(ctx, tx, w.ID); err != nil {
		return nil, err
	}
	return w, nil
}

// ListWorkflows returns a page of workflows ordered newest first, along with
// the total number of workflows in the history.
func (s *SQLiteStore) ListWorkflows(ctx context.Context, limit, offset int) ([]*model.WorkflowExecution, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count workflows: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list workflows: %w", err)
	}

	var workflows []*model.WorkflowExecution
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("iterate workflows: %w", err)
	}
	rows.Close()

	for _, w := range workflows {
		if w.Steps, err = loadSteps(ctx, tx, w.ID); err != nil {
			return nil, 0, err
		}
	}

	return workflows, total, nil
}

// GetWorkflowStats returns aggregate statistics across the history.
func (s *SQLiteStore) GetWorkflowStats(ctx context.Context) (*WorkflowStats, error) {
	stats := &WorkflowStats{
		CountByStatus: make(map[string]int),
		CountByLevel:  make(map[string]int),
	}

	var avg, cost sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(duration_s), SUM(total_cost) FROM workflows",
	).Scan(&stats.Total, &avg, &cost)
	if err != nil {
		return nil, fmt.Errorf("aggregate workflows: %w", err)
	}
	stats.AvgDurationS = avg.Float64
	stats.TotalCost = cost.Float64

	for column, counts := range map[string]map[string]int{
		"status": stats.CountByStatus,
		"level":  stats.CountByLevel,
	} {
		if err := s.countBy(ctx, column, counts); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (s *SQLiteStore) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM workflows GROUP BY "+column,
	)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*model.WorkflowExecution, error) {
	w := &model.WorkflowExecution{}
	var complexity string
	if err := row.Scan(
		&w.ID, &w.Title, &w.Description, &w.Status, &complexity, &w.TotalProgress,
		&w.EstimatedCost, &w.TotalCost, &w.CreatedAt, &w.EstimatedCompletion, &w.ActualCompletion,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(complexity), &w.Complexity); err != nil {
		return nil, fmt.Errorf("decode complexity: %w", err)
	}
	w.CostSettled = model.IsTerminal(w.Status)
	return w, nil
}

func loadSteps(ctx context.Context, tx *sql.Tx, workflowID string) ([]model.ExecutionStep, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, description, platform, status, progress, dependencies,
			start_time, end_time, duration_s, cost, output
		FROM steps WHERE workflow_id = ? ORDER BY seq`, workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	steps := []model.ExecutionStep{}
	for rows.Next() {
		var st model.ExecutionStep
		var deps string
		if err := rows.Scan(
			&st.ID, &st.Name, &st.Description, &st.Platform, &st.Status, &st.Progress, &deps,
			&st.StartTime, &st.EndTime, &st.DurationS, &st.Cost, &st.Output,
		); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(deps), &st.Dependencies); err != nil {
			return nil, fmt.Errorf("decode dependencies: %w", err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func isConstraintError(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY")
}
