package actions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// timeLayout is fixed-width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"

	idPrefix = "act-"
)

// Queue defines the persistence operations on the action queue.
type Queue interface {
	Enqueue(ctx context.Context, toolName string) (string, error)
	Get(ctx context.Context, id string) (*Action, error)
	List(ctx context.Context, status Status, limit int) ([]Action, error)
	Complete(ctx context.Context, id string) error
	Counts(ctx context.Context) (Counts, error)
}

// SQLiteQueue implements Queue on the action_queue table.
// It is safe for concurrent use.
type SQLiteQueue struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteQueue creates a queue backed by an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection (see database.Open)
//
// Returns:
//   - *SQLiteQueue: Queue ready for use
func NewSQLiteQueue(db *sql.DB) *SQLiteQueue {
	return &SQLiteQueue{db: db, now: time.Now}
}

// Enqueue stores a pending action for toolName and returns its ID.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - toolName: Name of the tool the executor should run
//
// Returns:
//   - string: Generated action ID ("act-" + UUID)
//   - error: ErrEmptyToolName, or the underlying database error
func (q *SQLiteQueue) Enqueue(ctx context.Context, toolName string) (string, error) {
	if toolName == "" {
		return "", ErrEmptyToolName
	}

	id := idPrefix + uuid.NewString()
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO action_queue (id, tool_name, status, created_at) VALUES (?, ?, ?, ?)",
		id, toolName, string(StatusPending), formatTime(q.now()),
	)
	if err != nil {
		return "", fmt.Errorf("inserting action %s: %w", toolName, err)
	}
	return id, nil
}

// Get returns a single action by ID.
func (q *SQLiteQueue) Get(ctx context.Context, id string) (*Action, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT id, tool_name, status, created_at, completed_at FROM action_queue WHERE id = ?", id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns actions in enqueue order, optionally filtered by status.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - status: Filter; empty returns every status
//   - limit: Maximum entries to return (default 50, max 500)
//
// Returns:
//   - []Action: Oldest first
//   - error: If the query fails
func (q *SQLiteQueue) List(ctx context.Context, status Status, limit int) ([]Action, error) {
	limit = clampLimit(limit)

	query := "SELECT id, tool_name, status, created_at, completed_at FROM action_queue"
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at, rowid LIMIT ?"
	args = append(args, limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	actions := make([]Action, 0)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actions: %w", err)
	}
	return actions, nil
}

// Pending is shorthand for List(ctx, StatusPending, limit).
func (q *SQLiteQueue) Pending(ctx context.Context, limit int) ([]Action, error) {
	return q.List(ctx, StatusPending, limit)
}

// Complete marks a pending action as done.
//
// Returns ErrNotFound for an unknown ID and ErrAlreadyCompleted when the
// action is already done.
func (q *SQLiteQueue) Complete(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE action_queue SET status = ?, completed_at = ? WHERE id = ? AND status = ?",
		string(StatusDone), formatTime(q.now()), id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("completing action %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := q.Get(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyCompleted
}

// Counts returns the number of actions per status.
func (q *SQLiteQueue) Counts(ctx context.Context) (Counts, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM action_queue GROUP BY status")
	if err != nil {
		return Counts{}, fmt.Errorf("counting actions: %w", err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("scanning action count: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			c.Pending = n
		case StatusDone:
			c.Done = n
		}
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("iterating action counts: %w", err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAction(s scanner) (*Action, error) {
	var (
		a           Action
		status      string
		createdAt   string
		completedAt sql.NullString
	)
	if err := s.Scan(&a.ID, &a.ToolName, &status, &createdAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning action: %w", err)
	}
	a.Status = Status(status)

	var err error
	if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for %s: %w", a.ID, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at for %s: %w", a.ID, err)
		}
		a.CompletedAt = &t
	}
	return &a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
