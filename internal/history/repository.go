package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doorsync/doorsync-core/internal/door"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Recording sources.
const (
	// SourceStream marks transitions observed on the streaming connection.
	SourceStream = "stream"

	// SourcePoll marks transitions derived from a status poll while the
	// stream was down.
	SourcePoll = "poll"
)

// Entry is one recorded door transition.
type Entry struct {
	ID       int64      `json:"id"`
	Door     door.ID    `json:"door_id"`
	Previous door.State `json:"previous"`
	New      door.State `json:"new"`
	Source   string     `json:"source"`
	At       time.Time  `json:"at"`
}

// Repository persists door transitions to SQLite.
//
// Every observed transition becomes one row; the table is append-only
// except for Prune. Timestamps are stored as RFC3339 UTC strings so rows
// are comparable with plain string ordering.
type Repository struct {
	db *sql.DB
}

// schema creates the transitions table. Executed on every startup;
// idempotent via IF NOT EXISTS.
const schema = `
CREATE TABLE IF NOT EXISTS door_transitions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    door_id    INTEGER NOT NULL,
    prev_state TEXT    NOT NULL,
    new_state  TEXT    NOT NULL,
    source     TEXT    NOT NULL DEFAULT 'stream',
    created_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_door_transitions_door
    ON door_transitions(door_id, created_at);
`

// NewRepository creates a transition repository and ensures the schema
// exists.
//
// Parameters:
//   - ctx: Context for the schema migration
//   - db: Open SQLite connection
//
// Returns:
//   - *Repository: Repository ready for use
//   - error: If the schema cannot be created
func NewRepository(ctx context.Context, db *sql.DB) (*Repository, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating transitions schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// RecordTransition inserts one transition row.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - tr: The observed transition
//   - source: Origin of the observation (SourceStream, SourcePoll)
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *Repository) RecordTransition(ctx context.Context, tr door.Transition, source string) error {
	if source == "" {
		source = SourceStream
	}

	at := tr.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO door_transitions (door_id, prev_state, new_state, source, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		int(tr.Door),
		string(tr.Previous),
		string(tr.New),
		source,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

// Recent returns the newest transitions across all doors, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 500)
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return r.query(ctx,
		`SELECT id, door_id, prev_state, new_state, source, created_at
		 FROM door_transitions
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		clampLimit(limit),
	)
}

// RecentForDoor returns the newest transitions for one door, newest first.
func (r *Repository) RecentForDoor(ctx context.Context, id door.ID, limit int) ([]Entry, error) {
	return r.query(ctx,
		`SELECT id, door_id, prev_state, new_state, source, created_at
		 FROM door_transitions
		 WHERE door_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		int(id),
		clampLimit(limit),
	)
}

// Prune deletes transitions older than the given duration.
//
// Returns the number of rows deleted.
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM door_transitions WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting transitions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

func (r *Repository) query(ctx context.Context, stmt string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var doorID int
		var previous, next, createdAt string

		if err := rows.Scan(&entry.ID, &doorID, &previous, &next, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}

		at, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		entry.Door = door.ID(doorID)
		entry.Previous = door.State(previous)
		entry.New = door.State(next)
		entry.At = at
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return entries, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
