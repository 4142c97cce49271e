package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry kinds.
const (
	KindDoor         = "door"
	KindPulse        = "pulse"
	KindConnectivity = "connectivity"
)

// List paging bounds.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Schema holds the journal's migration steps in order.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS journal (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		subject    TEXT NOT NULL,
		value      TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_created ON journal (created_at)`,
}

// Entry is one journal record. Value holds the new door state, the pulse
// outcome, or the connectivity state name.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter selects entries for List.
type Filter struct {
	Kind    string    // optional
	Subject string    // optional
	Since   time.Time // optional, inclusive
	Limit   int       // default 50, max 200
	Offset  int
}

// ListResult is one page of entries, most recent first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Store reads and writes journal entries.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore returns a store over db. The schema must already be applied.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record inserts e, filling ID and CreatedAt when empty.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.Kind == "" || e.Subject == "" {
		return fmt.Errorf("recording journal entry: kind and subject are required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal (id, kind, subject, value, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Subject, e.Value, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns entries matching filter, most recent first.
func (s *Store) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Subject != "" {
		conditions = append(conditions, "subject = ?")
		args = append(args, filter.Subject)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM journal " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := "SELECT id, kind, subject, value, created_at FROM journal " + where + //nolint:gosec // WHERE built from parameterised conditions
		" ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Subject, &e.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// Prune deletes entries created before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	return n, nil
}
