package journal

import (
	"context"
	"fmt"
	"strings"
)

// Entry is one journaled event.
type Entry struct {
	Seq      int64  `json:"seq"`
	Name     string `json:"name"`
	EntityID string `json:"entity_id,omitempty"`
	Payload  string `json:"payload"` // canonical JSON
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Name     string
	EntityID string
}

// Append inserts an entry.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - a seq already written is
// silently ignored.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events (seq, name, entity_id, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, e.Seq, e.Name, e.EntityID, e.Payload)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// List returns entries matching f, ordered by seq ASC.
// Returns an empty slice (not nil) when nothing matches.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Name != "" {
		where = append(where, "name = ?")
		args = append(args, f.Name)
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}

	query := "SELECT seq, name, entity_id, payload FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Name, &e.EntityID, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// LastSeq returns the highest seq written, or 0 for an empty journal.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := j.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM events").Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}
