package events

import (
	"context"
	"database/sql"
	"fmt"
)

// Record is a journal row.
type Record struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	UserName   string `json:"user_name"`
	Action     string `json:"action"`
	Details    string `json:"details"`
	RecordedAt string `json:"recorded_at"`
}

type Reader struct {
	DB *sql.DB
}

// Tail returns the n most recent entries, newest first, optionally filtered by
// action. n <= 0 defaults to 20.
func (r Reader) Tail(ctx context.Context, n int, action string) ([]Record, error) {
	if n <= 0 {
		n = 20
	}
	q := `SELECT id, ts, user_name, action, details, recorded_at FROM activity_log`
	args := []any{}
	if action != "" {
		q += ` WHERE action=?`
		args = append(args, action)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, n)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal tail: %w", err)
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.UserName, &rec.Action, &rec.Details, &rec.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of journaled entries.
func (r Reader) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}
