// Package events persists activity-log entries to the SQLite journal. The
// journal is an audit copy; nothing reads it back into the domain store.
package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taskboard/internal/domain"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) now() string {
	if w.Now == nil {
		w.Now = time.Now
	}
	return w.Now().UTC().Format(time.RFC3339)
}

// Append records one activity entry.
func (w Writer) Append(ctx context.Context, e domain.ActivityLogEntry) error {
	ts := e.Timestamp
	if ts == "" {
		ts = w.now()
	}
	_, err := w.DB.ExecContext(ctx, `INSERT INTO activity_log(ts,user_name,action,details,recorded_at) VALUES (?,?,?,?,?)`,
		ts, e.UserName, e.Action, e.Details, w.now())
	if err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

// Cleared records that the in-memory log was emptied. Journal rows are kept.
func (w Writer) Cleared(ctx context.Context, by string, entries int) error {
	_, err := w.DB.ExecContext(ctx, `INSERT INTO activity_clears(cleared_by,cleared_at,entries) VALUES (?,?,?)`,
		by, w.now(), entries)
	if err != nil {
		return fmt.Errorf("journal clear marker: %w", err)
	}
	return nil
}
