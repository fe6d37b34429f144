// Package sqlite provides a SQLite-backed auditlog.Repository.
//
// WAL mode is enabled on Open so the worker can append while an operator
// queries the journal.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jcmexdev/order-pipeline/internal/order-processor/auditlog"

	// Pure-Go driver, registered as "sqlite"; no CGO needed in the image.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fulfillment_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Not unique: a redelivered message adds another row.
    order_id     TEXT NOT NULL,

    decision     TEXT NOT NULL,
    from_status  TEXT NOT NULL DEFAULT '',
    to_status    TEXT NOT NULL DEFAULT '',
    error        TEXT,

    trace_id     TEXT NOT NULL DEFAULT '',
    span_id      TEXT NOT NULL DEFAULT '',

    -- RFC3339 with fixed-width nanoseconds so text order is time order.
    recorded_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fulfillment_log_order_id ON fulfillment_log(order_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_fulfillment_log_trace_id ON fulfillment_log(trace_id);
`

// Repository is the SQLite implementation of auditlog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, creating its directory if
// needed, and applies the schema.
//
//	repo, err := sqlite.Open("./data/fulfillment.db")
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir for %q: %w", path, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *auditlog.Entry) error {
	const q = `
		INSERT INTO fulfillment_log
			(order_id, decision, from_status, to_status, error, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.OrderID,
		entry.Decision,
		entry.FromStatus,
		entry.ToStatus,
		nullableString(entry.Error),
		entry.TraceID,
		entry.SpanID,
		formatTime(entry.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save fulfillment log for %q: %w", entry.OrderID, err)
	}
	return nil
}

// History returns every entry for orderID, oldest first.
func (r *Repository) History(ctx context.Context, orderID string) ([]*auditlog.Entry, error) {
	const q = `
		SELECT order_id, decision, from_status, to_status, COALESCE(error, ''),
		       trace_id, span_id, recorded_at
		FROM   fulfillment_log
		WHERE  order_id = ?
		ORDER  BY recorded_at, id`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: history for %q: %w", orderID, err)
	}
	defer rows.Close()

	var out []*auditlog.Entry
	for rows.Next() {
		var (
			e          auditlog.Entry
			recordedAt string
		)
		if err := rows.Scan(&e.OrderID, &e.Decision, &e.FromStatus, &e.ToStatus, &e.Error,
			&e.TraceID, &e.SpanID, &recordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan history for %q: %w", orderID, err)
		}
		if e.RecordedAt, err = parseRFC3339(recordedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

// nullableString stores NULL instead of an empty error text.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ auditlog.Repository = (*Repository)(nil)
