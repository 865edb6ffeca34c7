package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/leasescan/leasescan/pkg/fingerprint"
	"github.com/leasescan/leasescan/pkg/queue"
)

// DB persists queue snapshots and quick-check hashes in a single SQLite
// file. Queue rows are partitioned by provider so each provider's snapshot
// can be replaced or dropped independently.
type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS queue_items (
  id            INTEGER PRIMARY KEY,
  provider      TEXT NOT NULL,
  unique_key    TEXT NOT NULL,
  fingerprint   TEXT NOT NULL,
  vehicle_data  TEXT,
  priority      INTEGER NOT NULL,
  status        TEXT NOT NULL CHECK (status IN ('pending','in_progress','completed','failed')),
  added_at      TEXT NOT NULL,
  started_at    TEXT,
  completed_at  TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  max_attempts  INTEGER NOT NULL DEFAULT 3,
  last_error    TEXT,
  reason        TEXT,
  UNIQUE(provider, unique_key)
);
CREATE INDEX IF NOT EXISTS idx_queue_provider_status ON queue_items(provider, status);
CREATE TABLE IF NOT EXISTS quick_hashes (
  provider   TEXT NOT NULL,
  brand      TEXT NOT NULL,
  model      TEXT NOT NULL,
  hash       TEXT NOT NULL,
  checked_at TEXT NOT NULL,
  PRIMARY KEY (provider, brand, model)
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveProvider atomically replaces the persisted snapshot for one provider
// with the given live items.
func (d *DB) SaveProvider(ctx context.Context, provider string, items []*queue.Item) error {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM queue_items WHERE provider = ?`, provider); err != nil {
		return err
	}

	for _, it := range items {
		var fpJSON, vdJSON []byte
		fpJSON, err = json.Marshal(it.Fingerprint)
		if err != nil {
			return fmt.Errorf("encoding fingerprint for %s: %w", it.UniqueKey(), err)
		}
		vdJSON, err = json.Marshal(it.VehicleData)
		if err != nil {
			return fmt.Errorf("encoding vehicle data for %s: %w", it.UniqueKey(), err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO queue_items(
  provider, unique_key, fingerprint, vehicle_data, priority, status,
  added_at, started_at, completed_at, attempt_count, max_attempts, last_error, reason
) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			provider, it.UniqueKey(), string(fpJSON), string(vdJSON), int(it.Priority), string(it.Status),
			formatTime(it.AddedAt), formatTimePtr(it.StartedAt), formatTimePtr(it.CompletedAt),
			it.AttemptCount, it.MaxAttempts, nullIfEmpty(it.LastError), nullIfEmpty(it.Reason))
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// LoadActive returns every persisted item still awaiting work, i.e. pending
// and in_progress ones. Failed items stay on disk for inspection but are not
// restored into a live queue; completed items are never persisted.
func (d *DB) LoadActive(ctx context.Context) ([]*queue.Item, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT
  fingerprint, vehicle_data, priority, status, added_at, started_at, completed_at,
  attempt_count, max_attempts, last_error, reason
FROM queue_items WHERE status IN ('pending','in_progress')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*queue.Item
	for rows.Next() {
		var (
			fpJSON, vdJSON         string
			priority               int
			status                 string
			addedAt                string
			startedAt, completedAt sql.NullString
			attemptCount, maxAtt   int
			lastError, reasonNS    sql.NullString
		)
		if err := rows.Scan(&fpJSON, &vdJSON, &priority, &status, &addedAt, &startedAt, &completedAt,
			&attemptCount, &maxAtt, &lastError, &reasonNS); err != nil {
			return nil, err
		}

		var fp fingerprint.Fingerprint
		if err := json.Unmarshal([]byte(fpJSON), &fp); err != nil {
			return nil, fmt.Errorf("decoding persisted fingerprint: %w", err)
		}
		var vd map[string]any
		if vdJSON != "" {
			if err := json.Unmarshal([]byte(vdJSON), &vd); err != nil {
				return nil, fmt.Errorf("decoding persisted vehicle data: %w", err)
			}
		}

		out = append(out, &queue.Item{
			Fingerprint:  fp,
			VehicleData:  vd,
			Priority:     queue.Priority(priority),
			Status:       queue.Status(status),
			AddedAt:      parseTime(addedAt),
			StartedAt:    parseTimePtr(startedAt),
			CompletedAt:  parseTimePtr(completedAt),
			AttemptCount: attemptCount,
			MaxAttempts:  maxAtt,
			LastError:    lastError.String,
			Reason:       reasonNS.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProvider drops the persisted snapshot for one provider.
func (d *DB) DeleteProvider(ctx context.Context, provider string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM queue_items WHERE provider = ?`, provider)
	return err
}

// DeleteAll drops every persisted queue snapshot.
func (d *DB) DeleteAll(ctx context.Context) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM queue_items`)
	return err
}

// QuickHash returns the stored quick-check hash for a model page, or "" when
// none was recorded yet.
func (d *DB) QuickHash(ctx context.Context, provider, brand, model string) (string, error) {
	var hash string
	err := d.sql.QueryRowContext(ctx,
		`SELECT hash FROM quick_hashes WHERE provider = ? AND brand = ? AND model = ?`,
		provider, brand, model).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// SaveQuickHash upserts the quick-check hash for a model page.
func (d *DB) SaveQuickHash(ctx context.Context, provider, brand, model, hash string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO quick_hashes(provider, brand, model, hash, checked_at)
VALUES(?,?,?,?,?)
ON CONFLICT(provider, brand, model) DO UPDATE SET hash = excluded.hash, checked_at = excluded.checked_at`,
		provider, brand, model, hash, formatTime(time.Now()))
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// Older snapshots used the SQLite CURRENT_TIMESTAMP format.
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
