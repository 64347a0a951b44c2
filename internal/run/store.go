// Package run drives a whole experiment run: the append-only record log
// that makes runs resumable, the on-disk artifact layout, and the worker
// pool that moves each item through gateway, sandbox and persistence.
package run

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"paylab/internal/experiment"
	"paylab/internal/logging"
)

// RunRecord is one append-only entry in the run log. A work item may have
// many records across runs; only the latest per (item_key, fingerprint)
// decides whether the item is already done.
type RunRecord struct {
	RunID       string
	ItemKey     string
	Fingerprint string
	Provider    string
	Model       string
	Variant     string
	Method      string
	Status      string
	Attempts    int
	Detail      string
	TokensUsed  int
	LatencyMS   int64
	CreatedAt   time.Time
}

// Store is the sqlite-backed run log. The connection pool is pinned to a
// single connection: sqlite has one writer anyway, and a single connection
// keeps WAL checkpointing predictable.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS run_records (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	item_key     TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	provider     TEXT NOT NULL,
	model        TEXT NOT NULL,
	variant      TEXT NOT NULL,
	method       TEXT NOT NULL,
	status       TEXT NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 0,
	detail       TEXT NOT NULL DEFAULT '',
	tokens_used  INTEGER NOT NULL DEFAULT 0,
	latency_ms   INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_run_records_identity ON run_records(item_key, fingerprint, id);
CREATE INDEX IF NOT EXISTS idx_run_records_run ON run_records(run_id);
`

// OpenStore opens (or creates) the run log at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating run log directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("setting busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("setting journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("setting synchronous=NORMAL: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating run log schema: %w", err)
	}
	logging.Store("run log open at %s", path)
	return &Store{db: db, path: path}, nil
}

// Append writes one record to the log.
func (s *Store) Append(rec *RunRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO run_records
			(run_id, item_key, fingerprint, provider, model, variant, method,
			 status, attempts, detail, tokens_used, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.ItemKey, rec.Fingerprint, rec.Provider, rec.Model,
		rec.Variant, rec.Method, rec.Status, rec.Attempts, rec.Detail,
		rec.TokensUsed, rec.LatencyMS,
	)
	if err != nil {
		logging.StoreError("appending record for %s: %v", rec.ItemKey, err)
		return fmt.Errorf("appending run record: %w", err)
	}
	logging.StoreDebug("recorded %s status=%s attempts=%d", rec.ItemKey, rec.Status, rec.Attempts)
	return nil
}

// Completed reports whether the latest record for the item identity is a
// success. The coordinator skips completed items, which is what makes an
// interrupted run re-runnable without repeating provider calls.
func (s *Store) Completed(itemKey, fingerprint string) (bool, error) {
	var status string
	err := s.db.QueryRow(`
		SELECT status FROM run_records
		WHERE item_key = ? AND fingerprint = ?
		ORDER BY id DESC LIMIT 1`,
		itemKey, fingerprint,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking completion for %s: %w", itemKey, err)
	}
	return status == string(experiment.StatusOK), nil
}

// Summary returns status counts for one run.
func (s *Store) Summary(runID string) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT status, COUNT(*) FROM run_records WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("summarizing run %s: %w", runID, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Records returns every record of one run in append order.
func (s *Store) Records(runID string) ([]RunRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, item_key, fingerprint, provider, model, variant, method,
		       status, attempts, detail, tokens_used, latency_ms, created_at
		FROM run_records WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing records for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.RunID, &rec.ItemKey, &rec.Fingerprint,
			&rec.Provider, &rec.Model, &rec.Variant, &rec.Method,
			&rec.Status, &rec.Attempts, &rec.Detail, &rec.TokensUsed,
			&rec.LatencyMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
