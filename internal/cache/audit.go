package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// AuditLog is a raw-sqlite append-only record of module resolution
// outcomes (uri, final state, error text if any), kept separate from the
// gorm-backed PackageRecord Store. Grounded on internal/db.go's direct
// `database/sql` + `mattn/go-sqlite3` usage and its execWithRetry helper
// ("database is locked" retry loop), since this table — unlike the
// package store — is written on every module resolution and benefits
// from the same write-contention handling the teacher built for its own
// high-frequency stage/apply inserts.
type AuditLog struct {
	db *sql.DB
}

// OpenAuditLog opens (creating if necessary) the sqlite file at path and
// ensures the resolution_log table exists.
func OpenAuditLog(path string) (*AuditLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	if _, err := execWithRetry(db, `CREATE TABLE IF NOT EXISTS resolution_log (
		uri TEXT NOT NULL,
		state TEXT NOT NULL,
		detail TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate audit log: %w", err)
	}
	return &AuditLog{db: db}, nil
}

// Record appends one resolution outcome.
func (a *AuditLog) Record(uri, state, detail string) error {
	_, err := execWithRetry(a.db, `INSERT INTO resolution_log (uri, state, detail) VALUES (?, ?, ?)`, uri, state, detail)
	return err
}

// LastState returns the most recently recorded state for uri, if any.
func (a *AuditLog) LastState(uri string) (string, bool, error) {
	row := a.db.QueryRow(`SELECT state FROM resolution_log WHERE uri = ? ORDER BY rowid DESC LIMIT 1`, uri)
	var state string
	if err := row.Scan(&state); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return state, true, nil
}

func (a *AuditLog) Close() error {
	return a.db.Close()
}

// execWithRetry wraps Exec with retry logic for "database is locked"
// errors, identical in shape to internal/db.go's helper of the same name.
func execWithRetry(db *sql.DB, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	var err error
	const maxRetries = 5
	for range maxRetries {
		res, err = db.Exec(query, args...)
		if err == nil {
			return res, nil
		}
		if strings.Contains(err.Error(), "database is locked") {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("execWithRetry: database is locked after %d retries: %w", maxRetries, err)
}
