package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gopm2/gopm2/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS operations (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    target TEXT,
    pm_id INTEGER,
    success INTEGER NOT NULL,
    error TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    pm_id INTEGER NOT NULL,
    status TEXT NOT NULL,
    cpu REAL NOT NULL DEFAULT 0,
    memory INTEGER NOT NULL DEFAULT 0,
    restarts INTEGER NOT NULL DEFAULT 0,
    recorded_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_operations_created ON operations(created_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name, recorded_at);
`

// Operation is one recorded manager invocation.
type Operation struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	PMID      int       `json:"pmID"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store keeps a local record of issued operations and observed process
// snapshots. It is bookkeeping only: the pm2 daemon never reads it, and
// losing it loses nothing but history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordOperation logs one manager invocation, successful or not.
func (s *Store) RecordOperation(action, target string, pmID int, opErr error) error {
	errText := ""
	if opErr != nil {
		errText = opErr.Error()
	}
	_, err := s.db.Exec(
		`INSERT INTO operations (id, action, target, pm_id, success, error) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), action, target, pmID, opErr == nil, errText)
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

// RecordSnapshots logs the observable state of every listed process.
func (s *Store) RecordSnapshots(procs []types.Process) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot tx: %w", err)
	}
	for i := range procs {
		p := &procs[i]
		if _, err := tx.Exec(
			`INSERT INTO snapshots (name, pm_id, status, cpu, memory, restarts) VALUES (?, ?, ?, ?, ?, ?)`,
			p.Name, p.PMID, string(p.Status), p.Metrics.CPU, p.Metrics.Memory, p.RestartCount); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record snapshot: %w", err)
		}
	}
	return tx.Commit()
}

// RecentOperations returns the most recent operations, newest first.
func (s *Store) RecentOperations(limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, action, target, pm_id, success, error, created_at
         FROM operations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		var createdAt string
		if err := rows.Scan(&op.ID, &op.Action, &op.Target, &op.PMID, &op.Success, &op.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			op.CreatedAt = t
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
