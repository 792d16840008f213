package quarantine

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// LedgerFile is the ledger's file name inside the quarantine directory.
const LedgerFile = "quarantine.db"

// Entry is one recorded move.
type Entry struct {
	ID      int64
	RunID   string
	Source  string
	Dest    string
	Reason  string
	MovedAt time.Time
}

// Ledger persists quarantine moves in sqlite.
type Ledger struct {
	db   *sql.DB
	path string
}

// LedgerPath returns the ledger location for a quarantine directory.
func LedgerPath(dir string) string {
	return filepath.Join(dir, LedgerFile)
}

// OpenLedger opens or creates the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS moves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		dest TEXT NOT NULL,
		reason TEXT NOT NULL,
		moved_at TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record appends one move.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.MovedAt.IsZero() {
		e.MovedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO moves (run_id, source, dest, reason, moved_at) VALUES (?, ?, ?, ?, ?)`,
		e.RunID, e.Source, e.Dest, e.Reason, e.MovedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record move: %w", err)
	}
	return nil
}

// List returns every recorded move, oldest first.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, source, dest, reason, moved_at FROM moves ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			movedAt string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Source, &e.Dest, &e.Reason, &movedAt); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, movedAt); parseErr == nil {
			e.MovedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
