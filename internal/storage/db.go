// Package storage persists the per-dialog message log between runs.
// One row per dialog: the key is the dialog id, the value is the serialized
// message array. The chat layer owns the message semantics; this layer only
// guarantees durability and atomic per-dialog replacement.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database holding dialog state.
type DB struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens or creates the database in the given directory.
func Open(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "messages.db")

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode for better concurrency between the store writer and readers
	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dialogs (
			id         TEXT PRIMARY KEY,
			messages   TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create dialogs table: %w", err)
	}

	return &DB{db: db, path: dbPath}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// SaveDialog replaces the stored message array for a dialog.
func (d *DB) SaveDialog(dialogID string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO dialogs (id, messages, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET messages = excluded.messages, updated_at = CURRENT_TIMESTAMP
	`, dialogID, string(payload))
	if err != nil {
		return fmt.Errorf("save dialog %s: %w", dialogID, err)
	}
	return nil
}

// DeleteDialog removes a dialog's stored messages.
func (d *DB) DeleteDialog(dialogID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.Exec(`DELETE FROM dialogs WHERE id = ?`, dialogID); err != nil {
		return fmt.Errorf("delete dialog %s: %w", dialogID, err)
	}
	return nil
}

// LoadDialogs returns every stored dialog keyed by dialog id.
func (d *DB) LoadDialogs() (map[string][]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`SELECT id, messages FROM dialogs`)
	if err != nil {
		return nil, fmt.Errorf("load dialogs: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		out[id] = []byte(payload)
	}
	return out, rows.Err()
}
