// Package storage provides the local SQLite cache: the last snapshot seen for
// each subscribed store path, and a local copy of the audit log. The remote
// store stays the sole source of truth; everything here is rebuildable.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Cache wraps the SQLite cache database
type Cache struct {
	conn *sql.DB
}

// AuditEntry is a locally mirrored audit log record
type AuditEntry struct {
	ID    int64
	Time  time.Time
	Event string
}

// Open opens or creates the cache database
func Open(path string) (*Cache, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	c := &Cache{conn: conn}
	if err := c.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate cache: %w", err)
	}

	return c, nil
}

// Close closes the database connection
func (c *Cache) Close() error {
	return c.conn.Close()
}

// migrate creates the cache schema
func (c *Cache) migrate() error {
	schema := `
	-- Last snapshot seen per subscribed store path
	CREATE TABLE IF NOT EXISTS snapshots (
		path TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Local mirror of audit log appends made by this client
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time DATETIME NOT NULL,
		event TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_time ON audit_log(time);
	`

	_, err := c.conn.Exec(schema)
	return err
}

// PutSnapshot stores the latest snapshot value for a path
func (c *Cache) PutSnapshot(path string, value []byte) error {
	query := `
		INSERT INTO snapshots (path, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	_, err := c.conn.Exec(query, path, string(value), time.Now())
	return err
}

// GetSnapshot retrieves the last snapshot stored for a path. The second
// return value reports whether one exists.
func (c *Cache) GetSnapshot(path string) ([]byte, bool, error) {
	var value string
	err := c.conn.QueryRow("SELECT value FROM snapshots WHERE path = ?", path).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

// InsertAuditEntry records a locally originated audit log append
func (c *Cache) InsertAuditEntry(t time.Time, event string) error {
	_, err := c.conn.Exec("INSERT INTO audit_log (time, event) VALUES (?, ?)", t, event)
	return err
}

// RecentAuditEntries retrieves the most recent audit entries, newest first
func (c *Cache) RecentAuditEntries(limit int) ([]*AuditEntry, error) {
	rows, err := c.conn.Query(`SELECT id, time, event FROM audit_log ORDER BY time DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		e := &AuditEntry{}
		if err := rows.Scan(&e.ID, &e.Time, &e.Event); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
