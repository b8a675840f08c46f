// Package index provides the SQLite-backed full-text engine with optional FTS5 search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	title    TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL DEFAULT '',
	content  TEXT NOT NULL DEFAULT '',
	tags     TEXT NOT NULL DEFAULT '[]'
);
`

// DB wraps a sql.DB with engine operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	return setup(conn)
}

// OpenMemory opens a private in-memory database. The pool is pinned to one
// connection because every :memory: connection is a separate database.
func OpenMemory() (*DB, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("index: open memory db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	return setup(conn)
}

func setup(conn *sql.DB) (*DB, error) {
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) reset() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM documents`); err != nil {
		return fmt.Errorf("index: reset: %w", err)
	}
	if err := ftsReset(tx); err != nil {
		return err
	}
	return tx.Commit()
}
