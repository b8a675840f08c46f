package index

import (
	"encoding/json"
	"fmt"
)

// Document is one searchable note.
type Document struct {
	ID       string
	Title    string
	Filename string
	Content  string
	Tags     []string
}

// Result represents one search hit. Content is returned raw so callers can
// build their own snippet.
type Result struct {
	ID       string
	Title    string
	Filename string
	Content  string
}

// AddDocument inserts or replaces a document and its FTS entry within a transaction.
func (db *DB) AddDocument(doc Document) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	_, err = tx.Exec(`
		INSERT INTO documents (id, title, filename, content, tags)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title    = excluded.title,
			filename = excluded.filename,
			content  = excluded.content,
			tags     = excluded.tags
	`, doc.ID, doc.Title, doc.Filename, doc.Content, string(tagsJSON))
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, doc); err != nil {
		return err
	}

	return tx.Commit()
}

// RemoveDocument deletes a document and its FTS entry.
func (db *DB) RemoveDocument(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}

	return tx.Commit()
}

// Count returns the number of stored documents.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}
