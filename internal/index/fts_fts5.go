//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			id UNINDEXED,
			title,
			content,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, doc Document) error {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE id = ?`, doc.ID)
	_, err := tx.Exec(`INSERT INTO documents_fts (id, title, content, tags) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Content, strings.Join(doc.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`DELETE FROM documents_fts WHERE id = ?`, id)
	return err
}

func ftsReset(tx *sql.Tx) error {
	_, err := tx.Exec(`DELETE FROM documents_fts`)
	return err
}

// matchQuery quotes every term so user input never hits FTS5 query syntax.
func matchQuery(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}

// Search performs an FTS5 full-text search ranked by bm25.
func (db *DB) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	q := matchQuery(query)
	if q == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT d.id, d.title, d.filename, d.content
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.id
		WHERE documents_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Filename, &r.Content); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
