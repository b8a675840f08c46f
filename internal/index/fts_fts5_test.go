//go:build sqlite_fts5

package index

import "testing"

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents_fts`).Scan(&count); err != nil {
		t.Fatalf("documents_fts table missing: %v", err)
	}
}

func TestFTS5_QuotesSyntax(t *testing.T) {
	db := testDB(t)
	_ = db.AddDocument(Document{ID: "q.md", Filename: "q.md", Content: "weird AND syntax"})
	if _, err := db.Search(`"unbalanced AND (`, 10); err != nil {
		t.Fatalf("query syntax leaked into FTS5: %v", err)
	}
}

func TestFTS5_RanksTitleTerms(t *testing.T) {
	db := testDB(t)
	_ = db.AddDocument(Document{ID: "a.md", Title: "Gardening", Filename: "a.md", Content: "tomatoes"})
	_ = db.AddDocument(Document{ID: "b.md", Title: "Other", Filename: "b.md", Content: "gardening tips"})
	results, err := db.Search("gardening", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}
