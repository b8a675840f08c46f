package index

import (
	"os"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
}

func TestAddDocumentUpserts(t *testing.T) {
	db := testDB(t)
	_ = db.AddDocument(Document{ID: "a.md", Title: "Old", Filename: "a.md", Content: "old body"})
	if err := db.AddDocument(Document{ID: "a.md", Title: "New", Filename: "a.md", Content: "new body", Tags: []string{"x"}}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	n, err := db.Count()
	if err != nil || n != 1 {
		t.Fatalf("count = %d, err = %v", n, err)
	}
	results, _ := db.Search("new", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("results = %+v", results)
	}
}

func TestRemoveDocument(t *testing.T) {
	db := testDB(t)
	_ = db.AddDocument(Document{ID: "gone.md", Filename: "gone.md", Content: "vanishing content"})
	if err := db.RemoveDocument("gone.md"); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	results, _ := db.Search("vanishing", 10)
	if len(results) != 0 {
		t.Errorf("removed document still found: %+v", results)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.AddDocument(Document{ID: "s.md", Title: "Search Me", Filename: "s.md", Content: "uniqueword appears here"})
	_ = db.AddDocument(Document{ID: "o.md", Title: "Other", Filename: "o.md", Content: "nothing to see"})

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "s.md" || results[0].Content != "uniqueword appears here" {
		t.Errorf("search results = %+v, want 1 hit for s.md", results)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	db := testDB(t)
	_ = db.AddDocument(Document{ID: "s.md", Content: "text"})
	results, err := db.Search("   ", 10)
	if err != nil || len(results) != 0 {
		t.Errorf("results = %+v, err = %v", results, err)
	}
}

func TestFileFactoryStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.db")
	factory := FileFactory(path)

	e, err := factory()
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	_ = e.AddDocument(Document{ID: "a.md", Content: "persisted"})
	e.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	e, err = factory()
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer e.Close()
	results, _ := e.Search("persisted", 10)
	if len(results) != 0 {
		t.Errorf("expected a fresh engine, got %+v", results)
	}
}
