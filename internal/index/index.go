package index

// Engine is the full-text query capability used by the indexing worker.
// Consumers depend on this interface rather than on *DB so the engine can be
// swapped or faked in tests.
type Engine interface {
	AddDocument(doc Document) error
	RemoveDocument(id string) error
	Search(query string, limit int) ([]Result, error)
	Close() error
}

// Factory creates a fresh engine. Each worker owns the engine it creates.
type Factory func() (Engine, error)

// Verify *DB satisfies Engine at compile time.
var _ Engine = (*DB)(nil)

// MemoryFactory returns a Factory producing private in-memory engines.
func MemoryFactory() Factory {
	return func() (Engine, error) {
		return OpenMemory()
	}
}

// FileFactory returns a Factory backed by the database file at path.
// The database is recreated empty on every call since the worker repopulates it.
func FileFactory(path string) Factory {
	return func() (Engine, error) {
		db, err := Open(path)
		if err != nil {
			return nil, err
		}
		if err := db.reset(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}
}
