// Package storage defines the vault file-system abstraction and the on-disk
// graph cache.
package storage

// Provider is the interface for reading vault notes.
type Provider interface {
	// List returns the slash-separated, vault-relative path of every .md file.
	List() ([]string, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
}
