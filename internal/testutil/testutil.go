// Package testutil provides shared test helpers for setting up vaults and sessions.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/loader"
	"github.com/starford/notegraph/internal/session"
	"github.com/starford/notegraph/internal/storage"
)

// QuietLogger discards all output.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// WriteNote writes a vault-relative file, creating parent directories.
func WriteNote(t *testing.T, vaultDir, name, content string) {
	t.Helper()
	p := filepath.Join(vaultDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestVault creates a temporary vault directory holding files.
func TestVault(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	for name, content := range files {
		WriteNote(t, vaultDir, name, content)
	}
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestSession opens a session over a fresh vault and waits for the full
// index to complete. The session is closed when the test ends.
func TestSession(t *testing.T, files map[string]string) (*session.Session, string) {
	t.Helper()
	vaultDir, store := TestVault(t, files)
	s := session.New(session.Options{
		VaultPath: vaultDir,
		CacheDir:  ".notegraph",
		Corpus:    store,
		Reader:    loader.New(store, loader.WithLogger(QuietLogger())),
		Engine:    index.MemoryFactory(),
		Debounce:  20 * time.Millisecond,
		Logger:    QuietLogger(),
	})
	t.Cleanup(s.Close)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("open session: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !s.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("session not ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s, vaultDir
}
