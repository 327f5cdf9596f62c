// Package testutil provides shared test helpers for notes roots and catalogues.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/tgvault/internal/index"
	"github.com/starford/tgvault/internal/storage"
)

// TestDB opens a catalogue in a temporary directory, closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary notes root with its assets directory.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}
