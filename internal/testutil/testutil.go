// Package testutil provides shared test helpers for setting up note directories and ledgers.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/skilltally/internal/ledger"
	"github.com/starford/skilltally/internal/storage"
)

// TestLedger creates a temporary SQLite ledger that is automatically cleaned up.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "skilltally-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestNotes creates a temporary notes directory holding files and returns
// it with a storage provider rooted there.
func TestNotes(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		WriteNote(t, dir, name, content)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteNote writes one file below dir.
func WriteNote(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ReadNote returns the content of a file below dir.
func ReadNote(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
