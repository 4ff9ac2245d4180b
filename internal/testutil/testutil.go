// Package testutil provides shared test helpers for setting up stores and photo directories.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/geocam/internal/kv"
	"github.com/starford/geocam/internal/storage"
)

// TestKV creates a temporary SQLite key-value store that is automatically cleaned up.
func TestKV(t *testing.T) *kv.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "geocam-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := kv.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestFiles creates a temporary data directory with a storage.Provider.
func TestFiles(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, files
}

// JPEG is a minimal byte sequence recognised as image/jpeg.
var JPEG = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")

// PNG is a minimal byte sequence recognised as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
