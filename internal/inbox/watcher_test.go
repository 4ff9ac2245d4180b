package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/geocam/internal/models"
	"github.com/starford/geocam/internal/testutil"
)

type fakeImporter struct {
	mu    sync.Mutex
	calls [][]byte
	err   error
}

func (f *fakeImporter) Import(_ context.Context, data []byte) (models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, data)
	if f.err != nil {
		return models.Photo{}, f.err
	}
	return models.Photo{ID: "p" + string(rune('0'+len(f.calls)))}, nil
}

func (f *fakeImporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWatcher(t *testing.T, dir string, imp Importer, opts ...Option) {
	t.Helper()
	opts = append([]Option{WithSettle(20 * time.Millisecond), WithLogger(quietLogger())}, opts...)
	w, err := New(dir, imp, opts...)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestWatcher_ImportsNewFile(t *testing.T) {
	dir := t.TempDir()
	imp := &fakeImporter{}

	var mu sync.Mutex
	var imported []string
	startWatcher(t, dir, imp, WithCallback(func(path string, _ models.Photo) {
		mu.Lock()
		imported = append(imported, filepath.Base(path))
		mu.Unlock()
	}))

	path := filepath.Join(dir, "holiday.jpg")
	if err := os.WriteFile(path, testutil.JPEG, 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return imp.count() == 1 && !exists(path)
	}, "file was not imported and removed")

	mu.Lock()
	defer mu.Unlock()
	if len(imported) != 1 || imported[0] != "holiday.jpg" {
		t.Errorf("callback paths = %v", imported)
	}
}

func TestWatcher_InitialScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.jpeg"} {
		if err := os.WriteFile(filepath.Join(dir, name), testutil.PNG, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	imp := &fakeImporter{}
	startWatcher(t, dir, imp)

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return imp.count() == 2
	}, "pre-existing files were not imported")
}

func TestWatcher_IgnoresNonImages(t *testing.T) {
	dir := t.TempDir()
	imp := &fakeImporter{}
	startWatcher(t, dir, imp)

	notes := filepath.Join(dir, "notes.txt")
	fake := filepath.Join(dir, "fake.jpg")
	_ = os.WriteFile(notes, testutil.JPEG, 0o644)
	_ = os.WriteFile(fake, []byte("definitely not a picture"), 0o644)

	time.Sleep(300 * time.Millisecond)
	if n := imp.count(); n != 0 {
		t.Errorf("importer called %d times", n)
	}
	if !exists(notes) || !exists(fake) {
		t.Error("ignored files were removed")
	}
}

func TestWatcher_FailedImportKeepsFile(t *testing.T) {
	dir := t.TempDir()
	imp := &fakeImporter{err: errors.New("disk full")}
	startWatcher(t, dir, imp)

	path := filepath.Join(dir, "keep.jpg")
	if err := os.WriteFile(path, testutil.JPEG, 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return imp.count() >= 1
	}, "import was not attempted")
	if !exists(path) {
		t.Error("file removed after failed import")
	}
}

func TestNewCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "inbox")
	if _, err := New(dir, &fakeImporter{}); err != nil {
		t.Fatal(err)
	}
	if !exists(dir) {
		t.Error("inbox dir not created")
	}
}
