// Package inbox imports images dropped into a watched folder.
package inbox

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/geocam/internal/imagefmt"
	"github.com/starford/geocam/internal/models"
)

// DefaultSettle is how long a file must stay quiet before it is imported.
const DefaultSettle = 500 * time.Millisecond

// Importer commits image bytes as a new photo.
type Importer interface {
	Import(ctx context.Context, data []byte) (models.Photo, error)
}

// ImportCallback is called after a file has been imported and removed.
type ImportCallback func(path string, photo models.Photo)

// Watcher imports images written into dir.
type Watcher struct {
	dir      string
	importer Importer
	settle   time.Duration
	logger   *slog.Logger
	cb       ImportCallback
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.logger = l } }

// WithCallback registers cb.
func WithCallback(cb ImportCallback) Option { return func(w *Watcher) { w.cb = cb } }

// New creates a watcher for dir. The directory is created if missing.
func New(dir string, importer Importer, opts ...Option) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("inbox: create dir: %w", err)
	}
	w := &Watcher{
		dir:      dir,
		importer: importer,
		settle:   DefaultSettle,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches the folder until ctx is cancelled. Files already present are
// imported first. Every Create or Write restarts the file's settle timer, so
// a file being copied in is only read once writes stop. Files that fail to
// import stay in place and are retried on their next change.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", w.dir, err)
	}
	w.logger.Info("inbox: started", slog.String("dir", w.dir))

	ready := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Reset(w.settle)
			return
		}
		timers[path] = time.AfterFunc(w.settle, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for _, path := range w.scan() {
		schedule(path)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox: stopped")
			return nil

		case path := <-ready:
			delete(timers, path)
			w.importFile(ctx, path)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !imagefmt.HasImageExt(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if t, ok := timers[ev.Name]; ok {
					t.Stop()
					delete(timers, ev.Name)
				}
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// scan lists image files already sitting in the folder.
func (w *Watcher) scan() []string {
	var paths []string
	_ = filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.dir {
				return filepath.SkipDir
			}
			return nil
		}
		if imagefmt.HasImageExt(path) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("inbox: read failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return
	}
	if err := imagefmt.Validate(data); err != nil {
		w.logger.Warn("inbox: skipped", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	p, err := w.importer.Import(ctx, data)
	if err != nil {
		w.logger.Error("inbox: import failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if err := os.Remove(path); err != nil {
		w.logger.Warn("inbox: remove failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	w.logger.Info("inbox: imported", slog.String("path", path), slog.String("id", p.ID))
	if w.cb != nil {
		w.cb(path, p)
	}
}
