// Package maintenance runs scheduled housekeeping over the photo files.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/starford/geocam/internal/models"
)

const (
	DefaultSchedule = "*/30 * * * *"
	DefaultGrace    = 10 * time.Minute
)

// Files lists and deletes stored image files.
type Files interface {
	ListFiles(ctx context.Context) ([]models.FileInfo, error)
	DeleteFile(ctx context.Context, path string) error
}

// Index reports which file paths are referenced by a record.
type Index interface {
	FilePaths() map[string]bool
}

// Sweeper removes image files that no record references. A file written
// by a commit whose index write never landed is such an orphan.
type Sweeper struct {
	files  Files
	index  Index
	grace  time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithGrace sets how old an unreferenced file must be before it is removed.
// Younger files may belong to a commit still in progress.
func WithGrace(d time.Duration) Option {
	return func(s *Sweeper) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Sweeper) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Sweeper) { s.logger = l } }

func NewSweeper(files Files, index Index, opts ...Option) *Sweeper {
	s := &Sweeper{
		files:  files,
		index:  index,
		grace:  DefaultGrace,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep deletes orphaned files and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	files, err := s.files.ListFiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("maintenance: sweep: %w", err)
	}
	referenced := s.index.FilePaths()
	cutoff := s.now().Add(-s.grace)

	removed := 0
	for _, f := range files {
		if referenced[f.Path] || f.UpdatedAt.After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.files.DeleteFile(ctx, f.Path); err != nil {
			s.logger.Warn("maintenance: delete orphan failed",
				slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		removed++
		s.logger.Info("maintenance: removed orphan", slog.String("path", f.Path))
	}
	return removed, nil
}

// Run schedules Sweep on the cron expression and blocks until ctx is done.
// Runs never overlap.
func (s *Sweeper) Run(ctx context.Context, cronExpr string) error {
	sched := gocron.NewScheduler(time.UTC)
	sched.SingletonModeAll()

	if _, err := sched.Cron(cronExpr).Do(func() {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("maintenance: sweep failed", slog.String("error", err.Error()))
			return
		}
		s.logger.Debug("maintenance: sweep done", slog.Int("removed", n))
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", cronExpr, err)
	}

	sched.StartAsync()
	s.logger.Info("maintenance: scheduler started", slog.String("schedule", cronExpr))
	<-ctx.Done()
	sched.Stop()
	s.logger.Info("maintenance: scheduler stopped")
	return nil
}

// ValidateSchedule reports whether cronExpr is accepted by the scheduler.
func ValidateSchedule(cronExpr string) error {
	sched := gocron.NewScheduler(time.UTC)
	if _, err := sched.Cron(cronExpr).Do(func() {}); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
