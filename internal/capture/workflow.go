// Package capture runs the capture → geotag → commit sequence with a
// single in-flight guard.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/geocam/internal/apperr"
	"github.com/starford/geocam/internal/models"
)

// DefaultFixTimeout bounds the location fix taken while committing.
const DefaultFixTimeout = 5 * time.Second

// NavigateGallery is the navigation hint returned after a successful commit.
const NavigateGallery = "gallery"

// State is the workflow position.
type State int32

const (
	Idle State = iota
	Capturing
	Committing
)

func (s State) String() string {
	switch s {
	case Capturing:
		return "capturing"
	case Committing:
		return "committing"
	}
	return "idle"
}

// Status is the outcome of one Take.
type Status int

const (
	Committed Status = iota
	Cancelled
	Failed
)

func (s Status) String() string {
	switch s {
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return "committed"
}

// Result describes how a capture ended. Err is set for Failed.
type Result struct {
	Status     Status
	Photo      models.Photo
	NavigateTo string
	Err        error
}

// Device is the part of the capability gateway the workflow needs.
type Device interface {
	CapturePhoto(ctx context.Context, useSystemPrompt bool) ([]byte, error)
	GetLocationFix(ctx context.Context, timeout time.Duration) (models.Coords, bool)
}

// Committer persists captured bytes as a new photo.
type Committer interface {
	Commit(ctx context.Context, data []byte, coords *models.Coords) (models.Photo, error)
}

// Workflow is the capture state machine.
type Workflow struct {
	device     Device
	store      Committer
	fixTimeout time.Duration
	logger     *slog.Logger
	onCommit   func(models.Photo)
	cameraOK   func(ctx context.Context) bool

	state atomic.Int32
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithFixTimeout sets the location fix timeout used while committing.
func WithFixTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.fixTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(w *Workflow) { w.logger = l } }

// WithOnCommit registers a hook run after every committed photo, such as
// requesting address resolution.
func WithOnCommit(fn func(models.Photo)) Option { return func(w *Workflow) { w.onCommit = fn } }

// WithCameraPermission makes Take refuse with apperr.ErrPermissionDenied
// unless allowed reports camera access.
func WithCameraPermission(allowed func(ctx context.Context) bool) Option {
	return func(w *Workflow) { w.cameraOK = allowed }
}

// New creates a workflow in the Idle state.
func New(device Device, store Committer, opts ...Option) *Workflow {
	w := &Workflow{
		device:     device,
		store:      store,
		fixTimeout: DefaultFixTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State reports the current position of the state machine.
func (w *Workflow) State() State { return State(w.state.Load()) }

// Take captures, geotags and commits one photo. A call made while another
// is in progress returns apperr.ErrBusy without side effects, and a call
// without camera permission returns apperr.ErrPermissionDenied. Cancellation
// and capture failures are reported in the Result; only a commit failure
// is returned as an error.
func (w *Workflow) Take(ctx context.Context, useSystemPrompt bool) (Result, error) {
	if !w.state.CompareAndSwap(int32(Idle), int32(Capturing)) {
		return Result{}, apperr.ErrBusy
	}
	defer w.state.Store(int32(Idle))

	if w.cameraOK != nil && !w.cameraOK(ctx) {
		return Result{}, fmt.Errorf("capture: camera: %w", apperr.ErrPermissionDenied)
	}

	data, err := w.device.CapturePhoto(ctx, useSystemPrompt)
	switch {
	case errors.Is(err, apperr.ErrCancelled):
		w.logger.Debug("capture: cancelled by user")
		return Result{Status: Cancelled}, nil
	case err != nil:
		w.logger.Error("capture: failed", slog.String("error", err.Error()))
		return Result{Status: Failed, Err: err}, nil
	}

	w.state.Store(int32(Committing))
	p, err := w.commit(ctx, data)
	if err != nil {
		return Result{Status: Failed, Err: err}, err
	}
	return Result{Status: Committed, Photo: p, NavigateTo: NavigateGallery}, nil
}

// Import commits externally supplied image bytes with the same geotagging
// as a capture. It does not take the capture guard.
func (w *Workflow) Import(ctx context.Context, data []byte) (models.Photo, error) {
	return w.commit(ctx, data)
}

// ImportAt commits image bytes with known coordinates, skipping the fix.
func (w *Workflow) ImportAt(ctx context.Context, data []byte, coords *models.Coords) (models.Photo, error) {
	p, err := w.store.Commit(ctx, data, coords)
	if err != nil {
		w.logger.Error("capture: commit failed", slog.String("error", err.Error()))
		return models.Photo{}, fmt.Errorf("capture: commit: %w", err)
	}
	w.logger.Info("capture: photo saved",
		slog.String("id", p.ID), slog.Bool("geotagged", p.HasCoords()))
	if w.onCommit != nil {
		w.onCommit(p)
	}
	return p, nil
}

func (w *Workflow) commit(ctx context.Context, data []byte) (models.Photo, error) {
	var coords *models.Coords
	if c, ok := w.device.GetLocationFix(ctx, w.fixTimeout); ok {
		coords = &c
	} else {
		w.logger.Info("capture: no location fix, saving without coordinates")
	}
	return w.ImportAt(ctx, data, coords)
}
