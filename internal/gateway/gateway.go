// Package gateway wraps device capabilities (camera, location, permissions,
// durable file storage) behind uniform result and error contracts.
//
// Callers above this package only ever see the apperr taxonomy; raw
// platform errors are logged and translated here.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/starford/geocam/internal/apperr"
	"github.com/starford/geocam/internal/imagefmt"
	"github.com/starford/geocam/internal/models"
	"github.com/starford/geocam/internal/storage"
)

// PermissionFallbackTimeout bounds the location fix attempted when the
// permission query itself fails.
const PermissionFallbackTimeout = 3 * time.Second

// Gateway is the single entry point to device capabilities.
type Gateway struct {
	camera       Camera
	prompt       Camera
	locator      Locator
	probe        PermissionProbe
	files        storage.Provider
	photoDir     string
	highAccuracy bool
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCamera sets the direct capture backend.
func WithCamera(c Camera) Option { return func(g *Gateway) { g.camera = c } }

// WithPrompt sets the system-prompt (file picker) backend.
func WithPrompt(c Camera) Option { return func(g *Gateway) { g.prompt = c } }

// WithLocator sets the location backend.
func WithLocator(l Locator) Option { return func(g *Gateway) { g.locator = l } }

// WithProbe sets the permission state source.
func WithProbe(p PermissionProbe) Option { return func(g *Gateway) { g.probe = p } }

// WithPhotoDir sets the storage directory new images are written under.
func WithPhotoDir(dir string) Option { return func(g *Gateway) { g.photoDir = dir } }

// WithHighAccuracy requests precise fixes from the locator.
func WithHighAccuracy(v bool) Option { return func(g *Gateway) { g.highAccuracy = v } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Gateway) { g.logger = l } }

// WithClock overrides the time source used for file names.
func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

// New creates a Gateway writing images through files.
func New(files storage.Provider, opts ...Option) *Gateway {
	g := &Gateway{
		camera:   noCamera{},
		locator:  NoLocator{},
		files:    files,
		photoDir: "photos",
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequestCameraAccess never fails: any fault reads as Denied.
func (g *Gateway) RequestCameraAccess(ctx context.Context) Access {
	if g.probe == nil {
		return Denied
	}
	raw, err := g.probe.Query(ctx, CapabilityCamera)
	if err != nil {
		g.logger.Debug("gateway: camera permission query failed", slog.String("error", err.Error()))
		return Denied
	}
	return NormalizePermission(raw, CapabilityCamera)
}

// RequestLocationAccess normalizes the reported permission. When the query
// fails, one short location fix decides instead.
func (g *Gateway) RequestLocationAccess(ctx context.Context) Access {
	var queryErr error
	if g.probe != nil {
		raw, err := g.probe.Query(ctx, CapabilityLocation)
		if err == nil {
			return NormalizePermission(raw, CapabilityLocation)
		}
		queryErr = err
	} else {
		queryErr = errors.New("no permission probe configured")
	}
	g.logger.Debug("gateway: location permission query failed, probing with a fix",
		slog.String("error", queryErr.Error()))
	if _, ok := g.GetLocationFix(ctx, PermissionFallbackTimeout); ok {
		return Granted
	}
	return Denied
}

// CapturePhoto runs the platform capture flow. A user cancellation returns
// an error matching apperr.ErrCancelled; anything else is a genuine failure.
func (g *Gateway) CapturePhoto(ctx context.Context, useSystemPrompt bool) ([]byte, error) {
	src := g.camera
	if useSystemPrompt && g.prompt != nil {
		src = g.prompt
	}
	data, err := src.Capture(ctx, CaptureRequest{UseSystemPrompt: useSystemPrompt})
	if err != nil {
		if IsUserCancel(err) {
			return nil, fmt.Errorf("gateway: capture: %w", apperr.ErrCancelled)
		}
		return nil, fmt.Errorf("gateway: capture: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("gateway: capture returned no image: %w", apperr.ErrCancelled)
	}
	return data, nil
}

// GetLocationFix is best effort: timeouts and errors report ok=false.
func (g *Gateway) GetLocationFix(ctx context.Context, timeout time.Duration) (models.Coords, bool) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	c, err := g.locator.Fix(ctx, LocationRequest{Timeout: timeout, HighAccuracy: g.highAccuracy})
	if err != nil {
		g.logger.Debug("gateway: location unavailable", slog.String("error", err.Error()))
		return models.Coords{}, false
	}
	if !c.Valid() {
		g.logger.Warn("gateway: locator returned invalid coordinates",
			slog.Float64("lat", c.Lat), slog.Float64("lng", c.Lng))
		return models.Coords{}, false
	}
	return c, true
}

// ReadFileBytes reads a stored image.
func (g *Gateway) ReadFileBytes(ctx context.Context, p string) ([]byte, error) {
	data, err := g.files.Read(ctx, p)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

// WriteFileBytes stores a new image under a fresh name and returns its path.
func (g *Gateway) WriteFileBytes(ctx context.Context, data []byte) (string, error) {
	name := path.Join(g.photoDir, fmt.Sprintf("photo_%d_%s%s",
		g.now().UnixMilli(), uuid.NewString()[:8], imagefmt.Ext(data)))
	if err := g.files.Write(ctx, name, data); err != nil {
		return "", fmt.Errorf("gateway: write %s: %w: %w", name, apperr.ErrStorage, err)
	}
	return name, nil
}

// DeleteFile removes a stored image.
func (g *Gateway) DeleteFile(ctx context.Context, p string) error {
	if err := g.files.Delete(ctx, p); err != nil {
		return classify(err)
	}
	return nil
}

// ListFiles returns every stored image file.
func (g *Gateway) ListFiles(ctx context.Context) ([]models.FileInfo, error) {
	files, err := g.files.List(ctx, g.photoDir)
	if err != nil {
		return nil, fmt.Errorf("gateway: list: %w: %w", apperr.ErrStorage, err)
	}
	return files, nil
}

func classify(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", apperr.ErrStorage, err)
}
