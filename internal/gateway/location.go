package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/starford/geocam/internal/apperr"
	"github.com/starford/geocam/internal/models"
)

// LocationRequest mirrors the options of a platform location query.
type LocationRequest struct {
	Timeout      time.Duration
	HighAccuracy bool
}

// Locator produces a single position fix.
type Locator interface {
	Fix(ctx context.Context, req LocationRequest) (models.Coords, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, req LocationRequest) (models.Coords, error)

// Fix calls f.
func (f LocatorFunc) Fix(ctx context.Context, req LocationRequest) (models.Coords, error) {
	return f(ctx, req)
}

// StaticLocator always reports the configured position, for fixed
// installations without a receiver.
type StaticLocator struct {
	Coords models.Coords
}

// Fix returns the configured position.
func (s StaticLocator) Fix(context.Context, LocationRequest) (models.Coords, error) {
	return s.Coords, nil
}

// NoLocator never has a fix.
type NoLocator struct{}

// Fix always fails with ErrUnavailable.
func (NoLocator) Fix(context.Context, LocationRequest) (models.Coords, error) {
	return models.Coords{}, apperr.ErrUnavailable
}

// GPSDLocator reads one fix from a gpsd daemon using its JSON protocol.
type GPSDLocator struct {
	Addr string
}

type gpsdReport struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// Fix enables watching and returns the first TPV report with a usable fix.
// High accuracy requires a 3D fix.
func (g GPSDLocator) Fix(ctx context.Context, req LocationRequest) (models.Coords, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", g.Addr)
	if err != nil {
		return models.Coords{}, fmt.Errorf("gpsd: dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if _, err := conn.Write([]byte(`?WATCH={"enable":true,"json":true};` + "\n")); err != nil {
		return models.Coords{}, fmt.Errorf("gpsd: watch: %w", err)
	}

	minMode := 2
	if req.HighAccuracy {
		minMode = 3
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var r gpsdReport
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Class != "TPV" {
			continue
		}
		if r.Mode >= minMode && r.Lat != nil && r.Lon != nil {
			return models.Coords{Lat: *r.Lat, Lng: *r.Lon}, nil
		}
	}
	if ctx.Err() != nil {
		return models.Coords{}, ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return models.Coords{}, fmt.Errorf("gpsd: read: %w", err)
	}
	return models.Coords{}, fmt.Errorf("gpsd: stream closed without fix: %w", apperr.ErrUnavailable)
}
