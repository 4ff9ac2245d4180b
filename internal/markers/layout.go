// Package markers spreads map markers that share (nearly) the same
// coordinates onto rings around their common position.
package markers

import (
	"math"

	"github.com/starford/geocam/internal/models"
)

const (
	DefaultEpsilon    = 1e-5
	DefaultBaseRadius = 0.00012

	perRing = 6
)

// Options tunes the layout. Zero values select the defaults.
type Options struct {
	// Epsilon is the bucket size in degrees.
	Epsilon float64
	// BaseRadius is the ring spacing in degrees.
	BaseRadius float64
}

func (o Options) withDefaults() Options {
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.BaseRadius <= 0 {
		o.BaseRadius = DefaultBaseRadius
	}
	return o
}

// Point is a marker input.
type Point struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Placed is a marker with its display position.
type Placed struct {
	ID         string  `json:"id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DisplayLat float64 `json:"displayLat"`
	DisplayLng float64 `json:"displayLng"`
	Ring       int     `json:"ring"`
}

type bucketKey struct {
	lat, lng int64
}

func keyOf(p Point, eps float64) bucketKey {
	return bucketKey{
		lat: int64(math.Floor(p.Lat / eps)),
		lng: int64(math.Floor(p.Lng / eps)),
	}
}

// Layout places every point. Points sharing a bucket are numbered from 1 in
// input order; member i sits on ring ceil(i/6) at angle (i-1)*60 degrees.
// A point alone in its bucket keeps its exact position. The output has one
// entry per input, in input order.
func Layout(points []Point, opts Options) []Placed {
	opts = opts.withDefaults()

	sizes := make(map[bucketKey]int, len(points))
	for _, p := range points {
		sizes[keyOf(p, opts.Epsilon)]++
	}

	seen := make(map[bucketKey]int, len(sizes))
	out := make([]Placed, len(points))
	for n, p := range points {
		k := keyOf(p, opts.Epsilon)
		out[n] = Placed{ID: p.ID, Lat: p.Lat, Lng: p.Lng, DisplayLat: p.Lat, DisplayLng: p.Lng}
		if sizes[k] < 2 {
			continue
		}
		seen[k]++
		i := seen[k]
		ring := (i + perRing - 1) / perRing
		angle := float64(i-1) * (2 * math.Pi / perRing)
		r := opts.BaseRadius * float64(ring)
		out[n].DisplayLat = p.Lat + r*math.Cos(angle)
		out[n].DisplayLng = p.Lng + r*math.Sin(angle)
		out[n].Ring = ring
	}
	return out
}

// FromPhotos returns a point for every geotagged photo, in list order.
func FromPhotos(photos []models.Photo) []Point {
	out := make([]Point, 0, len(photos))
	for _, p := range photos {
		if p.Coords == nil {
			continue
		}
		out = append(out, Point{ID: p.ID, Lat: p.Coords.Lat, Lng: p.Coords.Lng})
	}
	return out
}
