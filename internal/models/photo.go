// Package models defines the domain types for geocam.
package models

import (
	"math"
	"time"
)

// Coords is a WGS84 position in decimal degrees.
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is a finite position within WGS84 bounds.
func (c Coords) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Photo is one captured image and its annotations.
//
// WebPath is derived from FilePath on demand and is never written to the
// persisted index.
type Photo struct {
	ID        string    `json:"id"`
	FilePath  string    `json:"filePath"`
	WebPath   string    `json:"webPath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Liked     bool      `json:"liked"`
	Coords    *Coords   `json:"coords,omitempty"`
	Address   string    `json:"address,omitempty"`
}

// HasCoords reports whether the photo was geotagged at capture time.
func (p Photo) HasCoords() bool { return p.Coords != nil }

// NeedsAddress reports whether reverse geocoding could still add an address.
func (p Photo) NeedsAddress() bool { return p.Coords != nil && p.Address == "" }

// Clone returns a deep copy so callers cannot mutate store-owned records.
func (p Photo) Clone() Photo {
	if p.Coords != nil {
		c := *p.Coords
		p.Coords = &c
	}
	return p
}

// FileInfo is a lightweight description of a stored file.
type FileInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
