package api

import (
	"time"

	"github.com/starford/geocam/internal/markers"
	"github.com/starford/geocam/internal/models"
)

// PhotoDTO is a photo as returned by the API. WebPath is only filled by the
// detail endpoint or when embedding is requested.
type PhotoDTO struct {
	ID        string         `json:"id" validate:"required"`
	CreatedAt time.Time      `json:"createdAt" validate:"required"`
	Liked     bool           `json:"liked"`
	Coords    *models.Coords `json:"coords,omitempty"`
	Address   string         `json:"address,omitempty"`
	ImageURL  string         `json:"imageUrl" example:"/api/photos/8c1f.../image" validate:"required"`
	WebPath   string         `json:"webPath,omitempty"`
}

func toDTO(p models.Photo, embed bool) PhotoDTO {
	d := PhotoDTO{
		ID:        p.ID,
		CreatedAt: p.CreatedAt,
		Liked:     p.Liked,
		Coords:    p.Coords,
		Address:   p.Address,
		ImageURL:  "/api/photos/" + p.ID + "/image",
	}
	if embed {
		d.WebPath = p.WebPath
	}
	return d
}

// PhotoListResponse wraps gallery listings.
type PhotoListResponse struct {
	Photos []PhotoDTO `json:"photos" validate:"required"`
	Total  int        `json:"total" example:"42" validate:"required"`
}

// CaptureResponse reports the outcome of a capture request.
type CaptureResponse struct {
	Status     string    `json:"status" example:"committed" validate:"required"`
	Photo      *PhotoDTO `json:"photo,omitempty"`
	NavigateTo string    `json:"navigateTo,omitempty" example:"gallery"`
	Error      string    `json:"error,omitempty"`
}

// CaptureStateResponse reports the capture state machine position.
type CaptureStateResponse struct {
	State string `json:"state" example:"idle" validate:"required"`
}

// PermissionsResponse reports normalized permission outcomes.
type PermissionsResponse struct {
	Camera   string `json:"camera" example:"granted" validate:"required"`
	Location string `json:"location" example:"denied" validate:"required"`
}

// Marker is one de-overlapped map marker.
type Marker struct {
	markers.Placed
	Thumbnail string `json:"thumbnail" validate:"required"`
}

// MarkersResponse wraps the map marker layout.
type MarkersResponse struct {
	Markers []Marker `json:"markers" validate:"required"`
}

// LocationResponse is the current device position.
type LocationResponse struct {
	Lat float64 `json:"lat" example:"48.8584"`
	Lng float64 `json:"lng" example:"2.2945"`
}
