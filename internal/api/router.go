package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(d Deps, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Gallery.
	r.Get("/photos", h.ListPhotos)
	r.Post("/photos", h.ImportPhoto)
	r.Get("/photos/favorites", h.Favorites)
	r.Get("/photos/{id}", h.GetPhoto)
	r.Get("/photos/{id}/image", h.GetImage)
	r.Post("/photos/{id}/like", h.ToggleLike)
	r.Delete("/photos/{id}", h.DeletePhoto)

	// Capture.
	r.Post("/capture", h.Capture)
	r.Get("/capture/state", h.CaptureState)

	// Device capabilities.
	r.Get("/permissions", h.Permissions)
	r.Put("/permissions/{capability}", h.ReportPermission)
	r.Get("/location", h.Location)

	// Map.
	r.Get("/map/markers", h.Markers)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
