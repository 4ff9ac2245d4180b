package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/geocam/internal/capture"
	"github.com/starford/geocam/internal/checksum"
	"github.com/starford/geocam/internal/gateway"
	"github.com/starford/geocam/internal/geocode"
	"github.com/starford/geocam/internal/markers"
	"github.com/starford/geocam/internal/models"
	"github.com/starford/geocam/internal/photostore"
)

const defaultLocationTimeout = 5 * time.Second

// Deps are the components the handlers operate on. Probe and Enricher are
// optional.
type Deps struct {
	Store    *photostore.Store
	Workflow *capture.Workflow
	Gateway  *gateway.Gateway
	Probe    *gateway.KVProbe
	Enricher *geocode.Enricher
	Layout   markers.Options

	LocationTimeout time.Duration
}

// Handler holds API route handlers.
type Handler struct {
	Deps
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	if d.LocationTimeout <= 0 {
		d.LocationTimeout = defaultLocationTimeout
	}
	return &Handler{Deps: d}
}

// resolveMissing lazily requests addresses for records shown to the user.
func (h *Handler) resolveMissing(photos ...models.Photo) {
	if h.Enricher == nil {
		return
	}
	h.Enricher.RequestMissing(photos)
}

func embedRequested(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("embed"))
	return v
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, photos []models.Photo) {
	h.resolveMissing(photos...)
	embed := embedRequested(r)
	items := make([]PhotoDTO, len(photos))
	for i, p := range photos {
		if embed && p.WebPath == "" {
			p, _ = h.Store.Rehydrate(r.Context(), p.ID)
		}
		items[i] = toDTO(p, embed)
	}
	writeJSON(w, http.StatusOK, PhotoListResponse{Photos: items, Total: len(items)})
}

// ListPhotos handles GET /api/photos.
//
//	@Summary		List photos, newest first
//	@Tags			photos
//	@Produce		json
//	@Param			embed	query		bool	false	"Include data URIs"
//	@Success		200		{object}	PhotoListResponse
//	@Security		BearerAuth
//	@Router			/photos [get]
func (h *Handler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.Store.GetAll())
}

// Favorites handles GET /api/photos/favorites.
//
//	@Summary		List liked photos
//	@Tags			photos
//	@Produce		json
//	@Success		200		{object}	PhotoListResponse
//	@Security		BearerAuth
//	@Router			/photos/favorites [get]
func (h *Handler) Favorites(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.Store.Favorites())
}

// GetPhoto handles GET /api/photos/{id}.
//
//	@Summary		Get a single photo with its data URI
//	@Tags			photos
//	@Produce		json
//	@Param			id	path		string	true	"Photo id"
//	@Success		200	{object}	PhotoDTO
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/{id} [get]
func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	p, ok := h.Store.Rehydrate(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	h.resolveMissing(p)
	writeJSON(w, http.StatusOK, toDTO(p, true))
}

// GetImage handles GET /api/photos/{id}/image.
//
//	@Summary		Raw image bytes
//	@Tags			photos
//	@Produce		image/jpeg
//	@Param			id	path	string	true	"Photo id"
//	@Success		200
//	@Success		304
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/{id}/image [get]
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := h.Store.GetByID(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	data, err := h.Gateway.ReadFileBytes(r.Context(), p.FilePath)
	if err != nil {
		writeError(w, err, "read image", slog.String("id", id))
		return
	}
	etag := checksum.ETag(data)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if checksum.Matches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ToggleLike handles POST /api/photos/{id}/like.
//
//	@Summary		Flip the liked flag
//	@Tags			photos
//	@Produce		json
//	@Param			id	path		string	true	"Photo id"
//	@Success		200	{object}	PhotoDTO
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/{id}/like [post]
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok, err := h.Store.ToggleLike(r.Context(), id)
	if err != nil {
		writeError(w, err, "toggle like", slog.String("id", id))
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, toDTO(p, false))
}

// DeletePhoto handles DELETE /api/photos/{id}.
//
//	@Summary		Delete a photo and its image
//	@Tags			photos
//	@Param			id	path	string	true	"Photo id"
//	@Success		204	"Photo deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos/{id} [delete]
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.Enricher != nil {
		h.Enricher.Cancel(id)
	}
	ok, err := h.Store.Remove(r.Context(), id)
	if err != nil {
		writeError(w, err, "delete photo", slog.String("id", id))
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Capture handles POST /api/capture.
//
//	@Summary		Capture a photo from the device camera
//	@Tags			capture
//	@Produce		json
//	@Param			prompt	query		bool	false	"Use the system picker instead of the camera"
//	@Success		201		{object}	CaptureResponse
//	@Success		200		{object}	CaptureResponse	"Cancelled by the user"
//	@Failure		403		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	CaptureResponse
//	@Security		BearerAuth
//	@Router			/capture [post]
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	prompt, _ := strconv.ParseBool(r.URL.Query().Get("prompt"))

	res, err := h.Workflow.Take(r.Context(), prompt)
	if err != nil {
		writeError(w, err, "capture")
		return
	}
	switch res.Status {
	case capture.Cancelled:
		writeJSON(w, http.StatusOK, CaptureResponse{Status: res.Status.String()})
	case capture.Failed:
		writeJSON(w, http.StatusBadGateway, CaptureResponse{Status: res.Status.String(), Error: res.Err.Error()})
	default:
		d := toDTO(res.Photo, false)
		writeJSON(w, http.StatusCreated, CaptureResponse{
			Status:     res.Status.String(),
			Photo:      &d,
			NavigateTo: res.NavigateTo,
		})
	}
}

// CaptureState handles GET /api/capture/state.
//
//	@Summary		Capture state machine position
//	@Tags			capture
//	@Produce		json
//	@Success		200	{object}	CaptureStateResponse
//	@Security		BearerAuth
//	@Router			/capture/state [get]
func (h *Handler) CaptureState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CaptureStateResponse{State: h.Workflow.State().String()})
}

// Permissions handles GET /api/permissions.
//
//	@Summary		Normalized camera and location permissions
//	@Tags			device
//	@Produce		json
//	@Success		200	{object}	PermissionsResponse
//	@Security		BearerAuth
//	@Router			/permissions [get]
func (h *Handler) Permissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PermissionsResponse{
		Camera:   h.Gateway.RequestCameraAccess(r.Context()).String(),
		Location: h.Gateway.RequestLocationAccess(r.Context()).String(),
	})
}

// ReportPermission handles PUT /api/permissions/{capability}. The body is
// the raw permission payload reported by the device.
//
//	@Summary		Report a device permission state
//	@Tags			device
//	@Accept			json
//	@Produce		json
//	@Param			capability	path		string	true	"camera or location"
//	@Success		200			{object}	PermissionsResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/permissions/{capability} [put]
func (h *Handler) ReportPermission(w http.ResponseWriter, r *http.Request) {
	if h.Probe == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("permission reporting disabled"))
		return
	}
	c := gateway.Capability(chi.URLParam(r, "capability"))
	if c != gateway.CapabilityCamera && c != gateway.CapabilityLocation {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown capability"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.Probe.Report(r.Context(), c, body); err != nil {
		writeError(w, err, "report permission", slog.String("capability", string(c)))
		return
	}
	h.Permissions(w, r)
}

// Markers handles GET /api/map/markers.
//
//	@Summary		De-overlapped map markers for geotagged photos
//	@Tags			map
//	@Produce		json
//	@Success		200	{object}	MarkersResponse
//	@Security		BearerAuth
//	@Router			/map/markers [get]
func (h *Handler) Markers(w http.ResponseWriter, _ *http.Request) {
	photos := h.Store.GetAll()
	h.resolveMissing(photos...)
	placed := markers.Layout(markers.FromPhotos(photos), h.Layout)
	out := make([]Marker, len(placed))
	for i, p := range placed {
		out[i] = Marker{Placed: p, Thumbnail: "/api/photos/" + p.ID + "/image"}
	}
	writeJSON(w, http.StatusOK, MarkersResponse{Markers: out})
}

// Location handles GET /api/location.
//
//	@Summary		Current device position
//	@Tags			device
//	@Produce		json
//	@Success		200	{object}	LocationResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/location [get]
func (h *Handler) Location(w http.ResponseWriter, r *http.Request) {
	c, ok := h.Gateway.GetLocationFix(r.Context(), h.LocationTimeout)
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("location unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, LocationResponse{Lat: c.Lat, Lng: c.Lng})
}
