package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/geocam/internal/imagefmt"
	"github.com/starford/geocam/internal/models"
)

const maxUploadBytes = 25 << 20 // 25 MB

// ImportPhoto handles POST /api/photos (multipart/form-data, field "file",
// optional "lat" and "lng"). Without coordinates the photo is geotagged
// from the device like a capture.
//
//	@Summary		Import an existing image as a photo
//	@Tags			photos
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image file"
//	@Param			lat		formData	number	false	"Latitude"
//	@Param			lng		formData	number	false	"Longitude"
//	@Success		201		{object}	PhotoDTO
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos [post]
func (h *Handler) ImportPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if err := imagefmt.Validate(data); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	coords, err := formCoords(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var p models.Photo
	if coords != nil {
		p, err = h.Workflow.ImportAt(r.Context(), data, coords)
	} else {
		p, err = h.Workflow.Import(r.Context(), data)
	}
	if err != nil {
		writeError(w, err, "import photo", slog.String("filename", header.Filename))
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(p, false))
}

func formCoords(r *http.Request) (*models.Coords, error) {
	latS := strings.TrimSpace(r.FormValue("lat"))
	lngS := strings.TrimSpace(r.FormValue("lng"))
	if latS == "" && lngS == "" {
		return nil, nil
	}
	if latS == "" || lngS == "" {
		return nil, errors.New("lat and lng must be given together")
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return nil, errors.New("invalid lat")
	}
	lng, err := strconv.ParseFloat(lngS, 64)
	if err != nil {
		return nil, errors.New("invalid lng")
	}
	c := models.Coords{Lat: lat, Lng: lng}
	if !c.Valid() {
		return nil, errors.New("coordinates out of range")
	}
	return &c, nil
}
