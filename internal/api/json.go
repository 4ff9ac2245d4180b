package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/geocam/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// errorStatus maps a domain error to its HTTP status and public message.
// Unmapped errors are internal.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, apperr.ErrBusy):
		return http.StatusConflict, "capture already in progress"
	case errors.Is(err, apperr.ErrPermissionDenied):
		return http.StatusForbidden, "permission denied"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError writes the mapped error body. Internal errors are logged under op
// with attrs and never leak their text to the client.
func writeError(w http.ResponseWriter, err error, op string, attrs ...any) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
	}
	writeJSON(w, status, errorBody(msg))
}
