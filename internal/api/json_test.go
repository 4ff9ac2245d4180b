package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starford/geocam/internal/apperr"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found", fmt.Errorf("store: get: %w", apperr.ErrNotFound), http.StatusNotFound, "not found"},
		{"busy", apperr.ErrBusy, http.StatusConflict, "capture already in progress"},
		{"permission", fmt.Errorf("capture: camera: %w", apperr.ErrPermissionDenied), http.StatusForbidden, "permission denied"},
		{"storage", fmt.Errorf("gateway: write x: %w", apperr.ErrStorage), http.StatusInternalServerError, "internal error"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestWriteErrorHidesInternalText(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("disk /var/lib/geocam exploded"), "save photo")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.False(t, strings.Contains(rec.Body.String(), "/var/lib"), "body leaks error text: %s", rec.Body.String())
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
