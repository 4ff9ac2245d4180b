package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starford/geocam/internal/apperr"
)

func TestIsUserCancel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"code USER_CANCEL", &CaptureError{Code: "USER_CANCEL", Message: "x"}, true},
		{"code OperationCanceled", &CaptureError{Code: "OperationCanceled"}, true},
		{"phrase cancel", errors.New("User cancelled photos app"), true},
		{"phrase no image", errors.New("No image picked"), true},
		{"phrase did not finish", errors.New("Activity did not finish"), true},
		{"wrapped sentinel", fmt.Errorf("capture: %w", apperr.ErrCancelled), true},
		{"context canceled", fmt.Errorf("run: %w", context.Canceled), true},
		{"wrapped capture error", fmt.Errorf("outer: %w", &CaptureError{Code: "USER_CANCEL"}), true},
		{"unrelated code", &CaptureError{Code: "DEVICE_BUSY", Message: "camera in use"}, false},
		{"hardware fault", errors.New("camera hardware fault"), false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUserCancel(tt.err))
		})
	}
}

func TestCaptureErrorMessage(t *testing.T) {
	assert.Equal(t, "USER_CANCEL: closed", (&CaptureError{Code: "USER_CANCEL", Message: "closed"}).Error())
	assert.Equal(t, "boom", (&CaptureError{Err: errors.New("boom")}).Error())

	inner := errors.New("inner")
	assert.ErrorIs(t, &CaptureError{Err: inner}, inner)
}
