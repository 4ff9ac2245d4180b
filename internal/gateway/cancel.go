package gateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/geocam/internal/apperr"
)

// Cancellation vocabulary reported by capture backends. Platforms keep
// inventing new spellings, so extend these lists rather than adding ad-hoc
// checks elsewhere.
var (
	cancelCodes   = []string{"USER_CANCEL", "OperationCanceled"}
	cancelPhrases = []string{"cancel", "user cancelled", "no image", "did not finish"}
)

// CaptureError is a fault raised by a capture backend, optionally carrying
// a platform code.
type CaptureError struct {
	Code    string
	Message string
	Err     error
}

func (e *CaptureError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

func (e *CaptureError) Unwrap() error { return e.Err }

// IsUserCancel reports whether err signals that the user dismissed the
// capture flow rather than the capture failing.
func IsUserCancel(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperr.ErrCancelled) || errors.Is(err, context.Canceled) {
		return true
	}
	var ce *CaptureError
	if errors.As(err, &ce) && slices.Contains(cancelCodes, ce.Code) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range cancelPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
