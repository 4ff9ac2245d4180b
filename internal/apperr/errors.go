// Package apperr holds the error taxonomy shared across geocam layers.
//
// Gateway adapters translate platform faults into these sentinels so that
// upper layers only ever branch on errors.Is against this list.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrBusy     = errors.New("operation already in progress")

	// ErrCancelled marks a user-initiated cancellation. It is a normal
	// outcome and must never surface as a failure.
	ErrCancelled        = errors.New("cancelled by user")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("capability unavailable")
	ErrStorage          = errors.New("storage failure")
)
