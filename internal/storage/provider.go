// Package storage defines the durable image file abstraction.
package storage

import (
	"context"

	"github.com/starford/geocam/internal/models"
)

// Provider is the interface for photo file operations. Paths are relative
// to the provider root and always use forward slashes.
type Provider interface {
	// List returns metadata for every file under dir.
	List(ctx context.Context, dir string) ([]models.FileInfo, error)
	// Read returns the raw bytes of the file at path. A missing file yields
	// an error matching apperr.ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(ctx context.Context, path string, content []byte) error
	// Delete removes the file at path. A missing file yields an error
	// matching apperr.ErrNotFound.
	Delete(ctx context.Context, path string) error
}
