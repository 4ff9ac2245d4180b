// Package kv provides the key-value persistence used for the photo index
// and reported permission states.
package kv

import "context"

// Store is a string key-value store. Set must be atomic per key: readers
// observe either the previous or the new value, never a partial write.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
