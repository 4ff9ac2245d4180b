package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/starford/geocam/internal/apperr"
	"github.com/starford/geocam/internal/kv"
)

// PermissionProbe returns the raw, platform-shaped permission state of a
// capability.
type PermissionProbe interface {
	Query(ctx context.Context, c Capability) (json.RawMessage, error)
}

// KVProbe serves permission states that the device reported and that were
// stored verbatim in the key-value store.
type KVProbe struct {
	store kv.Store
}

// NewKVProbe creates a probe over store.
func NewKVProbe(store kv.Store) *KVProbe {
	return &KVProbe{store: store}
}

func permissionKey(c Capability) string { return "permissions/" + string(c) }

// Query returns the last reported payload for c.
func (p *KVProbe) Query(ctx context.Context, c Capability) (json.RawMessage, error) {
	v, ok, err := p.store.Get(ctx, permissionKey(c))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", c, apperr.ErrNotFound)
	}
	return json.RawMessage(v), nil
}

// Report stores a raw payload for c. The payload must be valid JSON.
func (p *KVProbe) Report(ctx context.Context, c Capability, raw json.RawMessage) error {
	if !json.Valid(raw) {
		return fmt.Errorf("permission %s: payload is not valid JSON", c)
	}
	return p.store.Set(ctx, permissionKey(c), string(raw))
}
