package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Capability names a device capability guarded by a permission.
type Capability string

const (
	CapabilityCamera   Capability = "camera"
	CapabilityLocation Capability = "location"
)

// Access is the two-valued outcome every permission shape reduces to.
type Access int

const (
	Denied Access = iota
	Granted
)

// IsGranted reports whether access was granted.
func (a Access) IsGranted() bool { return a == Granted }

func (a Access) String() string {
	if a == Granted {
		return "granted"
	}
	return "denied"
}

// ShapeKind tags which permission payload layout was observed.
type ShapeKind int

const (
	ShapeUnknown ShapeKind = iota
	// ShapeString is a bare status string: "granted".
	ShapeString
	// ShapeCapabilityField is an object keyed by capability: {"location": "always"}.
	ShapeCapabilityField
	// ShapeGenericField is an object with a generic key: {"permission": "granted"}.
	ShapeGenericField
)

// PermissionShape is a parsed permission payload before normalization.
type PermissionShape struct {
	Kind   ShapeKind
	Status string
}

// grantedStates lists every status spelling that means the capability may be used.
var grantedStates = map[string]bool{
	"granted":     true,
	"limited":     true,
	"when-in-use": true,
	"always":      true,
}

// ParsePermission classifies a raw permission payload. The capability
// specific field takes precedence over the generic "permission" field.
func ParsePermission(raw []byte, c Capability) PermissionShape {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return PermissionShape{Kind: ShapeUnknown}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return PermissionShape{Kind: ShapeString, Status: s}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return PermissionShape{Kind: ShapeUnknown}
	}
	if v, ok := obj[string(c)]; ok {
		return PermissionShape{Kind: ShapeCapabilityField, Status: statusString(v)}
	}
	if v, ok := obj["permission"]; ok {
		return PermissionShape{Kind: ShapeGenericField, Status: statusString(v)}
	}
	return PermissionShape{Kind: ShapeUnknown}
}

// Access reduces the shape to Granted or Denied.
func (s PermissionShape) Access() Access {
	if s.Kind == ShapeUnknown {
		return Denied
	}
	if grantedStates[strings.ToLower(strings.TrimSpace(s.Status))] {
		return Granted
	}
	return Denied
}

// NormalizePermission parses and reduces a raw permission payload in one step.
func NormalizePermission(raw []byte, c Capability) Access {
	return ParsePermission(raw, c).Access()
}

func statusString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}
