// Package checksum computes content digests used for HTTP validators.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns a strong entity tag for data, quoted as RFC 9110 requires.
func ETag(data []byte) string {
	return `"` + Sum(data)[:32] + `"`
}

// Matches reports whether an If-None-Match header value covers etag.
// Weak comparison is used, as for GET conditional requests.
func Matches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}
