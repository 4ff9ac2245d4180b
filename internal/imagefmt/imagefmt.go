// Package imagefmt recognises the raster formats geocam accepts as photos.
package imagefmt

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

var mimeToExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpeg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Detect sniffs data and returns its MIME type and canonical file extension.
// ok is false for anything that is not a supported raster image.
func Detect(data []byte) (mime, ext string, ok bool) {
	mime = strings.Split(http.DetectContentType(data), ";")[0]
	ext, ok = mimeToExt[mime]
	return mime, ext, ok
}

// Ext returns the canonical extension for data, defaulting to .jpeg.
func Ext(data []byte) string {
	if _, ext, ok := Detect(data); ok {
		return ext
	}
	return ".jpeg"
}

// ExtForMIME maps a declared MIME type to its extension.
func ExtForMIME(mime string) (string, bool) {
	ext, ok := mimeToExt[strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0]))]
	return ext, ok
}

// HasImageExt reports whether name carries a supported image extension.
func HasImageExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// Validate rejects data that is not a supported image.
func Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty image")
	}
	if _, _, ok := Detect(data); !ok {
		return fmt.Errorf("unsupported image content (detected: %s)", http.DetectContentType(data))
	}
	return nil
}
