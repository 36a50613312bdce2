package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"picdrop/internal/assets"
)

var errUnsupportedType = errors.New("unsupported file type")

// imageExtensions are accepted in images-only mode. SVG is left out because
// it can carry script.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".ico":  true,
}

// dangerousExtensions are rejected in every mode.
var dangerousExtensions = map[string]bool{
	".exe":   true,
	".bat":   true,
	".cmd":   true,
	".com":   true,
	".pif":   true,
	".scr":   true,
	".vbs":   true,
	".jar":   true,
	".app":   true,
	".deb":   true,
	".rpm":   true,
	".dmg":   true,
	".pkg":   true,
	".msi":   true,
	".dll":   true,
	".so":    true,
	".dylib": true,
	".sh":    true,
	".ps1":   true,
}

// validateUpload decides whether payload named filename may be stored. It
// returns the sniffed content type on success.
func validateUpload(filename string, payload []byte, imagesOnly bool) (string, error) {
	ext := strings.ToLower(assets.Extension(filename))
	if dangerousExtensions[ext] {
		return "", fmt.Errorf("%w: %s", errUnsupportedType, ext)
	}

	sniffed := http.DetectContentType(payload)
	if !imagesOnly {
		return sniffed, nil
	}

	if !imageExtensions[ext] {
		if ext == "" {
			return "", fmt.Errorf("%w: missing image extension", errUnsupportedType)
		}
		return "", fmt.Errorf("%w: %s", errUnsupportedType, ext)
	}
	if !strings.HasPrefix(sniffed, "image/") {
		return "", fmt.Errorf("%w: content is %s", errUnsupportedType, sniffed)
	}
	return sniffed, nil
}
