package services

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const octetStream = "application/octet-stream"

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/webp": "webp",
}

// ExtensionFor maps a content type to a file extension, ignoring parameters
// and case. ok is false for types outside the known image set.
func ExtensionFor(contentType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	ext, ok := imageExtensions[mediaType]
	return ext, ok
}

func extensionOr(contentType, fallback string) string {
	if ext, ok := ExtensionFor(contentType); ok {
		return ext
	}
	return fallback
}

// resolveContentType keeps a declared type and only sniffs the bytes when the
// client sent none or the generic binary type.
func resolveContentType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != octetStream {
		return declared
	}
	if len(data) > 0 {
		if detected := mimetype.Detect(data); detected != nil {
			return detected.String()
		}
	}
	return octetStream
}
