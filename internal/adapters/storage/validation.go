package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes defines the MIME types accepted as matter documents.
var AllowedContentTypes = map[string]bool{
	// Images
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/tiff": true,
	"image/webp": true,

	// Documents
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/rtf": true,
	"text/plain":      true,
	"text/csv":        true,
	"text/html":       true,

	// Correspondence
	"message/rfc822":             true,
	"application/vnd.ms-outlook": true,

	// Untyped uploads
	"application/octet-stream": true,
	"binary/octet-stream":      true,
}

// ValidateContentType checks if the content type is allowed. An empty type is
// accepted; many stores do not record one.
func ValidateContentType(contentType string) error {
	// Normalize content type (remove parameters like charset)
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))
	if normalized == "" {
		return nil
	}

	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits. A non-positive
// limit disables the upper bound.
func ValidateFileSize(sizeBytes, maxFileSize int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if maxFileSize > 0 && sizeBytes > maxFileSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, maxFileSize)
	}
	return nil
}
