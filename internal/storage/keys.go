package storage

import (
	"fmt"
	"strings"
)

// OutputKey builds the canonical storage key for one rendered output.
func OutputKey(batchID, jobID, contentType string) string {
	return fmt.Sprintf("outputs/%s/%s%s", batchID, jobID, ExtForMIME(contentType))
}

// ExtForMIME maps a content type to a file extension.
func ExtForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

// MIMEForKey maps a stored key back to its content type for delivery.
func MIMEForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
