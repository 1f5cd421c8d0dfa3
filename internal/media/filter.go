package media

import (
	"mime"
	"strings"
)

// MaxAdvisoryBytes is the per-file size the console warns about. The
// service enforces the real limit.
const MaxAdvisoryBytes int64 = 10 << 20

// AcceptedTypes is the selection filter.
var AcceptedTypes = []string{
	"image/*",
	"video/mp4",
	"video/mpeg",
	"video/quicktime",
	"video/x-msvideo",
	"video/webm",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// BaseMIME strips parameters and lowercases contentType.
func BaseMIME(contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	base, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// Accepts reports whether contentType passes the selection filter.
func Accepts(contentType string) bool {
	base := BaseMIME(contentType)
	for _, accepted := range AcceptedTypes {
		if prefix, ok := strings.CutSuffix(accepted, "/*"); ok {
			if strings.HasPrefix(base, prefix+"/") {
				return true
			}
			continue
		}
		if base == accepted {
			return true
		}
	}
	return false
}

// Classify maps an accepted MIME type onto a FileType.
func Classify(contentType string) FileType {
	base := BaseMIME(contentType)
	switch {
	case strings.HasPrefix(base, "image/"):
		return TypeImage
	case strings.HasPrefix(base, "video/"):
		return TypeVideo
	default:
		return TypeDocument
	}
}
