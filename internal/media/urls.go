package media

import "strings"

const (
	mediaPath       = "/uploads/media/"
	collapsedPrefix = "uploadsmedia"
)

// RepairURL turns a stored url into `{base}/uploads/media/{filename}` unless
// it is already absolute. Applying it twice gives the same result.
func RepairURL(base, raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http") {
		return raw
	}
	prefix := strings.TrimRight(base, "/") + mediaPath

	switch {
	case strings.Contains(raw, collapsedPrefix) && !strings.Contains(raw, mediaPath):
		_, tail, _ := strings.Cut(raw, collapsedPrefix)
		return prefix + lastSegment(strings.TrimLeft(tail, "/"))
	case strings.Contains(raw, mediaPath):
		return prefix + lastSegment(raw)
	case !strings.Contains(raw, "/"):
		return prefix + raw
	default:
		return prefix + lastSegment(raw)
	}
}

func lastSegment(value string) string {
	if index := strings.LastIndex(value, "/"); index >= 0 {
		return value[index+1:]
	}
	return value
}

// RepairFiles applies RepairURL to every record in place.
func RepairFiles(base string, files []File) []File {
	for i := range files {
		files[i].URL = RepairURL(base, files[i].URL)
	}
	return files
}
