package media

import "testing"

func TestAcceptsSelectionFilter(t *testing.T) {
	accepted := []string{"image/png", "image/svg+xml", "video/mp4", "video/webm", "application/pdf", "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "IMAGE/JPEG; charset=binary"}
	for _, contentType := range accepted {
		if !Accepts(contentType) {
			t.Fatalf("expected %q accepted", contentType)
		}
	}
	rejected := []string{"", "text/plain", "application/zip", "video/x-matroska", "audio/mpeg", "imagex/png"}
	for _, contentType := range rejected {
		if Accepts(contentType) {
			t.Fatalf("expected %q rejected", contentType)
		}
	}
}

func TestClassify(t *testing.T) {
	if Classify("image/gif") != TypeImage || Classify("video/quicktime") != TypeVideo || Classify("application/pdf") != TypeDocument {
		t.Fatalf("unexpected classification")
	}
}
