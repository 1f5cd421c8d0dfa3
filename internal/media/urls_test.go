package media

import (
	"strings"
	"testing"
)

const testBase = "https://api.fentro.test"

func TestRepairURLRules(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "absolute passes through", raw: "https://cdn.example.com/a/b.png", want: "https://cdn.example.com/a/b.png"},
		{name: "collapsed prefix", raw: "uploadsmedia1752899497345-718978807.png", want: testBase + "/uploads/media/1752899497345-718978807.png"},
		{name: "collapsed prefix with slash", raw: "/uploadsmedia/x.png", want: testBase + "/uploads/media/x.png"},
		{name: "media path", raw: "/uploads/media/y.pdf", want: testBase + "/uploads/media/y.pdf"},
		{name: "media path nested", raw: "static/uploads/media/2024/z.mp4", want: testBase + "/uploads/media/z.mp4"},
		{name: "bare filename", raw: "photo.jpg", want: testBase + "/uploads/media/photo.jpg"},
		{name: "other path", raw: "files/old/doc.docx", want: testBase + "/uploads/media/doc.docx"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := RepairURL(testBase+"/", testCase.raw); got != testCase.want {
				t.Fatalf("expected %q, got %q", testCase.want, got)
			}
		})
	}
}

func TestRepairURLIsIdempotentAndTotal(t *testing.T) {
	inputs := []string{
		"", "a", "/", "uploadsmedia", "uploadsmediafoo/bar.png", "//double//slash.png",
		"/uploads/media/", "http://x/y", "https://api.fentro.test/uploads/media/q.png",
		"weird uploads/media/name.png", "uploads/mediaX.png",
	}
	for _, raw := range inputs {
		once := RepairURL(testBase, raw)
		if RepairURL(testBase, once) != once {
			t.Fatalf("not idempotent for %q: %q", raw, once)
		}
		if strings.HasPrefix(raw, "http") {
			if once != raw {
				t.Fatalf("absolute url changed: %q -> %q", raw, once)
			}
			continue
		}
		prefix := testBase + "/uploads/media/"
		if !strings.HasPrefix(once, prefix) || strings.Contains(strings.TrimPrefix(once, prefix), "/") {
			t.Fatalf("unexpected shape for %q: %q", raw, once)
		}
	}
}
