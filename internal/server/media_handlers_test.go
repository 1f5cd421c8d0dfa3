package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/fentro/cms-console/internal/media"
)

func multipartSelection(t *testing.T) (string, string) {
	t.Helper()
	var pixel bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	if err := png.Encode(&pixel, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(uploadFilesField, "pixel.png")
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	_, _ = part.Write(pixel.Bytes())
	part, err = writer.CreateFormFile(uploadFilesField, "notes.txt")
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	_, _ = part.Write([]byte("plain text"))
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body.String(), writer.FormDataContentType()
}

func TestUploadSelectCommitRoundTrip(t *testing.T) {
	cms := newFakeCMS(t, "admin")
	console := newConsole(t, cms)
	console.signIn(t)

	body, contentType := multipartSelection(t)
	recorder := console.do(t, http.MethodPost, "/dashboard/media/uploads", body, "Content-Type", contentType)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected selection, got %d %s", recorder.Code, recorder.Body.String())
	}
	var selected media.SessionSnapshot
	decodeBody(t, recorder, &selected)
	if len(selected.Items) != 1 || !selected.Items[0].Processed || selected.Items[0].Type != media.TypeImage {
		t.Fatalf("expected one processed image, got %+v", selected.Items)
	}
	if len(selected.Rejected) != 1 || selected.Rejected[0].Name != "notes.txt" {
		t.Fatalf("expected text file rejected, got %+v", selected.Rejected)
	}

	if recorder := console.do(t, http.MethodPost, "/dashboard/media/uploads/"+selected.ID+"/commit", `{"folder":" "}`); recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected folder required, got %d", recorder.Code)
	}

	recorder = console.do(t, http.MethodPost, "/dashboard/media/uploads/"+selected.ID+"/commit", `{"folder":"f9","description":"hero"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected commit, got %d %s", recorder.Code, recorder.Body.String())
	}
	var committed struct {
		Files   []media.File          `json:"files"`
		Session media.SessionSnapshot `json:"session"`
	}
	decodeBody(t, recorder, &committed)
	if len(committed.Files) != 1 || committed.Files[0].URL != cms.server.URL+"/uploads/media/pixel.png" {
		t.Fatalf("expected repaired url, got %+v", committed.Files)
	}
	if committed.Session.Phase != media.PhaseFinalize {
		t.Fatalf("expected finalize, got %s", committed.Session.Phase)
	}
	if bearer, _ := cms.bearer("POST /api/media/upload"); bearer != "Bearer "+testToken {
		t.Fatalf("expected bearer on upload, got %q", bearer)
	}
	if upstream := cms.body("POST /api/media/upload"); !strings.Contains(upstream, "hero") || !strings.Contains(upstream, `name="folder"`) {
		t.Fatalf("expected multipart fields upstream")
	}
}

func TestCancelledUploadIsForgotten(t *testing.T) {
	console := newConsole(t, newFakeCMS(t, "admin"))
	console.signIn(t)

	body, contentType := multipartSelection(t)
	var selected media.SessionSnapshot
	decodeBody(t, console.do(t, http.MethodPost, "/dashboard/media/uploads", body, "Content-Type", contentType), &selected)

	var cancelled media.SessionSnapshot
	decodeBody(t, console.do(t, http.MethodDelete, "/dashboard/media/uploads/"+selected.ID, ""), &cancelled)
	if cancelled.Phase != media.PhaseCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Phase)
	}
	if recorder := console.do(t, http.MethodGet, "/dashboard/media/uploads/"+selected.ID, ""); recorder.Code != http.StatusNotFound {
		t.Fatalf("expected session gone, got %d", recorder.Code)
	}
}

func pdfSelection(t *testing.T, sizes ...int) (string, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for index, size := range sizes {
		part, err := writer.CreateFormFile(uploadFilesField, "doc-"+strconv.Itoa(index)+".pdf")
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		document := make([]byte, size)
		copy(document, "%PDF-1.4\n")
		_, _ = part.Write(document)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body.String(), writer.FormDataContentType()
}

func TestSelectFlagsOversizeFilesInsteadOfRejecting(t *testing.T) {
	console := newConsole(t, newFakeCMS(t, "admin"))
	console.signIn(t)

	body, contentType := pdfSelection(t, 11<<20)
	recorder := console.do(t, http.MethodPost, "/dashboard/media/uploads", body, "Content-Type", contentType)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected oversize file accepted, got %d %s", recorder.Code, recorder.Body.String())
	}
	var selected media.SessionSnapshot
	decodeBody(t, recorder, &selected)
	if len(selected.Items) != 1 || !selected.Items[0].Oversize {
		t.Fatalf("expected one oversize item, got %+v", selected.Items)
	}

	body, contentType = pdfSelection(t, 6<<20, 6<<20)
	recorder = console.do(t, http.MethodPost, "/dashboard/media/uploads", body, "Content-Type", contentType)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected batch above the per-file size accepted, got %d %s", recorder.Code, recorder.Body.String())
	}
	var batch media.SessionSnapshot
	decodeBody(t, recorder, &batch)
	if len(batch.Items) != 2 || batch.Items[0].Oversize || batch.Items[1].Oversize {
		t.Fatalf("expected two regular items, got %+v", batch.Items)
	}
}
