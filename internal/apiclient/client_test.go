package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fentro/cms-console/internal/apperr"
)

func newTestClient(t *testing.T, handler http.Handler, tokens TokenSource) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Config{BaseURL: server.URL + "/api/", Tokens: tokens})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, server
}

func TestNewRejectsMissingOrRelativeBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for missing base url")
	}
	if _, err := New(Config{BaseURL: "cms.local"}); err == nil {
		t.Fatalf("expected error for relative base url")
	}
}

func TestClientAttachesBearerAndDecodesData(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[{"id":"l1"}],"pagination":{"page":2,"total":17,"limit":8,"pages":3}}`)
	}), TokenSourceFunc(func() string { return "token-123" }))

	var items []struct {
		ID string `json:"id"`
	}
	pagination, err := client.GetData(context.Background(), "leads", url.Values{"page": {"2"}}, &items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer token-123" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotPath != "/api/leads" || gotQuery != "page=2" {
		t.Fatalf("unexpected request target %s?%s", gotPath, gotQuery)
	}
	if len(items) != 1 || items[0].ID != "l1" {
		t.Fatalf("unexpected items %#v", items)
	}
	if pagination == nil || pagination.Pages != 3 || pagination.Total != 17 {
		t.Fatalf("unexpected pagination %#v", pagination)
	}
}

func TestClientKeepsEscapedPathSegments(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{}}`)
	}), nil)

	if _, err := client.GetData(context.Background(), Sprintf("leads/%s", "a b/c"), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/leads/a%20b%2Fc" {
		t.Fatalf("expected single escaping, got %s", gotPath)
	}
}

func TestClientOmitsAuthorizationWhenAnonymous(t *testing.T) {
	var sawHeader bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["Authorization"]
		_, _ = io.WriteString(w, `{"data":null}`)
	}), TokenSourceFunc(func() string { return "" }))

	if _, err := client.GetData(context.Background(), "/pages/home", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawHeader {
		t.Fatalf("expected no authorization header for anonymous requests")
	}
}

func TestClientNormalizesErrorsAndFiresUnauthorized(t *testing.T) {
	status := http.StatusConflict
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"message":"Status already used","code":"duplicate_status"}`)
	}), nil)

	unauthorized := 0
	client.OnUnauthorized(func() { unauthorized++ })

	_, err := client.Do(context.Background(), http.MethodPost, "leads/1/status", nil, map[string]string{"status": "contacted"})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected apperr.Error, got %T", err)
	}
	if appErr.Status != http.StatusConflict || appErr.Code != "duplicate_status" || appErr.Message != "Status already used" {
		t.Fatalf("unexpected normalized error %#v", appErr)
	}
	if appErr.Kind != apperr.KindConflict {
		t.Fatalf("expected conflict kind, got %s", appErr.Kind)
	}
	if unauthorized != 0 {
		t.Fatalf("did not expect unauthorized hook for 409")
	}

	status = http.StatusUnauthorized
	_, err = client.Do(context.Background(), http.MethodGet, "auth/me", nil, nil)
	if apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected authorization kind, got %s", apperr.KindOf(err))
	}
	if unauthorized != 1 {
		t.Fatalf("expected unauthorized hook to fire once, got %d", unauthorized)
	}
}

func TestClientUsesErrorStringWhenMessageMissing(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":"upstream_unavailable"}`)
	}), nil)

	_, err := client.Do(context.Background(), http.MethodGet, "leads", nil, nil)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected apperr.Error, got %T", err)
	}
	if appErr.Kind != apperr.KindTransient || appErr.Code != "upstream_unavailable" {
		t.Fatalf("unexpected error %#v", appErr)
	}
}

func TestClientTreatsSuccessFalseAsRefusal(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"message":"Notification not found"}`)
	}), nil)

	err := client.PostJSON(context.Background(), "notifications/n1/read", nil, nil)
	if apperr.KindOf(err) != apperr.KindConflict || apperr.MessageOf(err) != "Notification not found" {
		t.Fatalf("expected refusal, got %v", err)
	}
}

func TestClientCancellationResolvesWithCancelledError(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), nil)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Do(ctx, http.MethodGet, "leads", nil, nil)
	if !apperr.IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if apperr.ShouldToast(err) {
		t.Fatalf("cancelled errors must not be toasted")
	}
}

func TestUploadReportsMonotonicProgressWithFinalTotals(t *testing.T) {
	var receivedFields map[string][]string
	var receivedFiles []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		receivedFields = r.MultipartForm.Value
		for _, header := range r.MultipartForm.File["files"] {
			receivedFiles = append(receivedFiles, header.Filename)
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"f1"}]}`)
	}), nil)

	var mu sync.Mutex
	var calls [][2]int64
	payload := strings.Repeat("x", 200_000)
	_, err := client.Upload(context.Background(), "media/upload", Upload{
		Fields: map[string]string{"folder": "folder-1", "type": "image"},
		Files: []UploadFile{{
			FileName:    "a.png",
			ContentType: "image/png",
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader(payload)), nil
			},
		}},
	}, func(sent, total int64) {
		mu.Lock()
		calls = append(calls, [2]int64{sent, total})
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("unexpected upload error: %v", err)
	}

	if len(receivedFiles) != 1 || receivedFiles[0] != "a.png" {
		t.Fatalf("unexpected files %v", receivedFiles)
	}
	if receivedFields["folder"][0] != "folder-1" {
		t.Fatalf("unexpected fields %v", receivedFields)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) == 0 {
		t.Fatalf("expected progress calls")
	}
	last := calls[len(calls)-1]
	if last[0] != last[1] || last[1] <= int64(len(payload)) {
		t.Fatalf("expected final call with totals, got %v", last)
	}
	for i := 1; i < len(calls); i++ {
		if calls[i][0] < calls[i-1][0] {
			t.Fatalf("progress regressed at %d: %v", i, calls)
		}
	}
}

func TestWithBearerOverridesTokenSource(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"user":{"id":"u1"}}`)
	}), TokenSourceFunc(func() string { return "" }))

	if _, err := client.Do(WithBearer(context.Background(), "stored-token"), http.MethodGet, "auth/me", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer stored-token" {
		t.Fatalf("expected override bearer, got %q", gotAuth)
	}
}
