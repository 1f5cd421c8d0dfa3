package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fentro/cms-console/internal/apiclient"
	"github.com/fentro/cms-console/internal/auth"
	"github.com/fentro/cms-console/internal/content"
	"github.com/fentro/cms-console/internal/kvstore"
	"github.com/fentro/cms-console/internal/leads"
	"github.com/fentro/cms-console/internal/media"
	"github.com/fentro/cms-console/internal/notifications"
	"github.com/fentro/cms-console/internal/shell"
	"github.com/fentro/cms-console/internal/toast"
)

const testToken = "opaque-test-token"

// fakeCMS is an in-process stand-in for the CMS service.
type fakeCMS struct {
	server *httptest.Server

	mu      sync.Mutex
	role    string
	bearers map[string]string
	bodies  map[string]string
}

func newFakeCMS(t *testing.T, role string) *fakeCMS {
	t.Helper()
	cms := &fakeCMS{role: role, bearers: map[string]string{}, bodies: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		cms.record(r)
		_, _ = io.WriteString(w, `{"success":true,"token":"`+testToken+`","user":{"_id":"u1","email":"a@b.c","name":"Ada","role":"`+cms.role+`"}}`)
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		cms.record(r)
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"success":false,"message":"Session expired"}`)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"user":{"_id":"u1","email":"a@b.c","name":"Ada","role":"`+cms.role+`"}}`)
	})
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		cms.record(r)
		_, _ = io.WriteString(w, `{"data":[{"id":"n1","title":"New lead","read":false,"createdAt":"2024-01-01T00:00:00Z","data":{"kind":"lead","leadName":"Kim"}}]}`)
	})
	mux.HandleFunc("GET /api/leads", func(w http.ResponseWriter, r *http.Request) {
		cms.record(r)
		_, _ = io.WriteString(w, `{"data":[{"_id":"l1","name":"Kim","email":"kim@example.com","status":"new","statusHistory":[]}],"pagination":{"page":1,"total":1,"limit":8,"pages":1}}`)
	})
	mux.HandleFunc("POST /api/leads/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		cms.record(r)
		_, _ = io.WriteString(w, `{"success":true,"data":{"_id":"l1","name":"Kim","email":"kim@example.com","status":"contacted","statusHistory":[{"_id":"h1","status":"contacted","feedback":"called","updatedBy":"u1"}]}}`)
	})
	mux.HandleFunc("POST /api/blogs", func(w http.ResponseWriter, r *http.Request) {
		cms.record(r)
		_, _ = io.WriteString(w, `{"success":true,"data":{"_id":"b1","title":"Hello"}}`)
	})
	mux.HandleFunc("POST /api/media/upload", func(w http.ResponseWriter, r *http.Request) {
		cms.record(r)
		_, _ = io.WriteString(w, `{"success":true,"data":[{"_id":"f1","name":"pixel.png","type":"image","size":68,"url":"uploads/media/pixel.png","folder":"f9"}]}`)
	})
	mux.HandleFunc("GET /api/pages/slug/{slug}", func(w http.ResponseWriter, r *http.Request) {
		cms.record(r)
		if r.PathValue("slug") != "about" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"success":false,"message":"Page not found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"_id":"p1","slug":"about","title":"About","published":true}}`)
	})
	cms.server = httptest.NewServer(mux)
	t.Cleanup(cms.server.Close)
	return cms
}

func (f *fakeCMS) record(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.bearers[key] = r.Header.Get("Authorization")
	f.bodies[key] = string(body)
	f.mu.Unlock()
}

func (f *fakeCMS) bearer(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.bearers[key]
	return value, ok
}

func (f *fakeCMS) body(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

type console struct {
	handler http.Handler
	session *auth.Session
	center  *notifications.Center
	shell   *shell.Shell
	toasts  *toast.Host
	events  *EventDispatcher
}

func newConsole(t *testing.T, cms *fakeCMS) *console {
	t.Helper()
	return newConsoleWithStore(t, cms, kvstore.NewMemoryStore())
}

func newConsoleWithStore(t *testing.T, cms *fakeCMS, store kvstore.Store) *console {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	client, err := apiclient.New(apiclient.Config{BaseURL: cms.server.URL + "/api"})
	if err != nil {
		t.Fatalf("client failed: %v", err)
	}
	session, err := auth.NewSession(auth.SessionConfig{Gateway: auth.NewAPIGateway(client), Store: store})
	if err != nil {
		t.Fatalf("session failed: %v", err)
	}
	client.UseTokenSource(session)
	client.OnUnauthorized(session.Invalidate)
	session.Initialize(ctx)

	toasts := toast.NewHost(nil)
	book, err := notifications.LoadBookkeeping(ctx, store)
	if err != nil {
		t.Fatalf("bookkeeping failed: %v", err)
	}
	center, err := notifications.NewCenter(notifications.Config{
		Gateway:      notifications.NewAPIGateway(client),
		Bookkeeping:  book,
		Toasts:       toasts,
		PollInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("center failed: %v", err)
	}
	board, err := leads.NewBoard(leads.BoardConfig{
		Gateway: leads.NewAPIGateway(client),
		Toasts:  toasts,
		Actor: func() string {
			if user := session.Snapshot().User; user != nil {
				return user.ID
			}
			return ""
		},
	})
	if err != nil {
		t.Fatalf("board failed: %v", err)
	}
	mediaGateway := media.NewAPIGateway(client)
	library, err := media.NewLibrary(media.LibraryConfig{Gateway: mediaGateway, BaseURL: cms.server.URL, Toasts: toasts})
	if err != nil {
		t.Fatalf("library failed: %v", err)
	}
	collections := content.NewService(content.EditorConfig{Gateway: content.NewAPIGateway(client), Toasts: toasts})
	t.Cleanup(func() {
		board.Close()
		library.Close()
		collections.Close()
	})

	chrome := shell.New()
	events := NewEventDispatcher()
	handler, err := NewHTTPHandler(Dependencies{
		Session: session,
		Shell:   chrome,
		Toasts:  toasts,
		Center:  center,
		Leads:   board,
		Library: library,
		Uploads: func() (*media.Session, error) {
			return media.NewSession(media.SessionConfig{Uploader: mediaGateway, Toasts: toasts, BaseURL: cms.server.URL})
		},
		Content:   collections,
		Events:    events,
		Logger:    zap.NewNop(),
		Heartbeat: time.Hour,
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	return &console{handler: handler, session: session, center: center, shell: chrome, toasts: toasts, events: events}
}

func (c *console) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		request.Header.Set(headers[i], headers[i+1])
	}
	recorder := httptest.NewRecorder()
	c.handler.ServeHTTP(recorder, request)
	return recorder
}

func (c *console) signIn(t *testing.T) {
	t.Helper()
	recorder := c.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"pw"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("sign in failed: %d %s", recorder.Code, recorder.Body.String())
	}
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode %q: %v", recorder.Body.String(), err)
	}
}
