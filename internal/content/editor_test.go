package content

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fentro/cms-console/internal/apiclient"
	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/toast"
)

type stubGateway struct {
	mu        sync.Mutex
	documents map[string]Document
	queries   []ListQuery
	writeErr  error
	block     chan struct{}
	published map[string]bool
	slugs     map[string]Document
}

func newStubGateway(documents ...Document) *stubGateway {
	gateway := &stubGateway{documents: map[string]Document{}, published: map[string]bool{}, slugs: map[string]Document{}}
	for _, document := range documents {
		gateway.documents[document.ID()] = document
	}
	return gateway
}

func (g *stubGateway) List(_ context.Context, _ Spec, query ListQuery) (ListResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, query)
	result := ListResult{Pagination: apiclient.Pagination{Page: query.Page, Limit: query.Limit, Total: len(g.documents), Pages: 2}}
	for _, document := range g.documents {
		result.Items = append(result.Items, cloneDocument(document))
	}
	return result, nil
}

func (g *stubGateway) Get(_ context.Context, _ Spec, id string) (Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	document, ok := g.documents[id]
	if !ok {
		return nil, apperr.FromStatus(404, "not_found", "Record not found")
	}
	return cloneDocument(document), nil
}

func (g *stubGateway) BySlug(_ context.Context, _ Spec, slug string) (Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	document, ok := g.slugs[slug]
	if !ok {
		return nil, apperr.FromStatus(404, "not_found", "Page not found")
	}
	return document, nil
}

func (g *stubGateway) Create(_ context.Context, _ Spec, document Document) (Document, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writeErr != nil {
		return nil, g.writeErr
	}
	created := cloneDocument(document)
	created["id"] = "new-1"
	g.documents["new-1"] = created
	return created, nil
}

func (g *stubGateway) Update(_ context.Context, _ Spec, id string, changes Document) (Document, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writeErr != nil {
		return nil, g.writeErr
	}
	updated := cloneDocument(g.documents[id])
	for key, value := range changes {
		updated[key] = value
	}
	g.documents[id] = updated
	return updated, nil
}

func (g *stubGateway) Delete(_ context.Context, _ Spec, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writeErr != nil {
		return g.writeErr
	}
	delete(g.documents, id)
	return nil
}

func (g *stubGateway) SetPublished(_ context.Context, _ Spec, id string, published bool) (Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.published[id] = published
	updated := cloneDocument(g.documents[id])
	updated["published"] = published
	g.documents[id] = updated
	return updated, nil
}

func newTestEditor(t *testing.T, name string, gateway *stubGateway) (*Editor, *toast.Recorder) {
	t.Helper()
	recorder := &toast.Recorder{}
	service := NewService(EditorConfig{Gateway: gateway, Toasts: recorder, SearchDebounce: 20 * time.Millisecond})
	t.Cleanup(service.Close)
	editor, err := service.Editor(name)
	if err != nil {
		t.Fatalf("editor failed: %v", err)
	}
	return editor, recorder
}

func TestEditorLoadAndSearch(t *testing.T) {
	gateway := newStubGateway(Document{"id": "b1", "title": "Hello"})
	editor, _ := newTestEditor(t, "blogs", gateway)
	ctx := context.Background()

	if err := editor.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := editor.SetPage(ctx, 2); err != nil {
		t.Fatalf("page failed: %v", err)
	}
	if err := editor.SetPage(ctx, 3); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("expected invalid page, got %v", err)
	}
	editor.SetSearch(ctx, "he")
	editor.SetSearch(ctx, " hello ")
	editor.FlushSearch()

	gateway.mu.Lock()
	queries := append([]ListQuery(nil), gateway.queries...)
	gateway.mu.Unlock()
	if len(queries) != 3 {
		t.Fatalf("expected one debounced search load, got %+v", queries)
	}
	last := queries[2]
	if last.Search != "hello" || last.Page != 1 || last.Limit != DefaultPageSize {
		t.Fatalf("unexpected search query %+v", last)
	}
	snapshot := editor.Snapshot()
	if snapshot.Loading || len(snapshot.Items) != 1 || snapshot.Collection != Blogs {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestEditorCreateUpdateDelete(t *testing.T) {
	gateway := newStubGateway(Document{"id": "s1", "email": "a@example.com"})
	editor, recorder := newTestEditor(t, "subscribers", gateway)
	ctx := context.Background()
	if err := editor.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if _, err := editor.Create(ctx, Document{"email": "nope"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	created, err := editor.Create(ctx, Document{"email": "b@example.com"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID() != "new-1" {
		t.Fatalf("unexpected created %+v", created)
	}
	if _, err := editor.Update(ctx, "s1", Document{"name": "Ann"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	snapshot := editor.Snapshot()
	if len(snapshot.Items) != 2 || snapshot.Items[0].ID() != "new-1" {
		t.Fatalf("expected created row first, got %+v", snapshot.Items)
	}
	if err := editor.Delete(ctx, "s1", false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	if err := editor.Delete(ctx, "s1", true); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(editor.Snapshot().Items) != 1 {
		t.Fatalf("expected row removed")
	}
	if recorder.Count(toast.LevelSuccess) != 3 {
		t.Fatalf("expected three success toasts, got %+v", recorder.Toasts())
	}
}

func TestEditorFailureToastsServerMessage(t *testing.T) {
	gateway := newStubGateway(Document{"id": "p1", "title": "Home"})
	gateway.writeErr = apperr.FromStatus(409, "slug_taken", "Slug already in use")
	editor, recorder := newTestEditor(t, "pages", gateway)

	if _, err := editor.Update(context.Background(), "p1", Document{"slug": "home"}); err == nil {
		t.Fatalf("expected failure")
	}
	toasts := recorder.Toasts()
	if len(toasts) != 1 || toasts[0].Message != "Slug already in use" {
		t.Fatalf("unexpected toasts %+v", toasts)
	}
}

func TestEditorSerializesSavesPerRecord(t *testing.T) {
	gateway := newStubGateway(Document{"id": "p1", "title": "Home"})
	gateway.block = make(chan struct{})
	editor, _ := newTestEditor(t, "pages", gateway)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := editor.Update(ctx, "p1", Document{"title": "One"})
		done <- err
	}()
	deadline := time.Now().Add(time.Second)
	for len(editor.Snapshot().Saving) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first save never started")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := editor.Update(ctx, "p1", Document{"title": "Two"}); !errors.Is(err, ErrSaveInFlight) {
		t.Fatalf("expected in-flight refusal, got %v", err)
	}
	close(gateway.block)
	if err := <-done; err != nil {
		t.Fatalf("first save failed: %v", err)
	}
}

func TestEditorCancelledSaveLeavesStateUntouched(t *testing.T) {
	gateway := newStubGateway(Document{"id": "p1", "title": "Home"})
	editor, recorder := newTestEditor(t, "pages", gateway)
	if err := editor.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := editor.Update(ctx, "p1", Document{"title": "Changed"}); !apperr.IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if title := editor.Snapshot().Items[0].String("title"); title != "Home" {
		t.Fatalf("expected untouched row, got %q", title)
	}
	if len(recorder.Toasts()) != 0 {
		t.Fatalf("expected no toasts, got %+v", recorder.Toasts())
	}
}

func TestEditorPublishing(t *testing.T) {
	gateway := newStubGateway(Document{"id": "c1", "subject": "Hello"})
	campaigns, _ := newTestEditor(t, "campaigns", gateway)
	if _, err := campaigns.SetPublished(context.Background(), "c1", true); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if !gateway.published["c1"] {
		t.Fatalf("expected publish call")
	}
	sections, _ := newTestEditor(t, "sections", gateway)
	if _, err := sections.SetPublished(context.Background(), "c1", true); !errors.Is(err, ErrNotPublishable) {
		t.Fatalf("expected not publishable, got %v", err)
	}
}

func TestServicePublishedHidesDrafts(t *testing.T) {
	gateway := newStubGateway()
	gateway.slugs["about"] = Document{"id": "p1", "slug": "about", "published": true}
	gateway.slugs["draft"] = Document{"id": "p2", "slug": "draft", "status": "draft"}
	service := NewService(EditorConfig{Gateway: gateway})

	document, err := service.Published(context.Background(), "pages", "about")
	if err != nil || document.ID() != "p1" {
		t.Fatalf("expected published page, got %+v %v", document, err)
	}
	if _, err := service.Published(context.Background(), "pages", "draft"); !errors.Is(err, ErrNotPublished) {
		t.Fatalf("expected draft hidden, got %v", err)
	}
	if _, err := service.Published(context.Background(), "users", "x"); !errors.Is(err, ErrNotPublishable) {
		t.Fatalf("expected not publishable, got %v", err)
	}
}
