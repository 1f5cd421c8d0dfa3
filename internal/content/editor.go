package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fentro/cms-console/internal/apiclient"
	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/debounce"
	"github.com/fentro/cms-console/internal/toast"
)

const (
	DefaultPageSize       = 10
	defaultSearchDebounce = 500 * time.Millisecond
)

var (
	ErrConfirmationRequired = apperr.Validation("confirmation_required", "Confirm the deletion first")
	ErrNotPublishable       = apperr.Validation("not_publishable", "This collection has no published state")
	ErrSaveInFlight         = apperr.New(apperr.KindConflict, "save_in_flight", "A save for this record is already running")
	ErrInvalidPage          = apperr.Validation("page_invalid", "Page is out of range")
)

// EditorConfig wires an Editor.
type EditorConfig struct {
	Gateway        Gateway
	Toasts         toast.Emitter
	Logger         *zap.Logger
	PageSize       int
	SearchDebounce time.Duration
}

// EditorSnapshot is the read-only projection of one collection screen.
type EditorSnapshot struct {
	Collection Collection           `json:"collection"`
	Query      ListQuery            `json:"query"`
	Items      []Document           `json:"items"`
	Pagination apiclient.Pagination `json:"pagination"`
	Loading    bool                 `json:"loading"`
	Saving     []string             `json:"saving,omitempty"`
}

// Editor holds the list and the write commands of one collection.
type Editor struct {
	spec    Spec
	gateway Gateway
	toasts  toast.Emitter
	logger  *zap.Logger

	fetches  singleflight.Group
	searches *debounce.Debouncer

	mu         sync.RWMutex
	query      ListQuery
	generation uint64
	items      []Document
	pagination apiclient.Pagination
	loading    bool
	saving     map[string]struct{}
}

// NewEditor builds the editor for spec.
func NewEditor(spec Spec, cfg EditorConfig) (*Editor, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("content: gateway is required")
	}
	editor := &Editor{
		spec:    spec,
		gateway: cfg.Gateway,
		toasts:  cfg.Toasts,
		logger:  cfg.Logger,
		saving:  make(map[string]struct{}),
	}
	if editor.toasts == nil {
		editor.toasts = toast.Discard{}
	}
	if editor.logger == nil {
		editor.logger = zap.NewNop()
	}
	editor.logger = editor.logger.With(zap.String("collection", string(spec.Name)))
	limit := cfg.PageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}
	delay := cfg.SearchDebounce
	if delay == 0 {
		delay = defaultSearchDebounce
	}
	editor.searches = debounce.New(delay)
	editor.query = ListQuery{Page: 1, Limit: limit}
	return editor, nil
}

// Spec returns the collection the editor serves.
func (e *Editor) Spec() Spec { return e.spec }

// Close drops a pending debounced search.
func (e *Editor) Close() { e.searches.Stop() }

// Snapshot copies the editor state.
func (e *Editor) Snapshot() EditorSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshot := EditorSnapshot{
		Collection: e.spec.Name,
		Query:      e.query,
		Items:      make([]Document, 0, len(e.items)),
		Pagination: e.pagination,
		Loading:    e.loading,
	}
	for _, item := range e.items {
		snapshot.Items = append(snapshot.Items, cloneDocument(item))
	}
	for id := range e.saving {
		snapshot.Saving = append(snapshot.Saving, id)
	}
	return snapshot
}

// Load fetches the current page. Stale results are dropped.
func (e *Editor) Load(ctx context.Context) error {
	e.mu.Lock()
	query := e.query
	generation := e.generation
	e.loading = true
	e.mu.Unlock()

	key := fmt.Sprintf("%d|%d|%s", query.Page, query.Limit, query.Search)
	result, err, _ := e.fetches.Do(key, func() (any, error) {
		return e.gateway.List(ctx, e.spec, query)
	})

	e.mu.Lock()
	if generation != e.generation {
		e.mu.Unlock()
		return nil
	}
	e.loading = false
	if err != nil {
		e.mu.Unlock()
		e.report(err, fmt.Sprintf("Failed to load %s", e.spec.Name), "list")
		return err
	}
	page := result.(ListResult)
	e.items = page.Items
	e.pagination = page.Pagination
	e.mu.Unlock()
	return nil
}

// SetPage moves to page and reloads.
func (e *Editor) SetPage(ctx context.Context, page int) error {
	e.mu.Lock()
	if page < 1 || (e.pagination.Pages > 0 && page > e.pagination.Pages) {
		e.mu.Unlock()
		return ErrInvalidPage
	}
	e.query.Page = page
	e.generation++
	e.mu.Unlock()
	return e.Load(ctx)
}

// SetSearch records term and reloads from page one once input settles.
func (e *Editor) SetSearch(ctx context.Context, term string) {
	e.mu.Lock()
	e.query.Search = strings.TrimSpace(term)
	e.query.Page = 1
	e.generation++
	e.loading = true
	e.mu.Unlock()
	e.searches.Trigger(func() {
		_ = e.Load(ctx)
	})
}

// FlushSearch runs a pending search now.
func (e *Editor) FlushSearch() { e.searches.Flush() }

// Get fetches one record.
func (e *Editor) Get(ctx context.Context, id string) (Document, error) {
	document, err := e.gateway.Get(ctx, e.spec, id)
	if err != nil {
		e.report(err, "Failed to load record", "get")
		return nil, err
	}
	return document, nil
}

// Create validates and stores a new record.
func (e *Editor) Create(ctx context.Context, document Document) (Document, error) {
	if err := e.spec.Check(document, false); err != nil {
		return nil, err
	}
	return e.save(ctx, "", "created", func() (Document, error) {
		return e.gateway.Create(ctx, e.spec, document)
	})
}

// Update applies a partial change to id.
func (e *Editor) Update(ctx context.Context, id string, changes Document) (Document, error) {
	if err := e.spec.Check(changes, true); err != nil {
		return nil, err
	}
	return e.save(ctx, id, "updated", func() (Document, error) {
		return e.gateway.Update(ctx, e.spec, id, changes)
	})
}

// SetPublished publishes or unpublishes id.
func (e *Editor) SetPublished(ctx context.Context, id string, published bool) (Document, error) {
	if !e.spec.Publishable {
		return nil, ErrNotPublishable
	}
	verb := "unpublished"
	if published {
		verb = "published"
	}
	return e.save(ctx, id, verb, func() (Document, error) {
		return e.gateway.SetPublished(ctx, e.spec, id, published)
	})
}

// Delete removes id after the user confirmed.
func (e *Editor) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if !e.acquire(id) {
		return ErrSaveInFlight
	}
	defer e.release(id)
	if err := e.gateway.Delete(ctx, e.spec, id); err != nil {
		e.report(err, "Failed to delete record", "delete")
		return err
	}
	if ctx.Err() != nil {
		return apperr.ErrCancelled
	}
	e.mu.Lock()
	kept := e.items[:0:0]
	for _, item := range e.items {
		if item.ID() != id {
			kept = append(kept, item)
		}
	}
	if len(kept) != len(e.items) && e.pagination.Total > 0 {
		e.pagination.Total--
	}
	e.items = kept
	e.mu.Unlock()
	e.toasts.Success("Record deleted")
	return nil
}

// save runs write with at most one in flight per record. A cancelled
// context never touches local state.
func (e *Editor) save(ctx context.Context, id, verb string, write func() (Document, error)) (Document, error) {
	lock := id
	if lock == "" {
		lock = "new"
	}
	if !e.acquire(lock) {
		return nil, ErrSaveInFlight
	}
	defer e.release(lock)

	document, err := write()
	if err != nil {
		e.report(err, "Failed to save record", verb)
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, apperr.ErrCancelled
	}
	if document != nil {
		e.upsert(document)
	}
	e.toasts.Success(fmt.Sprintf("Record %s", verb))
	return document, nil
}

func (e *Editor) upsert(document Document) {
	id := document.ID()
	if id == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.items {
		if e.items[i].ID() == id {
			e.items[i] = cloneDocument(document)
			return
		}
	}
	e.items = append([]Document{cloneDocument(document)}, e.items...)
	e.pagination.Total++
}

func (e *Editor) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.saving[key]; busy {
		return false
	}
	e.saving[key] = struct{}{}
	return true
}

func (e *Editor) release(key string) {
	e.mu.Lock()
	delete(e.saving, key)
	e.mu.Unlock()
}

func (e *Editor) report(err error, fallback, operation string) {
	if apperr.IsCancelled(err) {
		return
	}
	e.logger.Warn("content operation failed", zap.String("operation", operation), zap.Error(err))
	if !apperr.ShouldToast(err) {
		return
	}
	message := apperr.MessageOf(err)
	if message == apperr.GenericMessage {
		message = fallback
	}
	e.toasts.Error(message)
}

func cloneDocument(document Document) Document {
	copied := make(Document, len(document))
	for key, value := range document {
		copied[key] = value
	}
	return copied
}
