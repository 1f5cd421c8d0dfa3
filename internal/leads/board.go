// Package leads implements the lead list, the status workflow, meeting
// scheduling, and the status history timeline.
package leads

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
	DefaultPageSize       = 8
	defaultSearchDebounce = 500 * time.Millisecond
)

// SortField is a sortable column.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortStatus    SortField = "status"
)

// SortOrder is the sort direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

var (
	ErrConfirmationRequired = apperr.Validation("confirmation_required", "Confirm the deletion first")
	ErrInvalidPage          = apperr.Validation("page_invalid", "Page is out of range")
	ErrInvalidSort          = apperr.Validation("sort_invalid", "Leads can be sorted by createdAt or status")
)

// ListQuery is the server-side list request.
type ListQuery struct {
	Page   int       `json:"page"`
	Limit  int       `json:"limit"`
	Sort   SortField `json:"sort"`
	Order  SortOrder `json:"order"`
	Search string    `json:"search,omitempty"`
}

func (q ListQuery) key() string {
	return fmt.Sprintf("%d|%d|%s|%s|%s", q.Page, q.Limit, q.Sort, q.Order, q.Search)
}

// BoardConfig wires a Board.
type BoardConfig struct {
	Gateway        Gateway
	Toasts         toast.Emitter
	Actor          func() string
	PageSize       int
	SearchDebounce time.Duration
	Logger         *zap.Logger
	Clock          func() time.Time
}

// BoardSnapshot is the read-only projection of the board.
type BoardSnapshot struct {
	Query         ListQuery            `json:"query"`
	Leads         []Lead               `json:"leads"`
	Pagination    apiclient.Pagination `json:"pagination"`
	Loading       bool                 `json:"loading"`
	Transitioning []string             `json:"transitioning,omitempty"`
}

// Board owns the lead list and every command issued against it.
type Board struct {
	gateway Gateway
	toasts  toast.Emitter
	actor   func() string
	logger  *zap.Logger
	clock   func() time.Time

	fetches  singleflight.Group
	searches *debounce.Debouncer

	mu         sync.RWMutex
	query      ListQuery
	generation uint64
	leads      []Lead
	pagination apiclient.Pagination
	loading    bool
	inFlight   map[string]struct{}
	expanded   map[string]string
}

// NewBoard validates cfg.
func NewBoard(cfg BoardConfig) (*Board, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("leads: gateway is required")
	}
	board := &Board{
		gateway:  cfg.Gateway,
		toasts:   cfg.Toasts,
		actor:    cfg.Actor,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		inFlight: make(map[string]struct{}),
		expanded: make(map[string]string),
	}
	if board.toasts == nil {
		board.toasts = toast.Discard{}
	}
	if board.actor == nil {
		board.actor = func() string { return "" }
	}
	if board.logger == nil {
		board.logger = zap.NewNop()
	}
	if board.clock == nil {
		board.clock = time.Now
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	delay := cfg.SearchDebounce
	if delay == 0 {
		delay = defaultSearchDebounce
	}
	board.searches = debounce.New(delay)
	board.query = ListQuery{Page: 1, Limit: pageSize, Sort: SortCreatedAt, Order: OrderDesc}
	return board, nil
}

// Close drops any pending debounced search.
func (b *Board) Close() {
	b.searches.Stop()
}

// Snapshot returns a copy of the board state.
func (b *Board) Snapshot() BoardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snapshot := BoardSnapshot{
		Query:      b.query,
		Leads:      make([]Lead, 0, len(b.leads)),
		Pagination: b.pagination,
		Loading:    b.loading,
	}
	for _, lead := range b.leads {
		snapshot.Leads = append(snapshot.Leads, lead.Clone())
	}
	for id := range b.inFlight {
		if !strings.HasPrefix(id, meetingLockPrefix) {
			snapshot.Transitioning = append(snapshot.Transitioning, id)
		}
	}
	return snapshot
}

// Load fetches the current query. Identical concurrent loads share one
// request; a result for a query that has since changed is dropped.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	query := b.query
	generation := b.generation
	b.loading = true
	b.mu.Unlock()

	result, err, _ := b.fetches.Do(query.key(), func() (any, error) {
		return b.gateway.List(ctx, query)
	})

	b.mu.Lock()
	if generation != b.generation {
		b.mu.Unlock()
		return nil
	}
	b.loading = false
	if err != nil {
		b.mu.Unlock()
		b.report(err, "Failed to load leads", "list")
		return err
	}
	page := result.(Page)
	b.leads = append([]Lead(nil), page.Leads...)
	b.pagination = page.Pagination
	b.mu.Unlock()
	return nil
}

// SetPage moves to page and reloads.
func (b *Board) SetPage(ctx context.Context, page int) error {
	b.mu.Lock()
	if page < 1 || (b.pagination.Pages > 0 && page > b.pagination.Pages) {
		b.mu.Unlock()
		return ErrInvalidPage
	}
	b.query.Page = page
	b.generation++
	b.mu.Unlock()
	return b.Load(ctx)
}

// SetSort changes ordering and reloads from the first page.
func (b *Board) SetSort(ctx context.Context, field SortField, order SortOrder) error {
	if field != SortCreatedAt && field != SortStatus {
		return ErrInvalidSort
	}
	if order != OrderAsc {
		order = OrderDesc
	}
	b.mu.Lock()
	b.query.Sort = field
	b.query.Order = order
	b.query.Page = 1
	b.generation++
	b.mu.Unlock()
	return b.Load(ctx)
}

// SetSearch records the term immediately and reloads once input settles.
func (b *Board) SetSearch(ctx context.Context, term string) {
	b.mu.Lock()
	b.query.Search = strings.TrimSpace(term)
	b.query.Page = 1
	b.generation++
	b.loading = true
	b.mu.Unlock()
	b.searches.Trigger(func() {
		_ = b.Load(ctx)
	})
}

// FlushSearch runs a pending debounced search now.
func (b *Board) FlushSearch() {
	b.searches.Flush()
}

// Lead returns the cached lead, if listed.
func (b *Board) Lead(id string) (Lead, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, lead := range b.leads {
		if lead.ID == id {
			return lead.Clone(), true
		}
	}
	return Lead{}, false
}

// Detail fetches id from the service and refreshes the cached row.
func (b *Board) Detail(ctx context.Context, id string) (Lead, error) {
	lead, err := b.gateway.Get(ctx, id)
	if err != nil {
		b.report(err, "Failed to load lead", "detail")
		return Lead{}, err
	}
	b.replace(lead)
	return lead.Clone(), nil
}

// Delete removes id after the user confirmed.
func (b *Board) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := b.gateway.Delete(ctx, id); err != nil {
		b.report(err, "Failed to delete lead", "delete")
		return err
	}
	if ctx.Err() != nil {
		return apperr.ErrCancelled
	}

	b.mu.Lock()
	kept := b.leads[:0:0]
	for _, lead := range b.leads {
		if lead.ID != id {
			kept = append(kept, lead)
		}
	}
	if len(kept) != len(b.leads) && b.pagination.Total > 0 {
		b.pagination.Total--
	}
	b.leads = kept
	delete(b.expanded, id)
	b.mu.Unlock()

	b.toasts.Success("Lead deleted")
	return nil
}

// History returns id's status timeline.
func (b *Board) History(ctx context.Context, id string) (Timeline, error) {
	lead, err := b.resolve(ctx, id)
	if err != nil {
		return Timeline{}, err
	}
	timeline := NewTimeline(lead.StatusHistory)
	b.mu.RLock()
	expanded := b.expanded[id]
	b.mu.RUnlock()
	if timeline.has(expanded) {
		timeline.Expanded = expanded
	}
	return timeline, nil
}

// ToggleHistory expands entryID in id's timeline, collapsing the previous one.
func (b *Board) ToggleHistory(ctx context.Context, id, entryID string) (Timeline, error) {
	timeline, err := b.History(ctx, id)
	if err != nil {
		return Timeline{}, err
	}
	timeline = timeline.Toggle(entryID)
	b.mu.Lock()
	b.expanded[id] = timeline.Expanded
	b.mu.Unlock()
	return timeline, nil
}

func (b *Board) resolve(ctx context.Context, id string) (Lead, error) {
	if lead, ok := b.Lead(id); ok {
		return lead, nil
	}
	return b.Detail(ctx, id)
}

func (b *Board) replace(updated Lead) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.leads {
		if b.leads[i].ID == updated.ID {
			b.leads[i] = updated.Clone()
			return
		}
	}
}

func (b *Board) acquire(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, busy := b.inFlight[key]; busy {
		return false
	}
	b.inFlight[key] = struct{}{}
	return true
}

func (b *Board) release(key string) {
	b.mu.Lock()
	delete(b.inFlight, key)
	b.mu.Unlock()
}

func (b *Board) report(err error, fallback, operation string) {
	if apperr.IsCancelled(err) {
		return
	}
	b.logger.Warn("lead operation failed", zap.String("operation", operation), zap.Error(err))
	if !apperr.ShouldToast(err) {
		return
	}
	message := apperr.MessageOf(err)
	if message == apperr.GenericMessage {
		message = fallback
	}
	b.toasts.Error(message)
}
