package notifications

import (
	"context"
	"sync"

	"github.com/fentro/cms-console/internal/kvstore"
)

// Bookkeeping is the persisted set of notification ids already toasted in
// this profile. It only grows; Clear is the explicit user action.
type Bookkeeping struct {
	store kvstore.Store

	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
}

// LoadBookkeeping reads the persisted set; absent or corrupt data reads as empty.
func LoadBookkeeping(ctx context.Context, store kvstore.Store) (*Bookkeeping, error) {
	values, err := kvstore.ReadStringList(ctx, store, kvstore.KeyShownNotificationIDs)
	if err != nil {
		return nil, err
	}
	book := &Bookkeeping{store: store, ids: make(map[string]struct{}, len(values))}
	for _, id := range values {
		if _, ok := book.ids[id]; ok || id == "" {
			continue
		}
		book.ids[id] = struct{}{}
		book.order = append(book.order, id)
	}
	return book, nil
}

// Shown reports whether id has already produced a toast.
func (b *Bookkeeping) Shown(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.ids[id]
	return ok
}

// MarkShown adds id and persists the set.
func (b *Bookkeeping) MarkShown(ctx context.Context, id string) error {
	b.mu.Lock()
	if _, ok := b.ids[id]; ok {
		b.mu.Unlock()
		return nil
	}
	b.ids[id] = struct{}{}
	b.order = append(b.order, id)
	snapshot := append([]string(nil), b.order...)
	b.mu.Unlock()
	return kvstore.WriteStringList(ctx, b.store, kvstore.KeyShownNotificationIDs, snapshot)
}

// IDs returns the set in insertion order.
func (b *Bookkeeping) IDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.order...)
}

// Clear forgets every id.
func (b *Bookkeeping) Clear(ctx context.Context) error {
	b.mu.Lock()
	b.ids = make(map[string]struct{})
	b.order = nil
	b.mu.Unlock()
	return kvstore.WriteStringList(ctx, b.store, kvstore.KeyShownNotificationIDs, []string{})
}

// shouldToast: upcoming reminders fire on every observation, everything else once.
func shouldToast(n Notification, book *Bookkeeping) bool {
	if n.IsUpcoming() {
		return true
	}
	return !book.Shown(n.ID)
}
