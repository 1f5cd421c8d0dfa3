package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/metrics"
	"github.com/fentro/cms-console/internal/toast"
)

const (
	defaultPollInterval = 30 * time.Second

	pollFailedMessage   = "Failed to load notifications"
	markReadFailed      = "Failed to mark notification as read"
	markAllReadFailed   = "Failed to mark all notifications as read"
	deleteFailedMessage = "Failed to delete notification"
)

var (
	// ErrMounted is returned by Mount while the center is already running.
	ErrMounted = errors.New("notifications: center already mounted")
	// ErrNotMounted is returned by operations issued outside a mount.
	ErrNotMounted = errors.New("notifications: center is not mounted")
	// ErrUnknownNotification is returned for ids absent from local state.
	ErrUnknownNotification = apperr.New(apperr.KindNotFound, "notification_not_found", "Notification not found")
)

// Config wires a Center.
type Config struct {
	Gateway      Gateway
	Push         Subscriber
	Bookkeeping  *Bookkeeping
	Toasts       toast.Emitter
	PollInterval time.Duration
	Logger       *zap.Logger
	Clock        func() time.Time
}

// Snapshot is the published view of the center.
type Snapshot struct {
	Items   []Notification `json:"items"`
	Rows    []Row          `json:"rows"`
	Unread  int            `json:"unreadCount"`
	Loading bool           `json:"loading"`
	Mounted bool           `json:"mounted"`
}

type state struct {
	items       []Notification
	unread      int
	loading     bool
	pollFailing bool
}

type event struct {
	apply   func(*state)
	applied chan struct{}
}

type mount struct {
	events  chan event
	done    chan struct{}
	refresh chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Center merges polled and pushed notifications through a single reducer
// goroutine. It runs only between Mount and Unmount.
type Center struct {
	gateway  Gateway
	push     Subscriber
	book     *Bookkeeping
	toasts   toast.Emitter
	interval time.Duration
	logger   *zap.Logger
	clock    func() time.Time

	lifecycle sync.Mutex
	current   *mount

	mu         sync.RWMutex
	published  state
	mounted    bool
	listeners  map[int]func(Snapshot)
	nextListen int
}

// NewCenter validates cfg.
func NewCenter(cfg Config) (*Center, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("notifications: gateway is required")
	}
	if cfg.Bookkeeping == nil {
		return nil, errors.New("notifications: bookkeeping is required")
	}
	center := &Center{
		gateway:   cfg.Gateway,
		push:      cfg.Push,
		book:      cfg.Bookkeeping,
		toasts:    cfg.Toasts,
		interval:  cfg.PollInterval,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		listeners: make(map[int]func(Snapshot)),
	}
	if center.toasts == nil {
		center.toasts = toast.Discard{}
	}
	if center.interval <= 0 {
		center.interval = defaultPollInterval
	}
	if center.logger == nil {
		center.logger = zap.NewNop()
	}
	if center.clock == nil {
		center.clock = time.Now
	}
	return center, nil
}

// Mount starts the reducer, the poll loop, and the push subscription.
func (c *Center) Mount(parent context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.current != nil {
		return ErrMounted
	}

	ctx, cancel := context.WithCancel(parent)
	m := &mount{
		events:  make(chan event),
		done:    make(chan struct{}),
		refresh: make(chan struct{}, 1),
		cancel:  cancel,
	}
	c.current = m
	c.mu.Lock()
	c.published = state{}
	c.mounted = true
	c.mu.Unlock()

	m.wg.Add(2)
	go c.reduce(ctx, m)
	go c.pollLoop(ctx, m)
	if c.push != nil {
		m.wg.Add(1)
		go c.pushLoop(ctx, m)
	}
	return nil
}

// Unmount stops every loop and waits for them; no dispatch happens afterwards.
func (c *Center) Unmount() {
	c.lifecycle.Lock()
	m := c.current
	c.current = nil
	c.lifecycle.Unlock()
	if m == nil {
		return
	}
	m.cancel()
	m.wg.Wait()

	c.mu.Lock()
	c.published = state{}
	c.mounted = false
	c.mu.Unlock()
	c.notify()
}

// Mounted reports whether the center is running.
func (c *Center) Mounted() bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.current != nil
}

// Refresh asks the poll loop for an immediate fetch. Calls made while one
// is already pending coalesce.
func (c *Center) Refresh() {
	m := c.active()
	if m == nil {
		return
	}
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// MarkAsRead flips id to read locally, then on the server. A failed server
// call restores the previous flag and toasts.
func (c *Center) MarkAsRead(ctx context.Context, id string) error {
	m := c.active()
	if m == nil {
		return ErrNotMounted
	}
	var previous, found bool
	if !c.dispatch(m, func(s *state) {
		s.items, previous, found = SetRead(s.items, id, true)
		s.unread = CountUnread(s.items)
	}) {
		return ErrNotMounted
	}
	if !found {
		return ErrUnknownNotification
	}
	if previous {
		return nil
	}

	if err := c.gateway.MarkRead(ctx, id); err != nil {
		c.dispatch(m, func(s *state) {
			s.items, _, _ = SetRead(s.items, id, false)
			s.unread = CountUnread(s.items)
		})
		c.reportFailure(err, markReadFailed)
		return err
	}
	return nil
}

// MarkAllAsRead is MarkAsRead across the whole list.
func (c *Center) MarkAllAsRead(ctx context.Context) error {
	m := c.active()
	if m == nil {
		return ErrNotMounted
	}
	var changed []string
	if !c.dispatch(m, func(s *state) {
		s.items, changed = SetAllRead(s.items)
		s.unread = 0
	}) {
		return ErrNotMounted
	}
	if len(changed) == 0 {
		return nil
	}

	if err := c.gateway.MarkAllRead(ctx); err != nil {
		c.dispatch(m, func(s *state) {
			for _, id := range changed {
				s.items, _, _ = SetRead(s.items, id, false)
			}
			s.unread = CountUnread(s.items)
		})
		c.reportFailure(err, markAllReadFailed)
		return err
	}
	return nil
}

// Delete removes id locally, then on the server; failure restores the row.
func (c *Center) Delete(ctx context.Context, id string) error {
	m := c.active()
	if m == nil {
		return ErrNotMounted
	}
	var removed *Notification
	if !c.dispatch(m, func(s *state) {
		s.items, removed = Remove(s.items, id)
		s.unread = CountUnread(s.items)
	}) {
		return ErrNotMounted
	}
	if removed == nil {
		return ErrUnknownNotification
	}

	if err := c.gateway.Delete(ctx, id); err != nil {
		restored := *removed
		c.dispatch(m, func(s *state) {
			s.items = Merge([]Notification{restored}, s.items)
			s.unread = CountUnread(s.items)
		})
		c.reportFailure(err, deleteFailedMessage)
		return err
	}
	return nil
}

// Snapshot returns the current list, rendered rows, and counters.
func (c *Center) Snapshot() Snapshot {
	c.mu.RLock()
	published := c.published
	mounted := c.mounted
	c.mu.RUnlock()

	now := c.clock()
	items := append([]Notification(nil), published.items...)
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, Render(item, now))
	}
	return Snapshot{
		Items:   items,
		Rows:    rows,
		Unread:  published.unread,
		Loading: published.loading,
		Mounted: mounted,
	}
}

// Subscribe registers listener for every state change. Listeners run on the
// reducer goroutine and must not call back into the center's operations.
func (c *Center) Subscribe(listener func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextListen
	c.nextListen++
	c.listeners[id] = listener
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Center) active() *mount {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.current
}

// dispatch hands apply to the reducer and waits until it ran. It reports
// false when the mount ended first.
func (c *Center) dispatch(m *mount, apply func(*state)) bool {
	ev := event{apply: apply, applied: make(chan struct{})}
	select {
	case m.events <- ev:
	case <-m.done:
		return false
	}
	select {
	case <-ev.applied:
		return true
	case <-m.done:
		return false
	}
}

func (c *Center) reduce(ctx context.Context, m *mount) {
	defer m.wg.Done()
	defer close(m.done)

	var current state
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.events:
			ev.apply(&current)
			c.publish(current)
			close(ev.applied)
		}
	}
}

func (c *Center) publish(s state) {
	s.items = append([]Notification(nil), s.items...)
	c.mu.Lock()
	c.published = s
	c.mu.Unlock()
	c.notify()
}

func (c *Center) notify() {
	c.mu.RLock()
	listeners := make([]func(Snapshot), 0, len(c.listeners))
	for _, listener := range c.listeners {
		listeners = append(listeners, listener)
	}
	c.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	snapshot := c.Snapshot()
	for _, listener := range listeners {
		listener(snapshot)
	}
}

func (c *Center) pollLoop(ctx context.Context, m *mount) {
	defer m.wg.Done()

	c.poll(ctx, m)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx, m)
		case <-m.refresh:
			c.poll(ctx, m)
		}
	}
}

func (c *Center) poll(ctx context.Context, m *mount) {
	if !c.dispatch(m, func(s *state) { s.loading = true }) {
		return
	}
	items, err := c.gateway.List(ctx)
	if ctx.Err() != nil || apperr.IsCancelled(err) {
		return
	}
	if err != nil {
		metrics.NotificationPolls.WithLabelValues("error").Inc()
		c.logger.Warn("notification poll failed", zap.Error(err))
		c.dispatch(m, func(s *state) {
			s.loading = false
			if s.pollFailing {
				return
			}
			s.pollFailing = true
			if apperr.ShouldToast(err) {
				c.toasts.Error(pollFailedMessage)
			}
		})
		return
	}

	metrics.NotificationPolls.WithLabelValues("ok").Inc()
	c.dispatch(m, func(s *state) {
		s.loading = false
		s.pollFailing = false
		c.absorb(ctx, s, items)
	})
}

func (c *Center) pushLoop(ctx context.Context, m *mount) {
	defer m.wg.Done()

	err := c.push.Run(ctx, func(item Notification) {
		if c.dispatch(m, func(s *state) { c.absorb(ctx, s, []Notification{item}) }) {
			select {
			case m.refresh <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		c.logger.Debug("push subscription ended", zap.Error(err))
	}
}

// absorb runs inside the reducer: toast decisions and bookkeeping writes are
// serialized with every merge.
func (c *Center) absorb(ctx context.Context, s *state, incoming []Notification) {
	for _, item := range incoming {
		if item.ID == "" || !shouldToast(item, c.book) {
			continue
		}
		c.toastFor(item)
		if item.IsUpcoming() {
			continue
		}
		if err := c.book.MarkShown(ctx, item.ID); err != nil {
			c.logger.Warn("toast bookkeeping not persisted", zap.String("notification_id", item.ID), zap.Error(err))
		}
	}
	s.items = Merge(s.items, incoming)
	s.unread = CountUnread(s.items)
}

func (c *Center) toastFor(item Notification) {
	message := item.Title
	if message == "" {
		message = item.Message
	}
	if message == "" {
		message = "New notification"
	}
	switch item.Kind {
	case KindError, KindWarning:
		c.toasts.Error(message)
	case KindSuccess:
		c.toasts.Success(message)
	default:
		c.toasts.Info(message)
	}
}

func (c *Center) reportFailure(err error, fallback string) {
	c.logger.Warn("notification operation failed", zap.Error(err))
	if !apperr.ShouldToast(err) {
		return
	}
	message := apperr.MessageOf(err)
	if message == "" || message == apperr.GenericMessage {
		message = fallback
	}
	c.toasts.Error(message)
}
