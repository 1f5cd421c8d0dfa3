// Package toast is the console's single toast host. Components depend on the
// Emitter interface; the host fans toasts out to subscribers (the SSE stream).
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the toast severity.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

const defaultHistorySize = 50

// Toast is one short-lived message.
type Toast struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Emitter is what components call to surface feedback.
type Emitter interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// Host keeps the most recent toasts and fans new ones out to subscribers.
type Host struct {
	clock func() time.Time

	mu          sync.RWMutex
	history     []Toast
	limit       int
	subscribers map[int]func(Toast)
	nextID      int
	observer    func(Level)
}

// NewHost constructs a Host; a nil clock uses time.Now.
func NewHost(clock func() time.Time) *Host {
	if clock == nil {
		clock = time.Now
	}
	return &Host{
		clock:       clock,
		limit:       defaultHistorySize,
		subscribers: make(map[int]func(Toast)),
	}
}

func (h *Host) Success(message string) { h.emit(LevelSuccess, message) }
func (h *Host) Error(message string)   { h.emit(LevelError, message) }
func (h *Host) Info(message string)    { h.emit(LevelInfo, message) }

// Observe registers a hook called with the level of every toast (metrics).
func (h *Host) Observe(observer func(Level)) {
	h.mu.Lock()
	h.observer = observer
	h.mu.Unlock()
}

// Subscribe registers a listener for new toasts.
func (h *Host) Subscribe(listener func(Toast)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = listener
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.subscribers, id)
		h.mu.Unlock()
	}
}

// Recent returns the retained toasts, oldest first.
func (h *Host) Recent() []Toast {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Toast(nil), h.history...)
}

func (h *Host) emit(level Level, message string) {
	if message == "" {
		return
	}
	item := Toast{ID: uuid.NewString(), Level: level, Message: message, CreatedAt: h.clock().UTC()}

	h.mu.Lock()
	h.history = append(h.history, item)
	if len(h.history) > h.limit {
		h.history = h.history[len(h.history)-h.limit:]
	}
	listeners := make([]func(Toast), 0, len(h.subscribers))
	for _, listener := range h.subscribers {
		listeners = append(listeners, listener)
	}
	observer := h.observer
	h.mu.Unlock()

	if observer != nil {
		observer(level)
	}
	for _, listener := range listeners {
		listener(item)
	}
}

// Recorder is an Emitter that records every toast in order.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Success(message string) { r.record(LevelSuccess, message) }
func (r *Recorder) Error(message string)   { r.record(LevelError, message) }
func (r *Recorder) Info(message string)    { r.record(LevelInfo, message) }

// Toasts returns the recorded toasts in emission order.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Count returns how many toasts of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, item := range r.toasts {
		if item.Level == level {
			count++
		}
	}
	return count
}

func (r *Recorder) record(level Level, message string) {
	r.mu.Lock()
	r.toasts = append(r.toasts, Toast{Level: level, Message: message})
	r.mu.Unlock()
}

// Discard is an Emitter that drops everything.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}
func (Discard) Info(string)    {}
