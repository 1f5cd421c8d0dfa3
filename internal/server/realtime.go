package server

import (
	"context"
	"sync"
	"time"
)

const (
	EventToast         = "toast"
	EventNotifications = "notifications"
	EventUpload        = "upload"
	EventViewport      = "viewport"
	EventSession       = "session"
	eventHeartbeat     = "heartbeat"
	eventSource        = "fentro-console"
)

// ConsoleEvent is one message on the console event stream.
type ConsoleEvent struct {
	Type      string
	Payload   any
	Timestamp time.Time
}

// EventDispatcher fans console events out to every open stream. A slow
// stream drops events rather than blocking publishers.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*eventSubscriber
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

type eventSubscriber struct {
	id     int64
	stream chan ConsoleEvent
}

func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[int64]*eventSubscriber),
		bufferSize:  64,
		clock:       time.Now,
	}
}

// Subscribe opens a stream that closes itself when ctx ends.
func (d *EventDispatcher) Subscribe(ctx context.Context) (<-chan ConsoleEvent, func()) {
	subscriber := &eventSubscriber{stream: make(chan ConsoleEvent, d.bufferSize)}
	d.mu.Lock()
	d.nextID++
	subscriber.id = d.nextID
	d.subscribers[subscriber.id] = subscriber
	d.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, subscriber.id)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish stamps and delivers an event of eventType.
func (d *EventDispatcher) Publish(eventType string, payload any) {
	if eventType == "" {
		return
	}
	message := ConsoleEvent{Type: eventType, Payload: payload, Timestamp: d.clock().UTC()}
	d.mu.RLock()
	copies := make([]*eventSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// Subscribers reports how many streams are open.
func (d *EventDispatcher) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}
