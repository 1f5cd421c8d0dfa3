// Package debounce collapses bursts of triggers into a single trailing call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the most recently supplied action once the input has been
// quiet for the configured delay.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	stopped bool
	// generation identifies the live timer; fires from replaced timers are ignored.
	generation uint64
}

// New returns a Debouncer; a non-positive delay runs actions immediately.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules action, replacing any action not yet run.
func (d *Debouncer) Trigger(action func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.delay <= 0 {
		d.mu.Unlock()
		action()
		return
	}
	d.pending = action
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	generation := d.generation
	d.timer = time.AfterFunc(d.delay, func() { d.fire(generation) })
	d.mu.Unlock()
}

// Flush runs the pending action now, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	action := d.pending
	d.pending = nil
	d.mu.Unlock()
	if action != nil {
		action()
	}
}

// Stop drops any pending action and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
	d.mu.Unlock()
}

func (d *Debouncer) fire(generation uint64) {
	d.mu.Lock()
	if generation != d.generation {
		d.mu.Unlock()
		return
	}
	action := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()
	if action != nil {
		action()
	}
}
