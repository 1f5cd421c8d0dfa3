package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCollapsesBurstToLastAction(t *testing.T) {
	debouncer := New(40 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Value

	for _, term := range []string{"k", "ki", "kim"} {
		term := term
		debouncer.Trigger(func() {
			calls.Add(1)
			last.Store(term)
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
	if last.Load() != "kim" {
		t.Fatalf("expected last term, got %v", last.Load())
	}
}

func TestDebouncerStopDropsPending(t *testing.T) {
	debouncer := New(20 * time.Millisecond)
	var calls atomic.Int32
	debouncer.Trigger(func() { calls.Add(1) })
	debouncer.Stop()
	debouncer.Trigger(func() { calls.Add(1) })

	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("expected no calls after stop, got %d", calls.Load())
	}
}

func TestDebouncerFlushRunsImmediately(t *testing.T) {
	debouncer := New(time.Hour)
	var calls atomic.Int32
	debouncer.Trigger(func() { calls.Add(1) })
	debouncer.Flush()
	if calls.Load() != 1 {
		t.Fatalf("expected flush to run pending action")
	}
	debouncer.Flush()
	if calls.Load() != 1 {
		t.Fatalf("expected flush without pending action to be a no-op")
	}
}

func TestDebouncerIgnoresFireFromReplacedTimer(t *testing.T) {
	debouncer := New(time.Hour)
	var calls atomic.Int32
	debouncer.Trigger(func() { calls.Add(1) })
	debouncer.mu.Lock()
	stale := debouncer.generation
	debouncer.mu.Unlock()

	// A timer that already fired can still be waiting on the lock when
	// Trigger replaces the action.
	debouncer.Trigger(func() { calls.Add(10) })
	debouncer.fire(stale)
	if calls.Load() != 0 {
		t.Fatalf("expected replaced timer to run nothing, got %d", calls.Load())
	}

	debouncer.Flush()
	if calls.Load() != 10 {
		t.Fatalf("expected only the latest action to run, got %d", calls.Load())
	}
}
