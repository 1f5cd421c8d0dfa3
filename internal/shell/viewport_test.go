package shell

import (
	"sync"
	"testing"

	"github.com/fentro/cms-console/internal/auth"
)

func TestBlocksThreshold(t *testing.T) {
	testCases := []struct {
		width   int
		blocked bool
	}{
		{width: 0, blocked: false},
		{width: 320, blocked: true},
		{width: 799, blocked: true},
		{width: 800, blocked: false},
		{width: 1440, blocked: false},
	}
	for _, testCase := range testCases {
		if got := Blocks(testCase.width); got != testCase.blocked {
			t.Fatalf("width %d: expected blocked=%v, got %v", testCase.width, testCase.blocked, got)
		}
	}
}

func TestGateIsLiveOnResize(t *testing.T) {
	shell := New()
	session := auth.Snapshot{Status: auth.StatusAuthenticated, User: &auth.User{ID: "u1", Role: "admin"}}

	var mu sync.Mutex
	var flips []GateState
	unsubscribe := shell.Gate().Subscribe(func(state GateState) {
		mu.Lock()
		flips = append(flips, state)
		mu.Unlock()
	})
	defer unsubscribe()

	shell.Gate().Resize(1280)
	if frame := shell.Frame(session, "/dashboard", 0); frame.Blocked() || frame.Chrome == nil {
		t.Fatalf("expected route tree at 1280, got %+v", frame)
	}
	shell.Gate().Resize(640)
	frame := shell.Frame(session, "/dashboard", 0)
	if !frame.Blocked() || frame.Splash.Width != 640 || frame.Chrome != nil {
		t.Fatalf("expected splash at 640, got %+v", frame)
	}
	shell.Gate().Resize(700)
	shell.Gate().Resize(1024)
	if shell.Frame(session, "/dashboard", 0).Blocked() {
		t.Fatalf("expected route tree after widening")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flips) != 2 || !flips[0].Blocked || flips[1].Blocked {
		t.Fatalf("expected exactly two flips, got %+v", flips)
	}
}

func TestFrameRequestHintOverridesLiveWidth(t *testing.T) {
	shell := New()
	shell.Gate().Resize(1280)
	session := auth.Snapshot{Status: auth.StatusAnonymous}
	if !shell.Frame(session, "/login", 500).Blocked() {
		t.Fatalf("expected narrow hint to block")
	}
	shell.Gate().Resize(500)
	if shell.Frame(session, "/login", 1024).Blocked() {
		t.Fatalf("expected wide hint to render")
	}
}
