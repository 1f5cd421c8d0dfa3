// Package shell holds the console chrome: the viewport gate, the sidebar
// menu, the drawer with its scroll lock, and the error panel shown by the
// recovery boundary.
package shell

import "sync"

// MinViewportWidth is the narrowest logical viewport the console renders.
const MinViewportWidth = 800

const splashMessage = "Fentro CMS needs a wider screen. Enlarge the window or switch to a desktop to continue."

// Blocks reports whether width is too narrow. Zero means unknown and
// never blocks.
func Blocks(width int) bool {
	return width > 0 && width < MinViewportWidth
}

// Splash is the blocking view rendered in place of any route tree.
type Splash struct {
	View     string `json:"view"`
	Width    int    `json:"width"`
	MinWidth int    `json:"minWidth"`
	Message  string `json:"message"`
}

// NewSplash describes the splash for width.
func NewSplash(width int) Splash {
	return Splash{View: "viewport_splash", Width: width, MinWidth: MinViewportWidth, Message: splashMessage}
}

// GateState is the live projection of the gate.
type GateState struct {
	Width   int  `json:"width"`
	Blocked bool `json:"blocked"`
}

// Gate tracks the live viewport width and notifies on every blocked/unblocked
// flip.
type Gate struct {
	mu        sync.RWMutex
	width     int
	listeners map[int]func(GateState)
	nextID    int
}

// NewGate starts with an unknown width.
func NewGate() *Gate {
	return &Gate{listeners: make(map[int]func(GateState))}
}

// Resize records width. It returns true when the gate flipped.
func (g *Gate) Resize(width int) bool {
	if width < 0 {
		width = 0
	}
	g.mu.Lock()
	before := Blocks(g.width)
	g.width = width
	state := GateState{Width: width, Blocked: Blocks(width)}
	flipped := before != state.Blocked
	listeners := make([]func(GateState), 0, len(g.listeners))
	if flipped {
		for _, listener := range g.listeners {
			listeners = append(listeners, listener)
		}
	}
	g.mu.Unlock()

	for _, listener := range listeners {
		listener(state)
	}
	return flipped
}

// State returns the current width and verdict.
func (g *Gate) State() GateState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return GateState{Width: g.width, Blocked: Blocks(g.width)}
}

// Effective picks the width a request is judged by: the per-request hint
// when present, the live width otherwise.
func (g *Gate) Effective(hint int) int {
	if hint > 0 {
		return hint
	}
	return g.State().Width
}

// Subscribe registers listener for gate flips.
func (g *Gate) Subscribe(listener func(GateState)) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = listener
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}
