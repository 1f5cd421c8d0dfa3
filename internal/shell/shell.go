package shell

import (
	"github.com/fentro/cms-console/internal/auth"
)

const (
	errorPanelTitle   = "Something went wrong"
	errorPanelMessage = "An unexpected error occurred. Reload the page or return to the dashboard."
)

// Chrome is the frame around a route: sidebar, top bar, drawer.
type Chrome struct {
	Menu   []Section   `json:"menu"`
	User   *auth.User  `json:"user,omitempty"`
	Drawer DrawerState `json:"drawer"`
}

// Frame is what the shell renders for one request: either the splash or the
// chrome with the route outlet.
type Frame struct {
	Splash *Splash `json:"splash,omitempty"`
	Chrome *Chrome `json:"chrome,omitempty"`
}

// Blocked reports whether the frame replaces the route tree.
func (f Frame) Blocked() bool { return f.Splash != nil }

// ErrorPanel is the generic panel rendered by the recovery boundary. It keeps
// the chrome so the operator can navigate away.
type ErrorPanel struct {
	View    string `json:"view"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Chrome  Chrome `json:"chrome"`
}

// Shell owns the single gate and drawer of a console.
type Shell struct {
	gate   *Gate
	lock   *ScrollLock
	drawer *Drawer
}

// New builds the chrome state.
func New() *Shell {
	lock := NewScrollLock()
	return &Shell{gate: NewGate(), lock: lock, drawer: NewDrawer(lock)}
}

func (s *Shell) Gate() *Gate             { return s.gate }
func (s *Shell) Drawer() *Drawer         { return s.drawer }
func (s *Shell) ScrollLock() *ScrollLock { return s.lock }

// Chrome projects the frame for the session at path.
func (s *Shell) Chrome(session auth.Snapshot, path string) Chrome {
	return Chrome{
		Menu:   Menu(session.IsAdmin(), path),
		User:   session.User,
		Drawer: s.drawer.State(),
	}
}

// Frame applies the viewport gate before anything else. hint is the
// per-request width, zero when the request carries none.
func (s *Shell) Frame(session auth.Snapshot, path string, hint int) Frame {
	width := s.gate.Effective(hint)
	if Blocks(width) {
		splash := NewSplash(width)
		return Frame{Splash: &splash}
	}
	chrome := s.Chrome(session, path)
	return Frame{Chrome: &chrome}
}

// ErrorPanel renders the generic failure panel inside the chrome.
func (s *Shell) ErrorPanel(session auth.Snapshot, path string) ErrorPanel {
	return ErrorPanel{
		View:    "error",
		Title:   errorPanelTitle,
		Message: errorPanelMessage,
		Chrome:  s.Chrome(session, path),
	}
}
