package shell

import "sync"

// KeyEscape is the key name that closes the drawer.
const KeyEscape = "Escape"

// ScrollLock suppresses document scrolling while any holder is registered.
// Each hold is released exactly once, however often its release is called.
type ScrollLock struct {
	mu      sync.Mutex
	holders map[string]int
}

// NewScrollLock returns an unlocked lock.
func NewScrollLock() *ScrollLock {
	return &ScrollLock{holders: make(map[string]int)}
}

// Hold registers owner and returns its release.
func (l *ScrollLock) Hold(owner string) func() {
	l.mu.Lock()
	l.holders[owner]++
	l.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.holders[owner]--
			if l.holders[owner] <= 0 {
				delete(l.holders, owner)
			}
		})
	}
}

// Locked reports whether scrolling is suppressed.
func (l *ScrollLock) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holders) > 0
}

// DrawerState is the drawer projection.
type DrawerState struct {
	Open         bool `json:"open"`
	ScrollLocked bool `json:"scrollLocked"`
}

// Drawer is the mobile navigation drawer. Opening it holds the scroll lock
// until it closes or is unmounted.
type Drawer struct {
	lock *ScrollLock

	mu      sync.Mutex
	release func()
}

// NewDrawer binds a drawer to lock.
func NewDrawer(lock *ScrollLock) *Drawer {
	return &Drawer{lock: lock}
}

func (d *Drawer) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release != nil {
		return
	}
	d.release = d.lock.Hold("drawer")
}

func (d *Drawer) Close() {
	d.mu.Lock()
	release := d.release
	d.release = nil
	d.mu.Unlock()
	if release != nil {
		release()
	}
}

func (d *Drawer) Toggle() {
	if d.State().Open {
		d.Close()
		return
	}
	d.Open()
}

// HandleKey closes an open drawer on Escape and reports whether it did.
func (d *Drawer) HandleKey(key string) bool {
	if key != KeyEscape || !d.State().Open {
		return false
	}
	d.Close()
	return true
}

// Unmount releases anything the drawer still holds.
func (d *Drawer) Unmount() { d.Close() }

func (d *Drawer) State() DrawerState {
	d.mu.Lock()
	open := d.release != nil
	d.mu.Unlock()
	return DrawerState{Open: open, ScrollLocked: d.lock.Locked()}
}
