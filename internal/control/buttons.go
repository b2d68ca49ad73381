package control

import (
	"strings"
	"sync"
	"time"
)

// Button identifies one front-panel control.
type Button int

const (
	Up Button = iota
	Down
	Left
	Right
	Home
	Menu
	Back
	OK
	VolUp
	VolDown
	Power
	NumButtons
)

var buttonNames = [NumButtons]string{
	"up", "down", "left", "right", "home", "menu", "back", "ok", "volup", "voldown", "pwr",
}

func (b Button) String() string {
	if b < 0 || b >= NumButtons {
		return "unknown"
	}
	return buttonNames[b]
}

// ParseButton resolves a button name as used in settings files.
func ParseButton(name string) (Button, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "power" {
		return Power, true
	}
	for i, n := range buttonNames {
		if n == name {
			return Button(i), true
		}
	}
	return 0, false
}

// Buttons reports debounced button state sampled once per frame.
type Buttons interface {
	// Update samples the inputs. State is stable between calls.
	Update()
	// State is 0 when released, 1 on the first update after a press and
	// counts up while the button stays down.
	State(b Button) uint8
	Close() error
}

// DefaultReleaseAfter is how long a button stays down after its last event.
const DefaultReleaseAfter = 100 * time.Millisecond

// EventButtons turns discrete press events into Buttons state. A press
// followed by further presses within ReleaseAfter reads as held, so key
// auto-repeat behaves like a held button. Press is safe for concurrent use.
type EventButtons struct {
	releaseAfter time.Duration
	now          func() time.Time

	mu      sync.Mutex
	pending [NumButtons]bool

	state [NumButtons]uint8
	last  [NumButtons]time.Time
}

// NewEventButtons returns an idle button set.
func NewEventButtons(releaseAfter time.Duration) *EventButtons {
	if releaseAfter <= 0 {
		releaseAfter = DefaultReleaseAfter
	}
	return &EventButtons{releaseAfter: releaseAfter, now: time.Now}
}

// Press records an event for b.
func (e *EventButtons) Press(b Button) {
	if b < 0 || b >= NumButtons {
		return
	}
	e.mu.Lock()
	e.pending[b] = true
	e.mu.Unlock()
}

func (e *EventButtons) Update() {
	now := e.now()
	e.mu.Lock()
	pending := e.pending
	e.pending = [NumButtons]bool{}
	e.mu.Unlock()

	for b := range e.state {
		switch {
		case pending[b]:
			e.last[b] = now
			e.advance(b)
		case e.state[b] > 0 && now.Sub(e.last[b]) < e.releaseAfter:
			e.advance(b)
		default:
			e.state[b] = 0
		}
	}
}

func (e *EventButtons) advance(b int) {
	if e.state[b] < 255 {
		e.state[b]++
	}
}

func (e *EventButtons) State(b Button) uint8 {
	if b < 0 || b >= NumButtons {
		return 0
	}
	return e.state[b]
}

func (e *EventButtons) Close() error { return nil }

// Timing of repeated actions while a button is held.
const (
	HoldDelay   = 500 * time.Millisecond
	RepeatDelay = 200 * time.Millisecond
)

// HoldTracker turns button state into actions: a press fires once, and
// holding fires again after HoldDelay and then every RepeatDelay.
type HoldTracker struct {
	buttons Buttons
	stamps  [NumButtons]time.Time
	ticks   [NumButtons]int
}

func NewHoldTracker(b Buttons) *HoldTracker {
	return &HoldTracker{buttons: b}
}

// Check reports whether b should act at now.
func (h *HoldTracker) Check(b Button, now time.Time) bool {
	if b < 0 || b >= NumButtons {
		return false
	}
	switch s := h.buttons.State(b); {
	case s == 1:
		h.stamps[b] = now
		h.ticks[b] = 0
		return true
	case s > 1:
		if now.Sub(h.stamps[b]) > HoldDelay+time.Duration(h.ticks[b])*RepeatDelay {
			h.ticks[b]++
			return true
		}
	}
	return false
}

// Held returns how long b has been held according to the repeats fired so far.
func (h *HoldTracker) Held(b Button) time.Duration {
	if b < 0 || b >= NumButtons || h.buttons.State(b) == 0 {
		return 0
	}
	return HoldDelay + time.Duration(h.ticks[b])*RepeatDelay
}
