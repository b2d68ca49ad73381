package control

import "sync"

// MediaState is the playback state of the paired media source.
type MediaState int

const (
	NotConnected MediaState = iota
	Stopped
	Playing
	Paused
)

func (s MediaState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "not-connected"
}

// Track identifies the item being played.
type Track struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Title  string `json:"title"`
}

// Empty reports whether no track metadata is known.
func (t Track) Empty() bool { return t == Track{} }

// Media is the remote player whose tracks select scenes.
type Media interface {
	Track() Track
	State() MediaState
	Play() error
	Pause() error
	Next() error
	Previous() error
}

// NoMedia is a player that is never connected.
type NoMedia struct{}

func (NoMedia) Track() Track      { return Track{} }
func (NoMedia) State() MediaState { return NotConnected }
func (NoMedia) Play() error       { return nil }
func (NoMedia) Pause() error      { return nil }
func (NoMedia) Next() error       { return nil }
func (NoMedia) Previous() error   { return nil }

// ManualMedia is a player whose track is set from outside, for example by
// the web API. Next and Previous only count requests.
type ManualMedia struct {
	mu    sync.Mutex
	track Track
	state MediaState
	skips int
}

func NewManualMedia() *ManualMedia { return &ManualMedia{state: Stopped} }

// SetTrack replaces the current track and marks the player as playing.
func (m *ManualMedia) SetTrack(t Track) {
	m.mu.Lock()
	m.track = t
	m.state = Playing
	m.mu.Unlock()
}

func (m *ManualMedia) Track() Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.track
}

func (m *ManualMedia) State() MediaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ManualMedia) Play() error  { return m.set(Playing) }
func (m *ManualMedia) Pause() error { return m.set(Paused) }

func (m *ManualMedia) Next() error     { return m.skip(1) }
func (m *ManualMedia) Previous() error { return m.skip(-1) }

// Skips returns the net number of Next minus Previous requests.
func (m *ManualMedia) Skips() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.skips
}

func (m *ManualMedia) set(s MediaState) error {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	return nil
}

func (m *ManualMedia) skip(n int) error {
	m.mu.Lock()
	m.skips += n
	m.mu.Unlock()
	return nil
}
