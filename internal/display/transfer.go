package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/guidoenr/visualsound/internal/voxel"
	"github.com/sirupsen/logrus"
)

// State is the transfer task state.
type State int

const (
	StateClosed State = iota
	StateIdle
	StateReady
	StateDrawing
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateDrawing:
		return "drawing"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Metadata flags carried in the byte that trails every frame. Bits 0-1 hold
// the brightness band.
const (
	MetaBrightnessMask byte = 0x03
	MetaReset          byte = 1 << 6
	MetaStandby        byte = 1 << 7
)

const (
	DefaultMaxFPS       = 60
	defaultPollInterval = time.Millisecond
)

// Link is the physical display connection.
type Link interface {
	Open() error
	// Write transmits one frame: X*Y*Z RGB triples followed by one metadata byte.
	Write(frame []byte) (int, error)
	// Present tells the hardware to show the frame just written.
	Present() error
	Close() error
}

// Config controls a Transfer.
type Config struct {
	Size         voxel.Vector
	MaxFPS       int
	Brightness   int
	Link         Link
	PollInterval time.Duration
	Log          logrus.FieldLogger
}

// Transfer double-buffers frames and streams them to a Link from a background
// goroutine, never faster than MaxFPS.
type Transfer struct {
	size     voxel.Vector
	interval time.Duration
	poll     time.Duration
	link     Link
	log      logrus.FieldLogger

	mu         sync.Mutex
	cond       *sync.Cond
	state      State
	working    []byte
	transfer   []byte
	brightness int
	flags      byte
	frames     uint64
	lastStart  time.Time
	err        error
	done       chan struct{}
}

// New returns a closed Transfer; call Init to start it.
func New(cfg Config) *Transfer {
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = DefaultMaxFPS
	}
	if cfg.Brightness == 0 {
		cfg.Brightness = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Link == nil {
		cfg.Link = &NullLink{}
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	t := &Transfer{
		size:       cfg.Size,
		interval:   time.Second / time.Duration(cfg.MaxFPS),
		poll:       cfg.PollInterval,
		link:       cfg.Link,
		log:        cfg.Log.WithField("component", "display"),
		brightness: clampBrightness(cfg.Brightness),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// FrameBytes returns the length of one transmitted frame including metadata.
func (t *Transfer) FrameBytes() int {
	return t.size.X*t.size.Y*t.size.Z*3 + 1
}

// Init allocates the buffers, opens the link and starts the transfer task.
func (t *Transfer) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateClosed {
		return nil
	}
	if t.size.X <= 0 || t.size.Y <= 0 || t.size.Z <= 0 {
		return fmt.Errorf("display: invalid size %v", t.size)
	}
	t.working = make([]byte, t.FrameBytes())
	t.transfer = make([]byte, t.FrameBytes())
	if err := t.link.Open(); err != nil {
		t.working, t.transfer = nil, nil
		return fmt.Errorf("open display link: %w", err)
	}
	t.err = nil
	t.flags = 0
	t.lastStart = time.Time{}
	t.done = make(chan struct{})
	t.state = StateIdle
	go t.run(t.done)
	t.log.WithField("size", t.size).Info("display transfer started")
	return nil
}

// State returns the current task state.
func (t *Transfer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Frames returns how many frames have been transmitted since Init.
func (t *Transfer) Frames() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// Err returns the latched link failure, if any.
func (t *Transfer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.linkErr()
}

func (t *Transfer) linkErr() error {
	if t.err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrLinkFailed, t.err)
}

// SetBrightness sets the brightness (1..100) encoded into frame metadata.
func (t *Transfer) SetBrightness(b int) {
	t.mu.Lock()
	t.brightness = clampBrightness(b)
	t.mu.Unlock()
}

// Brightness returns the current brightness (1..100).
func (t *Transfer) Brightness() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.brightness
}

func clampBrightness(b int) int {
	return max(1, min(b, 100))
}

// brightnessBand maps 1..100 onto the four hardware bands.
func brightnessBand(b int) byte {
	return byte((clampBrightness(b)-1)*4/100) & MetaBrightnessMask
}

// SetVoxel writes one RGB triple into the working buffer. Only the render
// goroutine may call it; coordinates outside the display are dropped.
func (t *Transfer) SetVoxel(x, y, z int, c voxel.Color) {
	if x < 0 || x >= t.size.X || y < 0 || y >= t.size.Y || z < 0 || z >= t.size.Z || t.working == nil {
		return
	}
	i := ((z*t.size.Y+y)*t.size.X + x) * 3
	t.working[i] = c.R
	t.working[i+1] = c.G
	t.working[i+2] = c.B
}

// Present flushes the working buffer, making Transfer a voxel.Sink.
func (t *Transfer) Present() error {
	return t.Flush()
}

// Flush paces the caller to MaxFPS, then hands the working buffer to the
// transfer task.
func (t *Transfer) Flush() error {
	t.mu.Lock()
	if err := t.usable(); err != nil {
		t.mu.Unlock()
		return err
	}
	last := t.lastStart
	t.mu.Unlock()

	if !last.IsZero() {
		if wait := t.interval - time.Since(last); wait > 0 {
			time.Sleep(wait)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.state == StateDrawing {
		t.cond.Wait()
	}
	if err := t.usable(); err != nil {
		return err
	}
	copy(t.transfer, t.working)
	t.working, t.transfer = t.transfer, t.working
	t.state = StateReady
	return nil
}

// usable reports why frames cannot be queued. Callers hold t.mu.
func (t *Transfer) usable() error {
	switch t.state {
	case StateClosed:
		if t.working == nil {
			return ErrNotInitialized
		}
		return ErrClosed
	case StateStopping, StateStopped:
		return ErrClosed
	}
	return t.linkErr()
}

// Reset asks the hardware to reset and blocks until the request has been sent.
func (t *Transfer) Reset() error {
	return t.signal(MetaReset)
}

// Standby asks the hardware to enter standby and blocks until the request has
// been sent.
func (t *Transfer) Standby() error {
	return t.signal(MetaStandby)
}

// signal raises a one-shot flag and forces two complete transmissions so the
// flag is carried even if a frame was already in flight.
func (t *Transfer) signal(flag byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.usable(); err != nil {
		return err
	}
	t.flags |= flag
	for round := 0; round < 2; round++ {
		for t.state == StateDrawing {
			t.cond.Wait()
		}
		if err := t.usable(); err != nil {
			return err
		}
		target := t.frames + 1
		t.state = StateReady
		for t.frames < target {
			if t.state == StateStopping || t.state == StateStopped || t.state == StateClosed {
				return ErrClosed
			}
			t.cond.Wait()
		}
	}
	return t.linkErr()
}

// Close waits for any frame in flight, stops the transfer task and closes the
// link. Closing a Transfer that was never initialised is a no-op. Concurrent
// callers all return once the Transfer is closed.
func (t *Transfer) Close() error {
	t.mu.Lock()
	for t.state == StateDrawing {
		t.cond.Wait()
	}
	switch t.state {
	case StateClosed:
		t.mu.Unlock()
		return nil
	case StateStopping, StateStopped:
		// another Close owns the shutdown
		for t.state != StateClosed {
			t.cond.Wait()
		}
		t.mu.Unlock()
		return nil
	}
	t.state = StateStopping
	t.cond.Broadcast()
	for t.state != StateStopped {
		t.cond.Wait()
	}
	done := t.done
	t.mu.Unlock()

	<-done
	err := t.link.Close()

	t.mu.Lock()
	t.state = StateClosed
	t.cond.Broadcast()
	t.mu.Unlock()
	t.log.Info("display transfer stopped")
	if err != nil {
		return fmt.Errorf("close display link: %w", err)
	}
	return nil
}

func (t *Transfer) run(done chan struct{}) {
	defer close(done)
	for {
		t.mu.Lock()
		switch t.state {
		case StateStopping:
			t.state = StateStopped
			t.cond.Broadcast()
			t.mu.Unlock()
			return
		case StateReady:
			t.state = StateDrawing
			frame := t.transfer
			sent := t.flags
			frame[len(frame)-1] = brightnessBand(t.brightness) | sent
			t.lastStart = time.Now()
			t.mu.Unlock()

			err := t.transmit(frame)

			t.mu.Lock()
			if err != nil && t.err == nil {
				t.err = err
				t.log.WithError(err).Error("display link failed")
			}
			t.flags &^= sent
			t.frames++
			t.state = StateIdle
			t.cond.Broadcast()
			t.mu.Unlock()
		default:
			t.mu.Unlock()
			time.Sleep(t.poll)
		}
	}
}

func (t *Transfer) transmit(frame []byte) error {
	n, err := t.link.Write(frame)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("write frame: short write %d/%d", n, len(frame))
	}
	if err := t.link.Present(); err != nil {
		return fmt.Errorf("present frame: %w", err)
	}
	return nil
}
