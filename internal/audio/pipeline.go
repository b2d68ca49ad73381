package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	statusEnd int32 = iota
	statusStarting
	statusRunning
	statusClosing
)

const defaultPollInterval = 10 * time.Millisecond

// Config controls how a Pipeline is created.
type Config struct {
	Format Format
	// BufferSamples approximates the retained history in frames. It must exceed
	// the longest window any consumer requests at native rate.
	BufferSamples int
	Input         string
	Output        string
	Opener        Opener
	PollInterval  time.Duration
	Log           logrus.FieldLogger
}

// Pipeline moves PCM periods from an input device to an output device in a
// background goroutine, publishing every period into a RingBuffer.
type Pipeline struct {
	format Format
	ring   *RingBuffer
	opener Opener
	poll   time.Duration
	log    logrus.FieldLogger

	ctl    sync.Mutex
	input  string
	output string
	done   chan struct{}

	status atomic.Int32
	volume atomic.Int32

	errMu sync.Mutex
	err   error
}

// New constructs a Pipeline. The loop does not run until Start or a device
// setter is called.
func New(cfg Config) (*Pipeline, error) {
	cfg.Format = cfg.Format.withDefaults()
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if cfg.BufferSamples <= 0 {
		cfg.BufferSamples = DefaultBufferSamples
	}
	if cfg.Opener == nil {
		cfg.Opener = Backends{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	period := cfg.Format.Period()
	segments := cfg.BufferSamples/period + 1

	p := &Pipeline{
		format: cfg.Format,
		ring:   NewRingBuffer(segments, period, cfg.Format.Channels),
		opener: cfg.Opener,
		poll:   cfg.PollInterval,
		log:    cfg.Log.WithField("component", "audio"),
		input:  cfg.Input,
		output: cfg.Output,
	}
	p.volume.Store(100)
	return p, nil
}

// Start (re)starts the loop with the current device identities.
func (p *Pipeline) Start() {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	p.stopLoop()
	p.startLoop()
}

// SetInputDevice stops the loop, switches the capture device and restarts.
func (p *Pipeline) SetInputDevice(name string) {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	p.stopLoop()
	p.input = name
	p.startLoop()
}

// SetOutputDevice stops the loop, switches the playback device and restarts.
func (p *Pipeline) SetOutputDevice(name string) {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	p.stopLoop()
	p.output = name
	p.startLoop()
}

// Devices returns the configured input and output identities.
func (p *Pipeline) Devices() (string, string) {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	return p.input, p.output
}

// Running reports whether the loop is actively moving audio. It stays false
// while devices are being opened.
func (p *Pipeline) Running() bool {
	return p.status.Load() == statusRunning
}

// Err returns the error that ended the most recent loop, if any.
func (p *Pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// SetVolume sets the playback level in percent (0..100). Captured audio and
// analysis are unaffected.
func (p *Pipeline) SetVolume(percent int) {
	p.volume.Store(int32(max(0, min(percent, 100))))
}

// Volume returns the playback level in percent.
func (p *Pipeline) Volume() int { return int(p.volume.Load()) }

// NativeRate returns the device sample rate.
func (p *Pipeline) NativeRate() int { return p.format.SampleRate }

// Format returns the negotiated stream format.
func (p *Pipeline) Format() Format { return p.format }

// Ring exposes the underlying ring buffer.
func (p *Pipeline) Ring() *RingBuffer { return p.ring }

// CollectSamples fills out with interleaved left/right samples taken every
// NativeRate/rate frames, ending at the most recent audio. Mono devices are
// duplicated into both slots. When the loop is not running out is zeroed.
func (p *Pipeline) CollectSamples(out []int16, rate int) {
	if !p.Running() {
		for i := range out {
			out[i] = 0
		}
		return
	}
	skip := 1
	if rate > 0 && rate <= p.format.SampleRate {
		skip = p.format.SampleRate / rate
	}
	p.ring.Collect(out, skip)
}

// Close stops the loop and waits for it to release its devices.
func (p *Pipeline) Close() error {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	p.stopLoop()
	return nil
}

func (p *Pipeline) startLoop() {
	done := make(chan struct{})
	p.done = done
	p.status.Store(statusStarting)
	go p.run(p.input, p.output, done)
}

func (p *Pipeline) stopLoop() {
	if !p.status.CompareAndSwap(statusRunning, statusClosing) {
		p.status.CompareAndSwap(statusStarting, statusClosing)
	}
	if p.done != nil {
		<-p.done
		p.done = nil
	}
}

func (p *Pipeline) closing() bool {
	s := p.status.Load()
	return s == statusClosing || s == statusEnd
}

func (p *Pipeline) setErr(err error) {
	p.errMu.Lock()
	p.err = err
	p.errMu.Unlock()
}

func (p *Pipeline) run(input, output string, done chan struct{}) {
	defer close(done)
	defer p.status.Store(statusEnd)

	p.setErr(nil)
	if input == "" || output == "" {
		return
	}

	log := p.log.WithFields(logrus.Fields{"input": input, "output": output})

	in, err := p.opener.OpenInput(input, p.format)
	if err != nil {
		p.fail(log, fmt.Errorf("open input %q: %w", input, err))
		return
	}
	defer in.Close()

	out, err := p.opener.OpenOutput(output, p.format)
	if err != nil {
		p.fail(log, fmt.Errorf("open output %q: %w", output, err))
		return
	}
	defer out.Close()

	p.ring.Reset()
	period := p.ring.Period()

	// two silent periods of headroom for the playback side
	silence := make([]int16, period*p.format.Channels)
	scaled := make([]int16, len(silence))
	for i := 0; i < 2; i++ {
		if _, err := out.WriteFrames(silence, period); err != nil {
			p.fail(log, fmt.Errorf("prime output: %w", err))
			return
		}
	}

	if !p.status.CompareAndSwap(statusStarting, statusRunning) {
		return
	}
	log.Info("audio pipeline running")
	for {
		if p.closing() {
			break
		}
		seg := p.ring.Rotate()

		ok, err := p.waitAvailable(in, period)
		if err != nil {
			p.fail(log, fmt.Errorf("poll input: %w", err))
			return
		}
		if !ok {
			break
		}

		n, err := in.ReadFrames(seg, period)
		if err != nil {
			p.fail(log, fmt.Errorf("read input: %w", err))
			return
		}
		if n < period {
			log.WithField("frames", n).Debug("short read")
			for i := n * p.format.Channels; i < len(seg); i++ {
				seg[i] = 0
			}
		}
		p.ring.Commit()

		if p.closing() {
			break
		}
		play := seg
		if v := p.volume.Load(); v != 100 {
			for i, s := range seg {
				scaled[i] = int16(int32(s) * v / 100)
			}
			play = scaled
		}
		if _, err := out.WriteFrames(play, period); err != nil {
			p.fail(log, fmt.Errorf("write output: %w", err))
			return
		}
	}
	log.Info("audio pipeline stopped")
}

func (p *Pipeline) waitAvailable(in Input, period int) (bool, error) {
	for {
		if p.closing() {
			return false, nil
		}
		avail, err := in.Available()
		if err != nil {
			return false, err
		}
		if avail >= period {
			return true, nil
		}
		time.Sleep(p.poll)
	}
}

func (p *Pipeline) fail(log logrus.FieldLogger, err error) {
	p.setErr(err)
	log.WithError(err).Error("audio pipeline ended")
}
