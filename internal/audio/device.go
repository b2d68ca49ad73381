package audio

import (
	"fmt"
	"strings"
	"time"
)

// Format describes the negotiated PCM stream shared by input and output devices.
type Format struct {
	SampleRate int
	Channels   int
	Latency    time.Duration
}

const (
	DefaultSampleRate    = 48_000
	DefaultChannels      = 2
	DefaultLatency       = 100 * time.Millisecond
	DefaultBufferSamples = 24_000
)

// DefaultFormat returns 16-bit stereo at 48 kHz with 100ms device latency.
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		Latency:    DefaultLatency,
	}
}

func (f Format) withDefaults() Format {
	if f.SampleRate <= 0 {
		f.SampleRate = DefaultSampleRate
	}
	if f.Channels <= 0 {
		f.Channels = DefaultChannels
	}
	if f.Latency <= 0 {
		f.Latency = DefaultLatency
	}
	return f
}

// Validate reports formats the pipeline cannot carry.
func (f Format) Validate() error {
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	return nil
}

// Period returns the frames per ring segment: one eighth of the latency window.
func (f Format) Period() int {
	p := int(int64(f.SampleRate) * f.Latency.Milliseconds() / 1000 / 8)
	if p < 1 {
		p = 1
	}
	return p
}

// Input is a capture device delivering interleaved 16-bit frames.
type Input interface {
	// Available reports how many frames can be read without blocking.
	Available() (int, error)
	// ReadFrames blocks until frames frames are stored in buf.
	ReadFrames(buf []int16, frames int) (int, error)
	Close() error
}

// Output is a playback device accepting interleaved 16-bit frames.
type Output interface {
	WriteFrames(buf []int16, frames int) (int, error)
	Close() error
}

// Opener opens devices by identifier.
type Opener interface {
	OpenInput(name string, format Format) (Input, error)
	OpenOutput(name string, format Format) (Output, error)
}

// Backends routes device identifiers to an implementation by prefix:
//
//	pa:<substring> or a bare name   PortAudio device search
//	file:<path>                     WAV file played in real time (input only)
//	synth or synth:<hz>             sine generator (input only)
//	oto                             default system output through oto (output only)
//	null                            discards output / silent input
type Backends struct{}

func splitName(name string) (string, string) {
	if i := strings.IndexByte(name, ':'); i > 0 {
		return strings.ToLower(name[:i]), name[i+1:]
	}
	switch strings.ToLower(name) {
	case "synth", "oto", "null":
		return strings.ToLower(name), ""
	}
	return "pa", name
}

// OpenInput implements Opener.
func (Backends) OpenInput(name string, format Format) (Input, error) {
	kind, arg := splitName(name)
	switch kind {
	case "pa":
		return openPortAudioInput(arg, format)
	case "file":
		return openWAVInput(arg, format)
	case "synth":
		return newSynthInput(arg, format)
	case "null":
		return newSynthInput("0", format)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

// OpenOutput implements Opener.
func (Backends) OpenOutput(name string, format Format) (Output, error) {
	kind, arg := splitName(name)
	switch kind {
	case "pa":
		return openPortAudioOutput(arg, format)
	case "oto":
		return openOtoOutput(format)
	case "null":
		return nullOutput{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

type nullOutput struct{}

func (nullOutput) WriteFrames(buf []int16, frames int) (int, error) { return frames, nil }
func (nullOutput) Close() error                                     { return nil }
