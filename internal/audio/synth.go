package audio

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"
)

// synthInput generates a slowly wobbling tone with a pulsing bass line and a
// little noise, paced at the device rate. It stands in for a capture device
// when no audio hardware is present.
type synthInput struct {
	pacer
	channels int
	tone     float64
	phase    float64
	bass     float64
	noise    *rand.Rand
	amp      float64
}

func newSynthInput(arg string, format Format) (Input, error) {
	tone := 440.0
	if arg != "" {
		hz, err := strconv.ParseFloat(arg, 64)
		if err != nil || hz < 0 {
			return nil, fmt.Errorf("%w: synth frequency %q", ErrUnsupportedFormat, arg)
		}
		tone = hz
	}
	amp := 8000.0
	if tone == 0 {
		amp = 0
	}
	return &synthInput{
		pacer:    newPacer(format.SampleRate),
		channels: format.Channels,
		tone:     tone,
		noise:    rand.New(rand.NewSource(time.Now().UnixNano())),
		amp:      amp,
	}, nil
}

func (s *synthInput) Available() (int, error) {
	return s.available(), nil
}

func (s *synthInput) ReadFrames(buf []int16, frames int) (int, error) {
	frames = min(frames, len(buf)/s.channels)
	s.wait(frames)
	dt := 1.0 / float64(s.rate)
	for i := 0; i < frames; i++ {
		s.phase += dt
		s.bass += dt
		wobble := 1.0 + 0.02*math.Sin(2*math.Pi*0.3*s.phase)
		tone := math.Sin(2 * math.Pi * s.tone * wobble * s.phase)
		// 2 Hz kick envelope on a 60 Hz carrier
		env := math.Exp(-8 * math.Mod(s.bass, 0.5))
		kick := env * math.Sin(2*math.Pi*60*s.bass)
		v := s.amp * (0.5*tone + 0.8*kick + 0.05*(s.noise.Float64()*2-1))
		sample := int16(math.Max(-32768, math.Min(32767, v)))
		for c := 0; c < s.channels; c++ {
			buf[i*s.channels+c] = sample
		}
	}
	return frames, nil
}

func (s *synthInput) Close() error { return nil }
