package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/gordonklaus/portaudio"
)

// Process-wide backend state. PortAudio needs a balanced Initialize/Terminate
// pair and oto allows a single context per process.
var (
	initOnce sync.Once
	termOnce sync.Once
	initErr  error
	inited   bool

	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat Format
	otoErr    error
)

// Initialize wraps portaudio.Initialize with sync.Once so multiple callers are safe.
func Initialize() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
		inited = initErr == nil
	})
	return initErr
}

// Terminate balances a successful Initialize. It is a no-op otherwise.
func Terminate() {
	if !inited {
		return
	}
	termOnce.Do(func() {
		_ = portaudio.Terminate()
	})
}

func otoContext(format Format) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   format.Latency,
		})
		if err != nil {
			otoErr = fmt.Errorf("oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoFormat = format
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if format.SampleRate != otoFormat.SampleRate || format.Channels != otoFormat.Channels {
		return nil, fmt.Errorf("%w: oto context already opened at %d Hz/%d ch",
			ErrUnsupportedFormat, otoFormat.SampleRate, otoFormat.Channels)
	}
	return otoCtx, nil
}
