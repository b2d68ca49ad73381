package audio

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
)

// paStream wraps a blocking PortAudio stream with a fixed period-sized buffer.
type paStream struct {
	stream   *portaudio.Stream
	device   *portaudio.DeviceInfo
	buf      []int16
	channels int
	period   int
}

type paInput struct{ paStream }
type paOutput struct{ paStream }

func openPortAudioInput(name string, format Format) (Input, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	device, err := findDevice(name, true)
	if err != nil {
		return nil, err
	}
	s := paStream{
		device:   device,
		channels: format.Channels,
		period:   format.Period(),
	}
	s.buf = make([]int16, s.period*s.channels)

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: format.Channels,
			Latency:  format.Latency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: s.period,
	}, s.buf)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	s.stream = stream
	if err := s.stream.Start(); err != nil {
		_ = s.stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return &paInput{s}, nil
}

func openPortAudioOutput(name string, format Format) (Output, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	device, err := findDevice(name, false)
	if err != nil {
		return nil, err
	}
	s := paStream{
		device:   device,
		channels: format.Channels,
		period:   format.Period(),
	}
	s.buf = make([]int16, s.period*s.channels)

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: format.Channels,
			Latency:  format.Latency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: s.period,
	}, s.buf)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	s.stream = stream
	if err := s.stream.Start(); err != nil {
		_ = s.stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return &paOutput{s}, nil
}

// Available reports frames readable without blocking.
func (in *paInput) Available() (int, error) {
	return in.stream.AvailableToRead()
}

// ReadFrames reads whole periods until frames frames are stored in buf.
func (in *paInput) ReadFrames(buf []int16, frames int) (int, error) {
	read := 0
	for read < frames {
		if err := in.recoverOnce(in.stream.Read); err != nil {
			return read, err
		}
		n := min(in.period, frames-read)
		copy(buf[read*in.channels:(read+n)*in.channels], in.buf[:n*in.channels])
		read += n
	}
	return read, nil
}

// WriteFrames writes buf in period-sized chunks, padding the tail with silence.
func (out *paOutput) WriteFrames(buf []int16, frames int) (int, error) {
	written := 0
	for written < frames {
		n := min(out.period, frames-written)
		copy(out.buf, buf[written*out.channels:(written+n)*out.channels])
		for i := n * out.channels; i < len(out.buf); i++ {
			out.buf[i] = 0
		}
		if err := out.recoverOnce(out.stream.Write); err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// recoverOnce runs op, tolerating xruns and restarting the stream once on any
// other failure before giving up.
func (s *paStream) recoverOnce(op func() error) error {
	err := op()
	if err == nil || isXrun(err) {
		return nil
	}
	_ = s.stream.Stop()
	if startErr := s.stream.Start(); startErr != nil {
		return fmt.Errorf("%w (recover: %v)", err, startErr)
	}
	if err := op(); err != nil && !isXrun(err) {
		return err
	}
	return nil
}

// Close stops and closes the underlying PortAudio stream.
func (s *paStream) Close() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
		_ = s.stream.Close()
		return err
	}
	return s.stream.Close()
}

func isXrun(err error) bool {
	return errors.Is(err, portaudio.InputOverflowed) || errors.Is(err, portaudio.OutputUnderflowed)
}

func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name != "" && !strings.EqualFold(name, "default") {
		return findDeviceByName(name, input)
	}

	if input {
		if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	} else {
		if dev, err := portaudio.DefaultOutputDevice(); err == nil && dev != nil && dev.MaxOutputChannels > 0 {
			return dev, nil
		}
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	if candidate := pickBestDevice(devices, input); candidate != nil {
		return candidate, nil
	}
	return nil, fmt.Errorf("%w: no suitable device found", ErrNoDevice)
}

func findDeviceByName(name string, input bool) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	name = strings.ToLower(name)
	for _, device := range devices {
		if channelsFor(device, input) == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), name) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("%w: %q not found", ErrNoDevice, name)
}

func channelsFor(d *portaudio.DeviceInfo, input bool) int {
	if input {
		return d.MaxInputChannels
	}
	return d.MaxOutputChannels
}

func pickBestDevice(devices []*portaudio.DeviceInfo, input bool) *portaudio.DeviceInfo {
	type scored struct {
		dev   *portaudio.DeviceInfo
		score int
	}

	var (
		results  []scored
		keywords = []string{"monitor", "loopback", "mix", "stereo mix", "what u hear"}
	)

	defaultIndex := -1
	if input {
		if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
			defaultIndex = def.Index
		}
	} else if def, err := portaudio.DefaultOutputDevice(); err == nil && def != nil {
		defaultIndex = def.Index
	}

	for _, d := range devices {
		if d == nil || channelsFor(d, input) <= 0 {
			continue
		}

		score := channelsFor(d, input)
		if d.Index == defaultIndex {
			score += 50
		}

		lower := strings.ToLower(d.Name)
		if input {
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					score += 20
					break
				}
			}
		}
		if strings.Contains(lower, "default") {
			score += 10
		}

		results = append(results, scored{dev: d, score: score})
	}

	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})

	return results[0].dev
}

// errorsIsInvalidStreamState checks if the provided error stems from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	const invalidStateMsg = "PaErrorCode -9986"
	return strings.Contains(err.Error(), invalidStateMsg)
}

// AutoDetectDevice returns the best available input device PortAudio can find.
func AutoDetectDevice() (*portaudio.DeviceInfo, error) {
	return findDevice("", true)
}

// DeviceLatency returns the low input latency PortAudio reports for a device,
// falling back to the default pipeline latency.
func DeviceLatency(d *portaudio.DeviceInfo) time.Duration {
	if d == nil || d.DefaultLowInputLatency <= 0 {
		return DefaultLatency
	}
	return d.DefaultLowInputLatency
}
