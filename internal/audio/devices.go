package audio

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Device is one PortAudio endpoint as the pipeline sees it.
type Device struct {
	Name       string
	HostAPI    string
	Inputs     int
	Outputs    int
	SampleRate int
	// Latency is the low-latency figure PortAudio suggests for capture, or
	// for playback on output-only devices.
	Latency       time.Duration
	DefaultInput  bool
	DefaultOutput bool
}

// ID returns the identifier that selects this device in Config.Input or
// Config.Output.
func (d Device) ID() string { return "pa:" + d.Name }

// CanCapture reports whether the device can feed the pipeline.
func (d Device) CanCapture() bool { return d.Inputs > 0 }

// CanPlay reports whether the device can receive the pipeline's playback.
func (d Device) CanPlay() bool { return d.Outputs > 0 }

// Supports reports whether the device can carry f in the given direction.
func (d Device) Supports(f Format, input bool) bool {
	ch := d.Outputs
	if input {
		ch = d.Inputs
	}
	return ch >= f.Channels
}

// ListDevices returns every PortAudio device sorted by host API and name.
func ListDevices() ([]Device, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defIn, defOut := -1, -1
	if d, err := portaudio.DefaultInputDevice(); err == nil && d != nil {
		defIn = d.Index
	}
	if d, err := portaudio.DefaultOutputDevice(); err == nil && d != nil {
		defOut = d.Index
	}

	var devices []Device
	for _, host := range hosts {
		for _, d := range host.Devices {
			lat := d.DefaultLowInputLatency
			if d.MaxInputChannels == 0 {
				lat = d.DefaultLowOutputLatency
			}
			devices = append(devices, Device{
				Name:          d.Name,
				HostAPI:       host.Name,
				Inputs:        d.MaxInputChannels,
				Outputs:       d.MaxOutputChannels,
				SampleRate:    int(d.DefaultSampleRate),
				Latency:       lat,
				DefaultInput:  d.Index == defIn,
				DefaultOutput: d.Index == defOut,
			})
		}
	}

	slices.SortFunc(devices, func(a, b Device) int {
		if c := strings.Compare(a.HostAPI, b.HostAPI); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return devices, nil
}
