package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func TestDeviceLatency(t *testing.T) {
	if got := DeviceLatency(nil); got != DefaultLatency {
		t.Fatalf("nil device latency=%s want=%s", got, DefaultLatency)
	}
	if got := DeviceLatency(&portaudio.DeviceInfo{}); got != DefaultLatency {
		t.Fatalf("unset latency=%s want=%s", got, DefaultLatency)
	}
	dev := &portaudio.DeviceInfo{DefaultLowInputLatency: 20 * time.Millisecond}
	if got := DeviceLatency(dev); got != 20*time.Millisecond {
		t.Fatalf("latency=%s want=20ms", got)
	}
}

func TestInvalidStreamStateError(t *testing.T) {
	if errorsIsInvalidStreamState(nil) {
		t.Fatalf("nil error matched")
	}
	if !errorsIsInvalidStreamState(errors.New("PaErrorCode -9986: stream is stopped")) {
		t.Fatalf("stopped stream error not matched")
	}
	if errorsIsInvalidStreamState(errors.New("device unavailable")) {
		t.Fatalf("unrelated error matched")
	}
}
