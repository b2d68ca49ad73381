package display

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/guidoenr/visualsound/internal/voxel"
	"github.com/sirupsen/logrus"
)

// recordingLink keeps every transmitted frame.
type recordingLink struct {
	mu       sync.Mutex
	frames   [][]byte
	pending  []byte
	opened   bool
	closed   bool
	closes   int
	openErr  error
	writeErr error
	delay    time.Duration
}

func (l *recordingLink) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.openErr != nil {
		return l.openErr
	}
	l.opened = true
	return nil
}

func (l *recordingLink) Write(frame []byte) (int, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return 0, l.writeErr
	}
	l.pending = append([]byte(nil), frame...)
	return len(frame), nil
}

func (l *recordingLink) Present() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, l.pending)
	return nil
}

func (l *recordingLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.closes++
	return nil
}

func (l *recordingLink) snapshot() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.frames...)
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func startTransfer(t *testing.T, size voxel.Vector, link Link, fps int) *Transfer {
	t.Helper()
	tr := New(Config{Size: size, MaxFPS: fps, Link: link, Log: quietLog()})
	if err := tr.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func waitFrames(t *testing.T, link *recordingLink, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		frames := link.snapshot()
		if len(frames) >= n {
			return frames
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d frames, want %d", len(frames), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCloseRightAfterInit(t *testing.T) {
	link := &recordingLink{}
	tr := New(Config{Size: voxel.V(4, 4, 1), Link: link, Log: quietLog()})
	if err := tr.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- tr.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Close did not return")
	}
	if tr.State() != StateClosed {
		t.Fatalf("state=%v want closed", tr.State())
	}
	if !link.closed {
		t.Fatalf("link not closed")
	}
	if err := tr.Flush(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Flush after close: %v", err)
	}
}

func TestConcurrentCloseReturns(t *testing.T) {
	for i := 0; i < 100; i++ {
		link := &recordingLink{}
		tr := New(Config{Size: voxel.V(4, 4, 1), Link: link, Log: quietLog()})
		if err := tr.Init(); err != nil {
			t.Fatalf("Init: %v", err)
		}
		done := make(chan error, 2)
		for j := 0; j < 2; j++ {
			go func() { done <- tr.Close() }()
		}
		for j := 0; j < 2; j++ {
			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("Close: %v", err)
				}
			case <-time.After(time.Second):
				t.Fatalf("run %d: concurrent Close did not return", i)
			}
		}
		if tr.State() != StateClosed {
			t.Fatalf("state=%v want closed", tr.State())
		}
		link.mu.Lock()
		closes := link.closes
		link.mu.Unlock()
		if closes != 1 {
			t.Fatalf("link closed %d times, want 1", closes)
		}
	}
}

func TestCloseWithoutInit(t *testing.T) {
	tr := New(Config{Size: voxel.V(2, 2, 1), Log: quietLog()})
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Flush(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Flush before init: %v", err)
	}
}

func TestInitFailureStaysClosed(t *testing.T) {
	tr := New(Config{Size: voxel.V(2, 2, 1), Link: &recordingLink{openErr: errors.New("no spi")}, Log: quietLog()})
	if err := tr.Init(); err == nil {
		t.Fatalf("expected open failure")
	}
	if tr.State() != StateClosed {
		t.Fatalf("state=%v want closed", tr.State())
	}
}

func TestCanvasToLinkEndToEnd(t *testing.T) {
	size := voxel.V(16, 16, 1)
	link := &recordingLink{}
	tr := startTransfer(t, size, link, 1000)

	canvas, err := voxel.NewCanvas(size, 1, 0)
	if err != nil {
		t.Fatalf("NewCanvas: %v", err)
	}
	bg := voxel.RGB(0, 0, 9)
	canvas.Clear(bg)
	canvas.DrawPoint(voxel.V(8, 8, 0), voxel.Red)
	if err := canvas.Flush(tr); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	frame := waitFrames(t, link, 1)[0]
	if len(frame) != tr.FrameBytes() {
		t.Fatalf("frame length=%d want=%d", len(frame), tr.FrameBytes())
	}
	red := 0
	for i := 0; i+2 < len(frame)-1; i += 3 {
		px := voxel.Color{R: frame[i], G: frame[i+1], B: frame[i+2]}
		switch px {
		case voxel.Red:
			red++
			if want := (8*16 + 8) * 3; i != want {
				t.Fatalf("red voxel at offset %d want %d", i, want)
			}
		case bg:
		default:
			t.Fatalf("unexpected voxel %v at %d", px, i)
		}
	}
	if red != 1 {
		t.Fatalf("red voxels=%d want=1", red)
	}
	if meta := frame[len(frame)-1]; meta != 3 {
		t.Fatalf("metadata=%08b want brightness band 3", meta)
	}
}

func TestBrightnessBands(t *testing.T) {
	cases := map[int]byte{-5: 0, 1: 0, 25: 0, 26: 1, 50: 1, 51: 2, 76: 3, 100: 3, 250: 3}
	for in, want := range cases {
		if got := brightnessBand(in); got != want {
			t.Fatalf("brightnessBand(%d)=%d want=%d", in, got, want)
		}
	}
}

func TestResetAndStandbyReachLink(t *testing.T) {
	link := &recordingLink{}
	tr := startTransfer(t, voxel.V(2, 2, 2), link, 1000)
	tr.SetBrightness(40)

	if err := tr.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	frames := link.snapshot()
	if len(frames) != 2 {
		t.Fatalf("frames after reset=%d want 2", len(frames))
	}
	if meta := frames[0][len(frames[0])-1]; meta != MetaReset|1 {
		t.Fatalf("reset metadata=%08b", meta)
	}
	if meta := frames[1][len(frames[1])-1]; meta != 1 {
		t.Fatalf("reset flag not cleared: %08b", meta)
	}

	if err := tr.Standby(); err != nil {
		t.Fatalf("Standby: %v", err)
	}
	frames = link.snapshot()
	if meta := frames[2][len(frames[2])-1]; meta&MetaStandby == 0 {
		t.Fatalf("standby metadata=%08b", meta)
	}
	if tr.Frames() != 4 {
		t.Fatalf("frames=%d want 4", tr.Frames())
	}
}

func TestResetWhileFrameInFlight(t *testing.T) {
	link := &recordingLink{delay: 20 * time.Millisecond}
	tr := startTransfer(t, voxel.V(2, 1, 1), link, 1000)
	if err := tr.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := tr.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	flagged := 0
	for _, f := range link.snapshot() {
		if f[len(f)-1]&MetaReset != 0 {
			flagged++
		}
	}
	if flagged == 0 {
		t.Fatalf("reset flag never transmitted")
	}
}

func TestFlushPacing(t *testing.T) {
	link := &recordingLink{}
	tr := startTransfer(t, voxel.V(2, 2, 1), link, 20)

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := tr.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		waitFrames(t, link, i+1)
	}
	// the first frame goes out immediately, the remaining three are spaced 50ms
	if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
		t.Fatalf("4 frames at 20fps took %v", elapsed)
	}
}

func TestLinkFailureIsLatched(t *testing.T) {
	link := &recordingLink{writeErr: errors.New("spi timeout")}
	tr := startTransfer(t, voxel.V(2, 2, 1), link, 1000)
	if err := tr.Flush(); err != nil {
		t.Fatalf("first Flush: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for tr.Err() == nil {
		if time.Now().After(deadline) {
			t.Fatalf("failure never latched")
		}
		time.Sleep(time.Millisecond)
	}
	if err := tr.Flush(); !errors.Is(err, ErrLinkFailed) {
		t.Fatalf("Flush after failure: %v", err)
	}
	if err := tr.Standby(); !errors.Is(err, ErrLinkFailed) {
		t.Fatalf("Standby after failure: %v", err)
	}
}

func TestSetVoxelIgnoresOutOfRange(t *testing.T) {
	link := &recordingLink{}
	tr := startTransfer(t, voxel.V(2, 2, 1), link, 1000)
	tr.SetVoxel(-1, 0, 0, voxel.White)
	tr.SetVoxel(2, 0, 0, voxel.White)
	tr.SetVoxel(0, 0, 1, voxel.White)
	tr.SetVoxel(1, 1, 0, voxel.Green)
	if err := tr.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	frame := waitFrames(t, link, 1)[0]
	want := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 255, 0}
	if !bytes.Equal(frame[:12], want) {
		t.Fatalf("frame=%v want=%v", frame[:12], want)
	}
}

func TestMultiLinkFansOut(t *testing.T) {
	a, b := &NullLink{}, &NullLink{}
	tr := startTransfer(t, voxel.V(1, 1, 1), MultiLink{a, b}, 1000)
	tr.SetVoxel(0, 0, 0, voxel.Blue)
	if err := tr.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for a.Frames() < 1 || b.Frames() < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("frames a=%d b=%d", a.Frames(), b.Frames())
		}
		time.Sleep(time.Millisecond)
	}
	if !bytes.Equal(a.Last(), b.Last()) || a.Last()[2] != 255 {
		t.Fatalf("a=%v b=%v", a.Last(), b.Last())
	}
}
