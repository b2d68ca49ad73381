package display

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// NullLink accepts and discards frames.
type NullLink struct {
	mu     sync.Mutex
	frames int
	last   []byte
}

func (l *NullLink) Open() error { return nil }

func (l *NullLink) Write(frame []byte) (int, error) {
	l.mu.Lock()
	l.last = append(l.last[:0], frame...)
	l.mu.Unlock()
	return len(frame), nil
}

func (l *NullLink) Present() error {
	l.mu.Lock()
	l.frames++
	l.mu.Unlock()
	return nil
}

func (l *NullLink) Close() error { return nil }

// Frames returns the number of presented frames.
func (l *NullLink) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Last returns a copy of the most recent frame.
func (l *NullLink) Last() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.last...)
}

// FileLink streams raw frames to a device node (SPI or serial bridge) or a
// capture file.
type FileLink struct {
	Path string

	f *os.File
}

func (l *FileLink) Open() error {
	flags := os.O_WRONLY
	if info, err := os.Stat(l.Path); err != nil || info.Mode().IsRegular() {
		flags |= os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(l.Path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.Path, err)
	}
	l.f = f
	return nil
}

func (l *FileLink) Write(frame []byte) (int, error) {
	if l.f == nil {
		return 0, os.ErrClosed
	}
	return l.f.Write(frame)
}

func (l *FileLink) Present() error { return nil }

func (l *FileLink) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// MultiLink fans every frame out to several links, e.g. hardware plus a
// preview. The first failing link fails the frame.
type MultiLink []Link

func (m MultiLink) Open() error {
	for i, l := range m {
		if err := l.Open(); err != nil {
			for _, opened := range m[:i] {
				_ = opened.Close()
			}
			return err
		}
	}
	return nil
}

func (m MultiLink) Write(frame []byte) (int, error) {
	for _, l := range m {
		if n, err := l.Write(frame); err != nil {
			return n, err
		}
	}
	return len(frame), nil
}

func (m MultiLink) Present() error {
	for _, l := range m {
		if err := l.Present(); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiLink) Close() error {
	var errs []error
	for _, l := range m {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
