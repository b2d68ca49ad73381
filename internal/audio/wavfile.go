package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavInput replays a PCM WAV file in a loop at the pipeline rate, converting
// channel count and rate by nearest-frame selection.
type wavInput struct {
	pacer
	channels int
	data     []int16 // interleaved, file channel count
	fileCh   int
	fileRate int
	pos      int64 // frames emitted at device rate
}

func openWAVInput(path string, format Format) (Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a PCM wav file", ErrUnsupportedFormat, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return newWAVInput(buf, int(dec.BitDepth), format)
}

func newWAVInput(buf *goaudio.IntBuffer, bitDepth int, format Format) (*wavInput, error) {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: wav header", ErrUnsupportedFormat)
	}
	frames := len(buf.Data) / buf.Format.NumChannels
	if frames == 0 {
		return nil, fmt.Errorf("%w: empty wav data", ErrUnsupportedFormat)
	}
	data := make([]int16, frames*buf.Format.NumChannels)
	for i := range data {
		data[i] = toInt16(buf.Data[i], bitDepth)
	}
	return &wavInput{
		pacer:    newPacer(format.SampleRate),
		channels: format.Channels,
		data:     data,
		fileCh:   buf.Format.NumChannels,
		fileRate: buf.Format.SampleRate,
	}, nil
}

func toInt16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	case bitDepth > 0 && bitDepth < 16:
		return int16(v << (16 - bitDepth))
	}
	return int16(v)
}

func (w *wavInput) Available() (int, error) {
	return w.available(), nil
}

func (w *wavInput) ReadFrames(buf []int16, frames int) (int, error) {
	frames = min(frames, len(buf)/w.channels)
	w.wait(frames)
	total := int64(len(w.data) / w.fileCh)
	for i := 0; i < frames; i++ {
		src := (w.pos * int64(w.fileRate) / int64(w.rate)) % total
		base := int(src) * w.fileCh
		left := w.data[base]
		right := left
		if w.fileCh > 1 {
			right = w.data[base+1]
		}
		if w.channels == 1 {
			buf[i] = int16((int32(left) + int32(right)) / 2)
		} else {
			buf[i*2] = left
			buf[i*2+1] = right
		}
		w.pos++
	}
	return frames, nil
}

func (w *wavInput) Close() error { return nil }
