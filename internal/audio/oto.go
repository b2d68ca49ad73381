package audio

import (
	"encoding/binary"
	"io"

	"github.com/ebitengine/oto/v3"
)

// otoOutput plays frames on the default system device. WriteFrames blocks until
// the oto player has pulled the data, which paces the pipeline like a blocking
// ALSA write.
type otoOutput struct {
	player *oto.Player
	pw     *io.PipeWriter
	bytes  []byte
	chans  int
}

func openOtoOutput(format Format) (Output, error) {
	ctx, err := otoContext(format)
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	player := ctx.NewPlayer(pr)
	player.Play()
	return &otoOutput{
		player: player,
		pw:     pw,
		chans:  format.Channels,
	}, nil
}

func (o *otoOutput) WriteFrames(buf []int16, frames int) (int, error) {
	n := frames * o.chans
	if n > len(buf) {
		n = len(buf) - len(buf)%o.chans
	}
	if cap(o.bytes) < n*2 {
		o.bytes = make([]byte, n*2)
	}
	b := o.bytes[:n*2]
	for i, s := range buf[:n] {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	if _, err := o.pw.Write(b); err != nil {
		return 0, err
	}
	return n / o.chans, nil
}

func (o *otoOutput) Close() error {
	_ = o.pw.Close()
	return o.player.Close()
}
