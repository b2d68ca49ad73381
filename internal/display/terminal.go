package display

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/guidoenr/visualsound/internal/voxel"
	"golang.org/x/term"
)

// TerminalLink previews frames in a truecolor terminal. Every character cell
// shows two voxel rows with the upper half block; depth slices are laid out
// side by side.
type TerminalLink struct {
	Size voxel.Vector
	Out  io.Writer

	w     *bufio.Writer
	frame []byte
	fd    int
	count uint64
}

// NewTerminalLink previews a display of the given size on stdout.
func NewTerminalLink(size voxel.Vector) *TerminalLink {
	return &TerminalLink{Size: size, Out: os.Stdout}
}

func (l *TerminalLink) Open() error {
	if l.Out == nil {
		l.Out = os.Stdout
	}
	l.fd = -1
	if f, ok := l.Out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		l.fd = int(f.Fd())
	}
	l.w = bufio.NewWriterSize(l.Out, 64*1024)
	l.w.WriteString("\x1b[?1049h\x1b[2J\x1b[H\x1b[?25l")
	return l.w.Flush()
}

func (l *TerminalLink) Write(frame []byte) (int, error) {
	l.frame = append(l.frame[:0], frame...)
	return len(frame), nil
}

// scale returns how many terminal columns one voxel may use.
func (l *TerminalLink) scale() int {
	if l.fd < 0 {
		return 1
	}
	w, h, err := term.GetSize(l.fd)
	if err != nil || w <= 0 || h <= 1 {
		return 1
	}
	sx := w / max(1, l.Size.Z*(l.Size.X+1))
	sy := 2 * (h - 1) / max(1, l.Size.Y)
	return max(1, min(sx, sy, 4))
}

func (l *TerminalLink) Present() error {
	if l.w == nil {
		return ErrNotInitialized
	}
	need := l.Size.X*l.Size.Y*l.Size.Z*3 + 1
	if len(l.frame) < need {
		return fmt.Errorf("terminal preview: frame has %d bytes, want %d", len(l.frame), need)
	}
	s := l.scale()
	rows := l.Size.Y * s
	l.w.WriteString("\x1b[H")
	for py := 0; py < rows; py += 2 {
		for z := 0; z < l.Size.Z; z++ {
			for x := 0; x < l.Size.X; x++ {
				top := l.voxel(x, py/s, z)
				bottom := top
				if py+1 < rows {
					bottom = l.voxel(x, (py+1)/s, z)
				}
				for i := 0; i < s; i++ {
					writeCell(l.w, top, bottom)
				}
			}
			l.w.WriteString("\x1b[0m ")
		}
		l.w.WriteString("\x1b[0m\x1b[K\r\n")
	}
	l.count++
	meta := l.frame[need-1]
	l.w.WriteString("frame ")
	l.w.WriteString(strconv.FormatUint(l.count, 10))
	l.w.WriteString(" band ")
	l.w.WriteString(strconv.Itoa(int(meta & MetaBrightnessMask)))
	if meta&MetaReset != 0 {
		l.w.WriteString(" reset")
	}
	if meta&MetaStandby != 0 {
		l.w.WriteString(" standby")
	}
	l.w.WriteString("\x1b[K")
	return l.w.Flush()
}

func (l *TerminalLink) voxel(x, y, z int) voxel.Color {
	i := ((z*l.Size.Y+y)*l.Size.X + x) * 3
	return voxel.Color{R: l.frame[i], G: l.frame[i+1], B: l.frame[i+2]}
}

func writeCell(w *bufio.Writer, top, bottom voxel.Color) {
	w.WriteString("\x1b[38;2;")
	writeRGB(w, top)
	w.WriteString(";48;2;")
	writeRGB(w, bottom)
	w.WriteString("m▀")
}

func writeRGB(w *bufio.Writer, c voxel.Color) {
	w.WriteString(strconv.Itoa(int(c.R)))
	w.WriteByte(';')
	w.WriteString(strconv.Itoa(int(c.G)))
	w.WriteByte(';')
	w.WriteString(strconv.Itoa(int(c.B)))
}

func (l *TerminalLink) Close() error {
	if l.w == nil {
		return nil
	}
	l.w.WriteString("\x1b[?25h\x1b[?1049l\x1b[0m")
	err := l.w.Flush()
	l.w = nil
	return err
}
