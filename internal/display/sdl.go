//go:build sdl

package display

import (
	"fmt"

	"github.com/guidoenr/visualsound/internal/voxel"
	"github.com/veandco/go-sdl2/sdl"
)

// SDLLink previews frames in a window, one square of CellSize pixels per
// voxel with depth slices side by side.
type SDLLink struct {
	Size     voxel.Vector
	CellSize int
	Title    string

	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	pixels   []byte
	width    int
	height   int
}

// NewSDLLink builds a window preview for a display of the given size.
func NewSDLLink(size voxel.Vector) (Link, error) {
	return &SDLLink{Size: size, CellSize: 16, Title: "visualsound"}, nil
}

// SupportsSDL reports whether the binary was built with the sdl tag.
func SupportsSDL() bool { return true }

func (l *SDLLink) Open() error {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("sdl init: %w", err)
	}
	l.width = l.Size.Z*l.Size.X + (l.Size.Z - 1)
	l.height = l.Size.Y
	window, err := sdl.CreateWindow(
		l.Title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(l.width*l.CellSize), int32(l.height*l.CellSize),
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		l.Close()
		return err
	}
	l.window = window
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		l.Close()
		return err
	}
	l.renderer = renderer
	_ = renderer.SetLogicalSize(int32(l.width), int32(l.height))
	tex, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(l.width), int32(l.height),
	)
	if err != nil {
		l.Close()
		return err
	}
	l.texture = tex
	l.pixels = make([]byte, l.width*l.height*4)
	return nil
}

func (l *SDLLink) Write(frame []byte) (int, error) {
	need := l.Size.X*l.Size.Y*l.Size.Z*3 + 1
	if len(frame) < need {
		return 0, fmt.Errorf("sdl preview: frame has %d bytes, want %d", len(frame), need)
	}
	pitch := l.width * 4
	for z := 0; z < l.Size.Z; z++ {
		for y := 0; y < l.Size.Y; y++ {
			for x := 0; x < l.Size.X; x++ {
				src := ((z*l.Size.Y+y)*l.Size.X + x) * 3
				dst := y*pitch + (z*(l.Size.X+1)+x)*4
				l.pixels[dst+0] = frame[src+0]
				l.pixels[dst+1] = frame[src+1]
				l.pixels[dst+2] = frame[src+2]
				l.pixels[dst+3] = 255
			}
		}
	}
	return len(frame), nil
}

func (l *SDLLink) Present() error {
	if l.texture == nil {
		return ErrNotInitialized
	}
	if err := l.texture.Update(nil, l.pixels, l.width*4); err != nil {
		return err
	}
	if err := l.renderer.Clear(); err != nil {
		return err
	}
	if err := l.renderer.Copy(l.texture, nil, nil); err != nil {
		return err
	}
	l.renderer.Present()
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if _, ok := event.(*sdl.QuitEvent); ok {
			return ErrQuit
		}
	}
	return nil
}

func (l *SDLLink) Close() error {
	if l.texture != nil {
		l.texture.Destroy()
		l.texture = nil
	}
	if l.renderer != nil {
		l.renderer.Destroy()
		l.renderer = nil
	}
	if l.window != nil {
		l.window.Destroy()
		l.window = nil
	}
	l.pixels = nil
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}
