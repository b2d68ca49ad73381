//go:build !sdl

package display

import (
	"errors"

	"github.com/guidoenr/visualsound/internal/voxel"
)

// NewSDLLink is unavailable without the sdl build tag.
func NewSDLLink(size voxel.Vector) (Link, error) {
	return nil, errors.New("SDL preview not enabled; rebuild with -tags sdl")
}

// SupportsSDL reports whether the binary was built with the sdl tag.
func SupportsSDL() bool { return false }
