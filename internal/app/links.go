package app

import (
	"errors"
	"fmt"

	"github.com/guidoenr/visualsound/internal/display"
	"github.com/guidoenr/visualsound/internal/settings"
	"github.com/guidoenr/visualsound/internal/web"
)

// BuildLink turns the configured video drivers into one display link. When a
// web server is given it always receives the frames as well.
func BuildLink(video settings.Video, srv *web.Server) (display.Link, error) {
	size := video.Size()
	var links display.MultiLink
	hasWeb := false
	for _, name := range video.Drivers() {
		switch name {
		case "file", "spi", "serial":
			if video.Device == "" {
				return nil, fmt.Errorf("video driver %q needs video.device", name)
			}
			links = append(links, &display.FileLink{Path: video.Device})
		case "terminal":
			links = append(links, display.NewTerminalLink(size))
		case "sdl":
			l, err := display.NewSDLLink(size)
			if err != nil {
				return nil, fmt.Errorf("sdl preview: %w", err)
			}
			links = append(links, l)
		case "web":
			if srv == nil {
				return nil, errors.New("video driver \"web\" needs the web server enabled")
			}
			links = append(links, srv)
			hasWeb = true
		case "null":
			links = append(links, &display.NullLink{})
		default:
			return nil, fmt.Errorf("unknown video driver %q", name)
		}
	}
	if srv != nil && !hasWeb {
		links = append(links, srv)
	}
	switch len(links) {
	case 0:
		return &display.NullLink{}, nil
	case 1:
		return links[0], nil
	}
	return links, nil
}
