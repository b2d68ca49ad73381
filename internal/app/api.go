package app

import (
	"errors"
	"fmt"

	"github.com/guidoenr/visualsound/internal/control"
	"github.com/guidoenr/visualsound/internal/params"
	"github.com/guidoenr/visualsound/internal/render"
	"github.com/guidoenr/visualsound/internal/settings"
	"github.com/guidoenr/visualsound/internal/web"
)

var (
	errMediaReadOnly = errors.New("media source does not accept tracks")
	errBusy          = errors.New("engine busy, retry")
)

// Status implements web.AppInterface.
func (a *App) Status() web.Status {
	a.mu.Lock()
	st := a.snapshot
	st.FPS = a.fps
	a.mu.Unlock()

	st.Frames = a.transfer.Frames()
	st.Display = a.transfer.State().String()
	st.Brightness = a.transfer.Brightness()
	st.Volume = a.pipeline.Volume()
	in, out := a.pipeline.Devices()
	st.Audio = web.AudioStatus{Input: in, Output: out, Running: a.pipeline.Running()}
	if err := a.pipeline.Err(); err != nil {
		st.Audio.Error = err.Error()
	}
	return st
}

// Update implements web.AppInterface. Scene changes are validated here and
// applied before the next frame.
func (a *App) Update(req web.UpdateRequest) error {
	if req.Scene != nil {
		i, err := render.Index(*req.Scene)
		if err != nil {
			return err
		}
		err = a.enqueue(func() {
			if a.switchScene(i) {
				pair := render.PaletteEntry(a.color)
				a.scenes[a.scene].SetStyle(0)
				a.scenes[a.scene].SetColors(pair.Primary, pair.Secondary)
			}
		})
		if err != nil {
			return err
		}
	}
	if req.Analysis != nil {
		name := *req.Analysis
		if name != "" {
			if _, err := params.Preset(name); err != nil {
				return err
			}
		}
		err := a.enqueue(func() {
			a.analysis = name
			if name == "" {
				a.scenes[a.scene].Setup()
				return
			}
			a.applyAnalysis()
		})
		if err != nil {
			return err
		}
	}
	if req.Style != nil {
		style := *req.Style
		if err := a.enqueue(func() { a.scenes[a.scene].SetStyle(style) }); err != nil {
			return err
		}
	}
	if req.Palette != nil {
		color := *req.Palette
		if err := a.enqueue(func() { a.setPalette(color) }); err != nil {
			return err
		}
	}
	if req.Track != nil {
		m, ok := a.media.(*control.ManualMedia)
		if !ok {
			return errMediaReadOnly
		}
		m.SetTrack(*req.Track)
	}
	if req.Brightness != nil {
		a.setBrightness(*req.Brightness)
	}
	if req.Volume != nil {
		a.setVolume(*req.Volume)
	}
	if req.Input != nil {
		a.pipeline.SetInputDevice(*req.Input)
		a.mu.Lock()
		a.set.Audio.Input = *req.Input
		a.mu.Unlock()
	}
	if req.Output != nil {
		a.pipeline.SetOutputDevice(*req.Output)
		a.mu.Lock()
		a.set.Audio.Output = *req.Output
		a.mu.Unlock()
	}
	return nil
}

// Press implements web.AppInterface.
func (a *App) Press(b control.Button) {
	if p, ok := a.buttons.(presser); ok {
		p.Press(b)
	}
}

// Save implements web.AppInterface: the current scene becomes the default
// and the settings file is written.
func (a *App) Save() error {
	if a.cfg.SettingsPath == "" {
		return errors.New("no settings file configured")
	}
	a.mu.Lock()
	st := a.snapshot
	a.set.Visualizer.Default = st.SceneIndex
	a.set.Visualizer.Style = st.Style
	pair := render.PaletteEntry(st.Palette)
	a.set.Visualizer.Primary = settings.FromColor(pair.Primary)
	a.set.Visualizer.Secondary = settings.FromColor(pair.Secondary)
	set := a.set
	a.mu.Unlock()
	if err := set.Save(a.cfg.SettingsPath); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
