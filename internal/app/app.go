package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guidoenr/visualsound/internal/analyzer"
	"github.com/guidoenr/visualsound/internal/audio"
	"github.com/guidoenr/visualsound/internal/control"
	"github.com/guidoenr/visualsound/internal/display"
	"github.com/guidoenr/visualsound/internal/params"
	"github.com/guidoenr/visualsound/internal/render"
	"github.com/guidoenr/visualsound/internal/settings"
	"github.com/guidoenr/visualsound/internal/voxel"
	"github.com/guidoenr/visualsound/internal/web"
)

const (
	// powerHold is how long Power must be held to stop the engine.
	powerHold   = 4 * time.Second
	volumeStep  = 5
	brightStep  = 5
	featureGate = 0.02
)

// Config configures the application runtime.
type Config struct {
	Settings settings.Settings
	// SettingsPath is where brightness and volume changes persist. Empty
	// keeps them in memory.
	SettingsPath string
	// Opener overrides the audio device backends.
	Opener audio.Opener
	// Link overrides the links built from Settings.Video.
	Link display.Link
	// Buttons overrides the keyboard.
	Buttons     control.Buttons
	Media       control.Media
	Songs       *settings.Songs
	Web         *web.Server
	ProfilePath string
	Log         logrus.FieldLogger
}

// presser is implemented by buttons that accept injected presses.
type presser interface {
	Press(b control.Button)
}

// quitter is implemented by buttons that can ask the engine to stop.
type quitter interface {
	Quit() <-chan struct{}
}

// App ties together audio, analysis, scenes and the display.
type App struct {
	cfg      Config
	log      logrus.FieldLogger
	pipeline *audio.Pipeline
	analyzer *analyzer.Analyzer
	canvas   *voxel.Canvas
	transfer *display.Transfer
	scenes   []render.Visualizer
	buttons  control.Buttons
	hold     *control.HoldTracker
	media    control.Media
	songs    *settings.Songs
	prof     *profiler
	last     time.Time
	quit     chan struct{}
	cmds     chan func()

	// loop state, owned by the Run goroutine
	scene    int
	color    int
	editMode bool
	track    control.Track
	analysis string

	mu       sync.Mutex
	set      settings.Settings
	snapshot web.Status
	fps      float64
	quitOnce sync.Once
}

// New constructs the application using the provided configuration.
func New(cfg Config) (*App, error) {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	cfg.Settings.Normalize()
	set := cfg.Settings
	log := cfg.Log.WithField("component", "app")

	if cfg.Media == nil {
		cfg.Media = control.NewManualMedia()
	}
	if cfg.Songs == nil {
		songs, err := settings.OpenSongs(set.SongDataPath(cfg.SettingsPath))
		if err != nil {
			return nil, err
		}
		cfg.Songs = songs
	}
	cfg.Songs.EnableDefaulter(set.Visualizer.Randomizer)

	if set.Visualizer.Analysis != "" {
		if _, err := params.Preset(set.Visualizer.Analysis); err != nil {
			return nil, err
		}
	}

	pipeline, err := audio.New(audio.Config{
		Format: audio.Format{
			SampleRate: set.Audio.SampleRate,
			Channels:   set.Audio.Channels,
			Latency:    time.Duration(set.Audio.LatencyMs) * time.Millisecond,
		},
		BufferSamples: set.Audio.BufferSamples,
		Input:         set.Audio.Input,
		Output:        set.Audio.Output,
		Opener:        cfg.Opener,
		Log:           cfg.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("audio pipeline: %w", err)
	}
	pipeline.SetVolume(set.System.Volume)

	an, err := analyzer.New(analyzer.Config{
		Source:        pipeline,
		BufferSize:    set.Audio.AnalysisSize,
		NativeRate:    pipeline.NativeRate(),
		HistoryFrames: pipeline.Ring().Frames(),
		Log:           cfg.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	canvas, err := voxel.NewCanvas(set.Video.Size(), set.Video.Oversample, set.Video.Rotation)
	if err != nil {
		return nil, fmt.Errorf("canvas: %w", err)
	}

	link := cfg.Link
	if link == nil {
		if link, err = BuildLink(set.Video, cfg.Web); err != nil {
			return nil, err
		}
	}
	transfer := display.New(display.Config{
		Size:       set.Video.Size(),
		MaxFPS:     set.Video.MaxFPS,
		Brightness: set.System.Brightness,
		Link:       link,
		Log:        cfg.Log,
	})
	if err := transfer.Init(); err != nil {
		return nil, err
	}

	if cfg.Buttons == nil {
		keymap, err := control.Keymap(set.Input.Keys)
		if err != nil {
			_ = transfer.Close()
			return nil, err
		}
		kb, err := control.OpenKeyboard(keymap, cfg.Log)
		if err != nil {
			log.WithError(err).Warn("keyboard input disabled")
			cfg.Buttons = control.NewEventButtons(0)
		} else {
			cfg.Buttons = kb
		}
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		pipeline: pipeline,
		analyzer: an,
		canvas:   canvas,
		transfer: transfer,
		scenes:   render.All(canvas, an),
		buttons:  cfg.Buttons,
		hold:     control.NewHoldTracker(cfg.Buttons),
		media:    cfg.Media,
		songs:    cfg.Songs,
		prof:     newProfiler(cfg.ProfilePath, cfg.Log),
		quit:     make(chan struct{}),
		cmds:     make(chan func(), 16),
		analysis: set.Visualizer.Analysis,
		set:      set,
		last:     time.Now(),
	}
	a.scenes[a.scene].Setup()
	a.applyAnalysis()
	a.applyDefaults()
	a.refreshSnapshot()

	pipeline.Start()
	if cfg.Web != nil {
		cfg.Web.Attach(a)
	}
	log.WithFields(logrus.Fields{
		"scene":   render.Names()[a.scene],
		"size":    set.Video.Size(),
		"drivers": set.Video.Drivers(),
	}).Info("engine ready")
	return a, nil
}

// Run drives the frame loop until the context is cancelled, a quit is
// requested or the display link fails. Frames are paced by the display.
func (a *App) Run(ctx context.Context) error {
	var keyQuit <-chan struct{}
	if q, ok := a.buttons.(quitter); ok {
		keyQuit = q.Quit()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-keyQuit:
			a.log.Info("quit requested")
			return nil
		case <-a.quit:
			return nil
		default:
		}
		if err := a.step(); err != nil {
			if errors.Is(err, display.ErrQuit) {
				a.log.Info("preview closed")
				return nil
			}
			return err
		}
	}
}

// Close releases held resources.
func (a *App) Close() error {
	var errs []error
	if err := a.transfer.Close(); err != nil && !errors.Is(err, display.ErrClosed) {
		errs = append(errs, err)
	}
	if err := a.pipeline.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.buttons.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.prof.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) step() error {
	a.prof.beginFrame()
	now := time.Now()
	elapsed := now.Sub(a.last).Seconds()
	a.last = now

	a.drainCommands()
	if t := a.media.Track(); t != a.track {
		a.track = t
		a.applyTrack()
	}
	a.buttons.Update()
	a.handleInput(now)
	a.prof.markSection("input")

	a.analyzer.Refresh()
	a.prof.markSection("analyze")

	a.scenes[a.scene].Draw(elapsed)
	if a.editMode {
		a.drawEditMode()
	}
	a.prof.markSection("draw")

	if err := a.canvas.Flush(a.transfer); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	a.prof.markSection("flush")
	a.prof.endFrame()

	a.mu.Lock()
	if elapsed > 0 {
		if a.fps == 0 {
			a.fps = 1 / elapsed
		} else {
			a.fps = a.fps*0.9 + 0.1/elapsed
		}
	}
	a.mu.Unlock()
	a.refreshSnapshot()
	return nil
}

func (a *App) drainCommands() {
	for {
		select {
		case fn := <-a.cmds:
			fn()
		default:
			return
		}
	}
}

// enqueue runs fn on the loop goroutine before the next frame.
func (a *App) enqueue(fn func()) error {
	select {
	case a.cmds <- fn:
		return nil
	default:
		return errBusy
	}
}

func (a *App) applyDefaults() {
	a.mu.Lock()
	vis := a.set.Visualizer
	a.mu.Unlock()
	a.switchScene(vis.Default)
	a.scenes[a.scene].SetStyle(vis.Style)
	a.scenes[a.scene].SetColors(vis.Primary.Color(), vis.Secondary.Color())
}

// applyTrack restores the scene remembered for the current track.
func (a *App) applyTrack() {
	t := a.track
	d, err := a.songs.Find(t.Artist, t.Album, t.Title)
	if err != nil {
		a.applyDefaults()
		return
	}
	a.switchScene(d.Visualizer)
	a.scenes[a.scene].SetStyle(d.Style)
	a.scenes[a.scene].SetColors(d.Primary.Color(), d.Secondary.Color())
	a.log.WithFields(logrus.Fields{
		"title": t.Title,
		"scene": render.Names()[a.scene],
	}).Debug("track scene restored")
}

// switchScene makes scene i (wrapped) current, setting it up when it changes.
func (a *App) switchScene(i int) bool {
	n := len(a.scenes)
	i %= n
	if i < 0 {
		i += n
	}
	if i == a.scene {
		return false
	}
	a.scenes[a.scene].Clear()
	a.scene = i
	a.scenes[i].Setup()
	a.applyAnalysis()
	return true
}

// applyAnalysis overrides the scene tuning with the configured preset.
func (a *App) applyAnalysis() {
	if a.analysis == "" {
		return
	}
	preset, err := params.Preset(a.analysis)
	if err != nil {
		return
	}
	a.analyzer.SetParams(preset.Params(a.pipeline.NativeRate()))
}

func (a *App) handleInput(now time.Time) {
	a.hold.Check(control.Power, now)
	if a.hold.Held(control.Power) > powerHold {
		a.log.Info("power held, stopping")
		a.requestQuit()
		return
	}
	if a.hold.Check(control.VolUp, now) {
		a.setVolume(a.pipeline.Volume() + volumeStep)
	}
	if a.hold.Check(control.VolDown, now) {
		a.setVolume(a.pipeline.Volume() - volumeStep)
	}

	if !a.editMode {
		if a.buttons.State(control.Menu) == 1 {
			a.editMode = true
			return
		}
		if a.hold.Check(control.Up, now) {
			a.setBrightness(a.transfer.Brightness() + brightStep)
		}
		if a.hold.Check(control.Down, now) {
			a.setBrightness(a.transfer.Brightness() - brightStep)
		}
		if a.buttons.State(control.Left) == 1 {
			a.mediaCall("previous", a.media.Previous)
		}
		if a.buttons.State(control.Right) == 1 {
			a.mediaCall("next", a.media.Next)
		}
		if a.buttons.State(control.OK) == 1 {
			switch a.media.State() {
			case control.Playing:
				a.mediaCall("pause", a.media.Pause)
			case control.Stopped, control.Paused:
				a.mediaCall("play", a.media.Play)
			}
		}
		return
	}

	if a.buttons.State(control.Menu) == 1 {
		a.editMode = false
		a.saveSong()
		return
	}
	scene := a.scene
	if a.hold.Check(control.OK, now) {
		scene++
	}
	if a.hold.Check(control.Back, now) {
		scene--
	}
	if a.switchScene(scene) {
		pair := render.PaletteEntry(a.color)
		a.scenes[a.scene].SetStyle(0)
		a.scenes[a.scene].SetColors(pair.Primary, pair.Secondary)
	}
	cur := a.scenes[a.scene]
	if a.hold.Check(control.Up, now) {
		cur.SetStyle(cur.Style() + 1)
	}
	if a.hold.Check(control.Down, now) {
		cur.SetStyle(cur.Style() - 1)
	}
	color := a.color
	if a.hold.Check(control.Left, now) {
		color--
	}
	if a.hold.Check(control.Right, now) {
		color++
	}
	if color != a.color {
		a.setPalette(color)
	}
}

func (a *App) setPalette(i int) {
	a.color = (i%render.PaletteSize + render.PaletteSize) % render.PaletteSize
	pair := render.PaletteEntry(a.color)
	a.scenes[a.scene].SetColors(pair.Primary, pair.Secondary)
}

// saveSong remembers the current scene for the playing track.
func (a *App) saveSong() {
	if a.track.Empty() {
		return
	}
	pair := render.PaletteEntry(a.color)
	d := settings.SongData{
		Visualizer: a.scene,
		Style:      a.scenes[a.scene].Style(),
		Primary:    settings.FromColor(pair.Primary),
		Secondary:  settings.FromColor(pair.Secondary),
	}
	if err := a.songs.Save(a.track.Artist, a.track.Album, a.track.Title, d); err != nil {
		a.log.WithError(err).Warn("save song data")
	}
}

func (a *App) mediaCall(name string, fn func() error) {
	if err := fn(); err != nil {
		a.log.WithError(err).WithField("action", name).Warn("media control failed")
	}
}

func (a *App) setVolume(v int) {
	a.pipeline.SetVolume(v)
	a.mu.Lock()
	a.set.System.Volume = a.pipeline.Volume()
	a.mu.Unlock()
	a.persist()
}

func (a *App) setBrightness(b int) {
	a.transfer.SetBrightness(b)
	a.mu.Lock()
	a.set.System.Brightness = a.transfer.Brightness()
	a.mu.Unlock()
	a.persist()
}

// persist writes the settings file when one is configured.
func (a *App) persist() {
	if a.cfg.SettingsPath == "" {
		return
	}
	a.mu.Lock()
	set := a.set
	a.mu.Unlock()
	if err := set.Save(a.cfg.SettingsPath); err != nil {
		a.log.WithError(err).Warn("save settings")
	}
}

func (a *App) requestQuit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// drawEditMode marks the four corners of the front layer.
func (a *App) drawEditMode() {
	dim := a.canvas.Dimension()
	ov := a.canvas.Oversample()
	size := dim.Y / 16
	if size > dim.X/16 {
		size = dim.X / 16
	}
	if size < ov {
		size = ov
	}
	x1, y1 := dim.X-1, dim.Y-1
	c := voxel.White
	a.canvas.DrawTri(voxel.V(size, 0, 0), c, voxel.V(0, 0, 0), c, voxel.V(0, size, 0), c)
	a.canvas.DrawTri(voxel.V(x1-size, 0, 0), c, voxel.V(x1, 0, 0), c, voxel.V(x1, size, 0), c)
	a.canvas.DrawTri(voxel.V(size, y1, 0), c, voxel.V(0, y1, 0), c, voxel.V(0, y1-size, 0), c)
	a.canvas.DrawTri(voxel.V(x1-size, y1, 0), c, voxel.V(x1, y1, 0), c, voxel.V(x1, y1-size, 0), c)
}

func (a *App) refreshSnapshot() {
	cur := a.scenes[a.scene]
	st := web.Status{
		Display:    a.transfer.State().String(),
		Size:       [3]int{a.canvas.Size().X, a.canvas.Size().Y, a.canvas.Size().Z},
		Scene:      render.Names()[a.scene],
		SceneIndex: a.scene,
		Style:      cur.Style(),
		Palette:    a.color,
		EditMode:   a.editMode,
		Track:      a.track,
		Media:      a.media.State().String(),
		Features:   analyzer.GateFeatures(a.analyzer.Features(), featureGate),
	}
	a.mu.Lock()
	a.snapshot = st
	a.mu.Unlock()
}
