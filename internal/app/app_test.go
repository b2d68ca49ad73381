package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guidoenr/visualsound/internal/control"
	"github.com/guidoenr/visualsound/internal/display"
	"github.com/guidoenr/visualsound/internal/render"
	"github.com/guidoenr/visualsound/internal/settings"
	"github.com/guidoenr/visualsound/internal/voxel"
	"github.com/guidoenr/visualsound/internal/web"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testSettings() settings.Settings {
	s := settings.Defaults()
	s.Audio.Input = "null"
	s.Audio.Output = "null"
	s.Video.Driver = "null"
	s.Video.SizeX, s.Video.SizeY = 16, 16
	s.Video.MaxFPS = 1000
	s.Visualizer.SongData = ""
	return s
}

type fixture struct {
	app     *App
	link    *display.NullLink
	buttons *control.EventButtons
	media   *control.ManualMedia
	songs   *settings.Songs
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	songs, err := settings.OpenSongs("")
	if err != nil {
		t.Fatalf("open songs: %v", err)
	}
	f := &fixture{
		link:    &display.NullLink{},
		buttons: control.NewEventButtons(time.Nanosecond),
		media:   control.NewManualMedia(),
		songs:   songs,
	}
	cfg := Config{
		Settings: testSettings(),
		Link:     f.link,
		Buttons:  f.buttons,
		Media:    f.media,
		Songs:    songs,
		Log:      quietLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	f.app = a
	return f
}

func (f *fixture) step(t *testing.T) {
	t.Helper()
	if err := f.app.step(); err != nil {
		t.Fatalf("step: %v", err)
	}
}

func (f *fixture) press(t *testing.T, b control.Button) {
	t.Helper()
	f.buttons.Press(b)
	f.step(t)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStepStreamsFrames(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 5; i++ {
		f.step(t)
	}
	waitFor(t, "frames on the link", func() bool { return f.link.Frames() > 0 })
	if got, want := len(f.link.Last()), 16*16*3+1; got != want {
		t.Fatalf("frame length %d, want %d", got, want)
	}
}

func TestBrightnessButtonsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	f := newFixture(t, func(c *Config) { c.SettingsPath = path })

	f.press(t, control.Up)
	if got := f.app.transfer.Brightness(); got != 85 {
		t.Fatalf("brightness %d, want 85", got)
	}
	f.step(t)
	f.press(t, control.Down)
	f.step(t)
	f.press(t, control.Down)
	if got := f.app.transfer.Brightness(); got != 75 {
		t.Fatalf("brightness %d, want 75", got)
	}

	saved, err := settings.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if saved.System.Brightness != 75 {
		t.Fatalf("persisted brightness %d, want 75", saved.System.Brightness)
	}
}

func TestVolumeButtons(t *testing.T) {
	f := newFixture(t, nil)
	f.press(t, control.VolDown)
	if got := f.app.pipeline.Volume(); got != 75 {
		t.Fatalf("volume %d, want 75", got)
	}
	if got := f.app.Status().Volume; got != 75 {
		t.Fatalf("status volume %d, want 75", got)
	}
}

func TestMediaButtons(t *testing.T) {
	f := newFixture(t, nil)
	f.media.SetTrack(control.Track{Title: "one"})
	f.step(t)

	f.press(t, control.Right)
	f.step(t)
	f.press(t, control.Right)
	if got := f.media.Skips(); got != 2 {
		t.Fatalf("skips %d, want 2", got)
	}
	f.step(t)
	f.press(t, control.OK)
	if got := f.media.State(); got != control.Paused {
		t.Fatalf("media state %v, want paused", got)
	}
}

func TestEditModeSavesSongData(t *testing.T) {
	f := newFixture(t, nil)
	track := control.Track{Artist: "a", Album: "b", Title: "c"}
	f.media.SetTrack(track)
	f.step(t)

	f.press(t, control.Menu)
	if !f.app.editMode {
		t.Fatalf("menu did not enter edit mode")
	}
	f.press(t, control.OK)
	if f.app.scene != 1 {
		t.Fatalf("scene %d, want 1", f.app.scene)
	}
	f.press(t, control.Left)
	if f.app.color != render.PaletteSize-1 {
		t.Fatalf("palette %d, want %d", f.app.color, render.PaletteSize-1)
	}
	f.press(t, control.Up)
	if got := f.app.scenes[1].Style(); got != 1 {
		t.Fatalf("style %d, want 1", got)
	}
	f.press(t, control.Menu)
	if f.app.editMode {
		t.Fatalf("menu did not leave edit mode")
	}

	d, err := f.songs.Find(track.Artist, track.Album, track.Title)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	pair := render.PaletteEntry(render.PaletteSize - 1)
	if d.Visualizer != 1 || d.Style != 1 {
		t.Fatalf("saved %+v", d)
	}
	if d.Primary != settings.FromColor(pair.Primary) || d.Secondary != settings.FromColor(pair.Secondary) {
		t.Fatalf("saved colors %v %v", d.Primary, d.Secondary)
	}
}

func TestEditModeWithoutTrackSavesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.press(t, control.Menu)
	f.press(t, control.Back)
	if f.app.scene != len(f.app.scenes)-1 {
		t.Fatalf("back from scene 0 gave %d", f.app.scene)
	}
	f.press(t, control.Menu)
	if f.songs.Len() != 0 {
		t.Fatalf("stored %d songs without a track", f.songs.Len())
	}
}

func TestEditModeMarksCorners(t *testing.T) {
	f := newFixture(t, nil)
	f.press(t, control.Menu)
	for i := 0; i < 3; i++ {
		f.step(t)
	}
	white := func(frame []byte, x, y int) bool {
		i := (y*16 + x) * 3
		return len(frame) > i+2 && frame[i] == 255 && frame[i+1] == 255 && frame[i+2] == 255
	}
	waitFor(t, "corner markers", func() bool {
		frame := f.link.Last()
		return white(frame, 0, 0) && white(frame, 15, 0) && white(frame, 0, 15) && white(frame, 15, 15)
	})
}

func TestTrackChangeRestoresScene(t *testing.T) {
	f := newFixture(t, nil)
	known := control.Track{Artist: "x", Title: "y"}
	err := f.songs.Save(known.Artist, known.Album, known.Title, settings.SongData{
		Visualizer: 4,
		Style:      1,
		Primary:    settings.RGB{1, 2, 3},
		Secondary:  settings.RGB{4, 5, 6},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	f.media.SetTrack(known)
	f.step(t)
	cur := f.app.scenes[f.app.scene]
	if f.app.scene != 4 || cur.Style() != 1 {
		t.Fatalf("scene %d style %d, want 4/1", f.app.scene, cur.Style())
	}
	if cur.Color(0) != (voxel.Color{R: 1, G: 2, B: 3}) {
		t.Fatalf("primary %v", cur.Color(0))
	}

	f.media.SetTrack(control.Track{Title: "unknown"})
	f.step(t)
	cur = f.app.scenes[f.app.scene]
	if f.app.scene != 0 {
		t.Fatalf("unknown track kept scene %d", f.app.scene)
	}
	if cur.Color(0) != (voxel.Color{R: 22, G: 22, B: 229}) {
		t.Fatalf("default primary %v", cur.Color(0))
	}
}

func TestRandomizerPicksSceneForUnknownTrack(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Settings.Visualizer.Randomizer = true })
	track := control.Track{Artist: "some", Album: "random", Title: "song"}
	want, err := f.songs.Find(track.Artist, track.Album, track.Title)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	f.media.SetTrack(track)
	f.step(t)
	if got := f.app.scene; got != want.Visualizer%len(f.app.scenes) {
		t.Fatalf("scene %d, want %d", got, want.Visualizer%len(f.app.scenes))
	}
}

func TestUpdateFromWeb(t *testing.T) {
	f := newFixture(t, nil)
	scene, palette := "cube", render.PaletteSize+1
	if err := f.app.Update(web.UpdateRequest{Scene: &scene, Palette: &palette}); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.step(t)
	st := f.app.Status()
	if st.Scene != "cube" || st.SceneIndex != 4 {
		t.Fatalf("scene %q/%d", st.Scene, st.SceneIndex)
	}
	if st.Palette != 1 {
		t.Fatalf("palette %d, want 1", st.Palette)
	}

	bad := "nope"
	if err := f.app.Update(web.UpdateRequest{Scene: &bad}); err == nil {
		t.Fatalf("unknown scene accepted")
	}
	if err := f.app.Update(web.UpdateRequest{Analysis: &bad}); err == nil {
		t.Fatalf("unknown analysis preset accepted")
	}

	bright := 500
	track := control.Track{Title: "from web"}
	if err := f.app.Update(web.UpdateRequest{Brightness: &bright, Track: &track}); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.step(t)
	st = f.app.Status()
	if st.Brightness != 100 {
		t.Fatalf("brightness %d, want 100", st.Brightness)
	}
	if st.Track != track || st.Media != "playing" {
		t.Fatalf("track %+v media %s", st.Track, st.Media)
	}
}

func TestTrackUpdateNeedsManualMedia(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Media = control.NoMedia{} })
	track := control.Track{Title: "t"}
	if err := f.app.Update(web.UpdateRequest{Track: &track}); !errors.Is(err, errMediaReadOnly) {
		t.Fatalf("err = %v, want errMediaReadOnly", err)
	}
}

func TestPressFromWeb(t *testing.T) {
	f := newFixture(t, nil)
	f.app.Press(control.Menu)
	f.step(t)
	if !f.app.Status().EditMode {
		t.Fatalf("web press did not reach the buttons")
	}
}

func TestStatusReportsEngine(t *testing.T) {
	f := newFixture(t, nil)
	f.step(t)
	f.step(t)
	st := f.app.Status()
	if st.Size != [3]int{16, 16, 1} {
		t.Fatalf("size %v", st.Size)
	}
	if st.Brightness != 80 || st.Volume != 80 {
		t.Fatalf("brightness %d volume %d", st.Brightness, st.Volume)
	}
	if st.Audio.Input != "null" || st.Audio.Output != "null" {
		t.Fatalf("audio %+v", st.Audio)
	}
	if st.FPS <= 0 {
		t.Fatalf("fps %v", st.FPS)
	}
	if st.Scene != render.Names()[0] {
		t.Fatalf("scene %q", st.Scene)
	}
}

func TestSaveWritesDefaults(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.app.Save(); err == nil {
		t.Fatalf("save without a settings path succeeded")
	}

	path := filepath.Join(t.TempDir(), "settings.yaml")
	f = newFixture(t, func(c *Config) { c.SettingsPath = path })
	scene := "straight"
	if err := f.app.Update(web.UpdateRequest{Scene: &scene}); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.step(t)
	if err := f.app.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, err := settings.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if saved.Visualizer.Default != 2 {
		t.Fatalf("default scene %d, want 2", saved.Visualizer.Default)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := f.app.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run returned %v", err)
	}
}

func TestRunStopsOnQuit(t *testing.T) {
	f := newFixture(t, nil)
	f.app.requestQuit()
	if err := f.app.Run(context.Background()); err != nil {
		t.Fatalf("run returned %v", err)
	}
}

type failingLink struct {
	display.NullLink
	err error
}

func (l *failingLink) Present() error { return l.err }

func TestRunEndsOnLinkFailure(t *testing.T) {
	boom := errors.New("spi gone")
	f := newFixture(t, func(c *Config) { c.Link = &failingLink{err: boom} })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := f.app.Run(ctx)
	if !errors.Is(err, display.ErrLinkFailed) || !errors.Is(err, boom) {
		t.Fatalf("run returned %v", err)
	}
}

func TestRunEndsCleanlyWhenPreviewCloses(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Link = &failingLink{err: display.ErrQuit} })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.app.Run(ctx); err != nil {
		t.Fatalf("run returned %v", err)
	}
}

func TestUnknownAnalysisPresetRejected(t *testing.T) {
	s := testSettings()
	s.Visualizer.Analysis = "nope"
	_, err := New(Config{Settings: s, Link: &display.NullLink{}, Buttons: control.NewEventButtons(0), Log: quietLogger()})
	if err == nil {
		t.Fatalf("unknown preset accepted")
	}
}

func TestProfilerWritesFrameRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.csv")
	f := newFixture(t, func(c *Config) { c.ProfilePath = path })
	f.step(t)
	f.step(t)
	if err := f.app.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "timestamp,input_ms,analyze_ms,draw_ms,flush_ms,total_ms" {
		t.Fatalf("header %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and 2 frames:\n%s", len(lines), data)
	}
	for _, row := range lines[1:] {
		if n := len(strings.Split(row, ",")); n != 6 {
			t.Fatalf("row %q has %d fields", row, n)
		}
	}
}

func TestNilProfilerIsInert(t *testing.T) {
	var p *profiler
	p.beginFrame()
	p.markSection("draw")
	p.endFrame()
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if newProfiler("", quietLogger()) != nil {
		t.Fatalf("empty path enabled the profiler")
	}
}

func TestBuildLink(t *testing.T) {
	srv := web.NewServer(web.Config{Log: quietLogger()})
	dev := filepath.Join(t.TempDir(), "frames.bin")

	if l, err := BuildLink(settings.Video{Driver: "null"}, nil); err != nil {
		t.Fatalf("null: %v", err)
	} else if _, ok := l.(*display.NullLink); !ok {
		t.Fatalf("null gave %T", l)
	}
	if l, err := BuildLink(settings.Video{}, nil); err != nil {
		t.Fatalf("empty: %v", err)
	} else if _, ok := l.(*display.NullLink); !ok {
		t.Fatalf("empty driver gave %T", l)
	}

	l, err := BuildLink(settings.Video{Driver: "file, null", Device: dev}, srv)
	if err != nil {
		t.Fatalf("multi: %v", err)
	}
	m, ok := l.(display.MultiLink)
	if !ok || len(m) != 3 {
		t.Fatalf("multi gave %T %v", l, l)
	}
	if m[2] != display.Link(srv) {
		t.Fatalf("web server not appended")
	}

	for _, v := range []settings.Video{
		{Driver: "file"},
		{Driver: "bogus"},
		{Driver: "web"},
	} {
		if _, err := BuildLink(v, nil); err == nil {
			t.Fatalf("driver %q accepted", v.Driver)
		}
	}
}
