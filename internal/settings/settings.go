package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/guidoenr/visualsound/internal/voxel"
)

// RGB is a colour in settings files, written as [r, g, b].
type RGB [3]uint8

// Color converts to a voxel colour.
func (c RGB) Color() voxel.Color { return voxel.Color{R: c[0], G: c[1], B: c[2]} }

// FromColor converts a voxel colour for persisting.
func FromColor(c voxel.Color) RGB { return RGB{c.R, c.G, c.B} }

// Settings is the persisted application configuration.
type Settings struct {
	System     System     `yaml:"system"`
	Audio      Audio      `yaml:"audio"`
	Video      Video      `yaml:"video"`
	Visualizer Visualizer `yaml:"visualizer"`
	Input      Input      `yaml:"input"`
	Web        Web        `yaml:"web"`
}

type System struct {
	Brightness int `yaml:"brightness"`
	Volume     int `yaml:"volume"`
}

type Audio struct {
	Input         string `yaml:"input"`
	Output        string `yaml:"output"`
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	LatencyMs     int    `yaml:"latency_ms"`
	BufferSamples int    `yaml:"buffer_samples"`
	AnalysisSize  int    `yaml:"analysis_size"`
}

// Video describes the display. Driver is a comma separated list of links
// (file, terminal, sdl, web, null) that all receive every frame.
type Video struct {
	Driver     string `yaml:"driver"`
	Device     string `yaml:"device"`
	SizeX      int    `yaml:"size_x"`
	SizeY      int    `yaml:"size_y"`
	SizeZ      int    `yaml:"size_z"`
	Oversample int    `yaml:"oversample"`
	Rotation   int    `yaml:"rotation"`
	MaxFPS     int    `yaml:"max_fps"`
}

// Size returns the logical display size.
func (v Video) Size() voxel.Vector { return voxel.V(v.SizeX, v.SizeY, v.SizeZ) }

// Drivers splits Driver into its trimmed, lower-cased names.
func (v Video) Drivers() []string {
	var out []string
	for _, d := range strings.Split(v.Driver, ",") {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			out = append(out, d)
		}
	}
	return out
}

type Visualizer struct {
	Default    int    `yaml:"default"`
	Style      int    `yaml:"style"`
	Primary    RGB    `yaml:"primary,flow"`
	Secondary  RGB    `yaml:"secondary,flow"`
	Randomizer bool   `yaml:"randomizer"`
	Analysis   string `yaml:"analysis,omitempty"`
	SongData   string `yaml:"song_data"`
}

// Input maps button names (up, down, left, right, home, menu, back, ok,
// volup, voldown, pwr) to keys.
type Input struct {
	Keys map[string]string `yaml:"keys,omitempty"`
}

type Web struct {
	Addr string `yaml:"addr"`
}

// Defaults mirrors a 32x16 panel driven at 80% brightness.
func Defaults() Settings {
	return Settings{
		System: System{Brightness: 80, Volume: 80},
		Audio: Audio{
			Input:         "pa:",
			Output:        "pa:",
			SampleRate:    48000,
			Channels:      2,
			LatencyMs:     100,
			BufferSamples: 24000,
			AnalysisSize:  512,
		},
		Video: Video{
			Driver:     "terminal",
			SizeX:      32,
			SizeY:      16,
			SizeZ:      1,
			Oversample: 1,
			MaxFPS:     60,
		},
		Visualizer: Visualizer{
			Primary:   RGB{22, 22, 229},
			Secondary: RGB{229, 22, 22},
			SongData:  "songdata.yaml",
		},
	}
}

// Load reads settings from path on top of Defaults. A missing file yields the
// defaults.
func Load(path string) (*Settings, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the settings to path, creating its directory.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return writeFile(path, data)
}

// Normalize clamps values into their valid ranges.
func (s *Settings) Normalize() {
	s.System.Brightness = max(1, min(s.System.Brightness, 100))
	s.System.Volume = max(0, min(s.System.Volume, 100))
	if s.Video.SizeZ <= 0 {
		s.Video.SizeZ = 1
	}
	if s.Video.Oversample <= 0 {
		s.Video.Oversample = 1
	}
}

// SongDataPath resolves the song data file relative to the settings file.
func (s *Settings) SongDataPath(settingsPath string) string {
	p := s.Visualizer.SongData
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(settingsPath), p)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
