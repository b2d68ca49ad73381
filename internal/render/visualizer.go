package render

import (
	"fmt"
	"strings"

	"github.com/guidoenr/visualsound/internal/analyzer"
	"github.com/guidoenr/visualsound/internal/params"
	"github.com/guidoenr/visualsound/internal/voxel"
)

// Visualizer draws one scene into a canvas from the analyzer's latest data.
type Visualizer interface {
	// Setup claims the shared canvas and analyzer for this scene: it sets the
	// rotation and the analysis tuning the scene was designed for.
	Setup()
	// Draw renders one frame. elapsed is the time since the previous frame in
	// seconds.
	Draw(elapsed float64)
	SetColors(c1, c2 voxel.Color)
	// Color returns colour n (0 primary, 1 secondary, anything else black).
	Color(n int) voxel.Color
	// SetStyle selects a style, wrapping out-of-range values.
	SetStyle(style int)
	Style() int
	// Clear releases per-scene state before another scene takes over.
	Clear()
}

// Factory builds a scene bound to a canvas and analyzer.
type Factory func(cv *voxel.Canvas, an *analyzer.Analyzer) Visualizer

type entry struct {
	name    string
	factory Factory
}

// The index of each entry is persisted in settings and song data, so new
// scenes are appended.
var sceneRegistry = []entry{
	{"round", func(cv *voxel.Canvas, an *analyzer.Analyzer) Visualizer { return NewRound(cv, an, 0) }},
	{"round90", func(cv *voxel.Canvas, an *analyzer.Analyzer) Visualizer { return NewRound(cv, an, 90) }},
	{"straight", func(cv *voxel.Canvas, an *analyzer.Analyzer) Visualizer { return NewStraight(cv, an, 0) }},
	{"straight90", func(cv *voxel.Canvas, an *analyzer.Analyzer) Visualizer { return NewStraight(cv, an, 90) }},
	{"cube", func(cv *voxel.Canvas, an *analyzer.Analyzer) Visualizer { return NewCube(cv, an) }},
}

// Names returns the scene identifiers in index order.
func Names() []string {
	names := make([]string, len(sceneRegistry))
	for i, e := range sceneRegistry {
		names[i] = e.name
	}
	return names
}

// Index resolves a scene name (case-insensitive) to its index.
func Index(name string) (int, error) {
	for i, e := range sceneRegistry {
		if strings.EqualFold(e.name, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown scene %q (have %s)", name, strings.Join(Names(), ", "))
}

// NewScene builds the scene at index i, wrapping out-of-range indices.
func NewScene(i int, cv *voxel.Canvas, an *analyzer.Analyzer) Visualizer {
	n := len(sceneRegistry)
	i %= n
	if i < 0 {
		i += n
	}
	return sceneRegistry[i].factory(cv, an)
}

// All builds every registered scene in index order.
func All(cv *voxel.Canvas, an *analyzer.Analyzer) []Visualizer {
	out := make([]Visualizer, len(sceneRegistry))
	for i := range sceneRegistry {
		out[i] = NewScene(i, cv, an)
	}
	return out
}

// base carries the state every scene shares.
type base struct {
	canvas   *voxel.Canvas
	analyzer *analyzer.Analyzer
	color1   voxel.Color
	color2   voxel.Color
	style    int
	styles   int
	rotation int
	tuning   params.Analysis
}

// sceneTuning is the analysis the flat scenes were designed around.
var sceneTuning = params.Analysis{
	SampleRate:     6000,
	WaveLPF:        0.3,
	WaveTimeSmooth: 0.6,
	SpecSmoothPass: 8,
	SpecTimeSmooth: 0.3,
}

func (b *base) Setup() {
	if b.canvas.Flat() {
		// quarter turns only exist on flat canvases
		_ = b.canvas.SetRotation(b.rotation)
	}
	b.analyzer.SetParams(b.tuning.Params(0))
}

func (b *base) SetColors(c1, c2 voxel.Color) {
	b.color1 = c1
	b.color2 = c2
}

func (b *base) Color(n int) voxel.Color {
	switch n {
	case 0:
		return b.color1
	case 1:
		return b.color2
	}
	return voxel.Black
}

func (b *base) SetStyle(style int) {
	style %= b.styles
	if style < 0 {
		style += b.styles
	}
	b.style = style
}

func (b *base) Style() int { return b.style }

func (b *base) Clear() {}

// intensity returns the overall level, uncapped, and the bass level the way
// the flat scenes scale them.
func (b *base) intensity() (vu, bass float64) {
	l, r := b.analyzer.Bands(0), b.analyzer.Bands(1)
	return float64(l.VU+r.VU) / 6000, float64(l.Bass+r.Bass) / 24000
}

func (b *base) singleColor() bool { return b.color2 == voxel.Black }

func capOne(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
