package params

import (
	"fmt"
	"math"
	"sort"

	"github.com/guidoenr/visualsound/internal/analyzer"
)

// Analysis is the persisted form of the analyzer tuning.
type Analysis struct {
	SampleRate     int     `yaml:"sample_rate"`
	WaveLPF        float64 `yaml:"wave_lpf"`
	WaveTimeSmooth float64 `yaml:"wave_time_smooth"`
	SpecSmoothPass int     `yaml:"spec_smooth_pass"`
	SpecTimeSmooth float64 `yaml:"spec_time_smooth"`
}

// DefaultAnalysis returns unfiltered analysis at 6 kHz.
func DefaultAnalysis() Analysis {
	return FromAnalyzer(analyzer.DefaultParams())
}

// FromAnalyzer converts analyzer parameters into their persisted form.
func FromAnalyzer(p analyzer.Params) Analysis {
	return Analysis{
		SampleRate:     p.SampleRate,
		WaveLPF:        p.WaveLPF,
		WaveTimeSmooth: p.WaveTimeSmooth,
		SpecSmoothPass: p.SpecSmoothPass,
		SpecTimeSmooth: p.SpecTimeSmooth,
	}
}

// Params converts to analyzer parameters clamped for a device running at native Hz.
func (a Analysis) Params(native int) analyzer.Params {
	return analyzer.Params{
		SampleRate:     a.SampleRate,
		WaveLPF:        a.WaveLPF,
		WaveTimeSmooth: a.WaveTimeSmooth,
		SpecSmoothPass: a.SpecSmoothPass,
		SpecTimeSmooth: a.SpecTimeSmooth,
	}.Clamp(native)
}

var presets = map[string]Analysis{
	"raw":     DefaultAnalysis(),
	"smooth":  {SampleRate: 6000, WaveLPF: 0.4, WaveTimeSmooth: 0.5, SpecSmoothPass: 2, SpecTimeSmooth: 0.4},
	"punchy":  {SampleRate: 4000, WaveLPF: 0.8, WaveTimeSmooth: 1, SpecSmoothPass: 1, SpecTimeSmooth: 0.7},
	"ambient": {SampleRate: 8000, WaveLPF: 0.2, WaveTimeSmooth: 0.25, SpecSmoothPass: 4, SpecTimeSmooth: 0.15},
}

// Preset returns a named analysis tuning.
func Preset(name string) (Analysis, error) {
	a, ok := presets[name]
	if !ok {
		return Analysis{}, fmt.Errorf("unknown analysis preset %q", name)
	}
	return a, nil
}

// PresetNames lists the known presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Motion carries the animation state scenes derive from audio features.
type Motion struct {
	Time           float64
	Speed          float64
	Amplitude      float64
	HueShift       float64
	Brightness     float64
	Pulse          float64
	BeatThreshold  float64
	BassInfluence  float64
	LastEffectTime float64
}

// DefaultMotion returns calm defaults.
func DefaultMotion() Motion {
	return Motion{
		Speed:          0.05,
		Amplitude:      0.4,
		Brightness:     0.6,
		BeatThreshold:  0.16,
		BassInfluence:  0.9,
		LastEffectTime: -100,
	}
}

// UpdateTime advances the animation clock based on frame delta.
func (m *Motion) UpdateTime(delta float64) {
	m.Time += delta * m.Speed
}

// ApplyFeatures updates the motion state from analyzed audio features.
func (m *Motion) ApplyFeatures(feat analyzer.Features, delta float64) {
	if feat == (analyzer.Features{}) {
		m.applySilenceDecay(delta)
		return
	}

	energy := math.Max(0.05, feat.Bass*0.7+feat.Mid*0.2+feat.Treble*0.1)

	m.Amplitude = lerp(m.Amplitude, 1.0+feat.Bass*m.BassInfluence*1.2, 0.6)
	m.Speed = lerp(m.Speed, (0.08+energy*0.7)*(1.0+feat.Treble*0.1), 0.4)
	m.HueShift = math.Mod(m.HueShift+feat.Bass*0.3+feat.Treble*0.15, 2*math.Pi)
	m.Brightness = clamp(m.Brightness*0.6+0.3+feat.Overall*0.5+feat.BeatStrength*0.3, 0, 1.5)

	if feat.IsDrop || feat.BeatStrength > m.BeatThreshold {
		m.LastEffectTime = m.Time
		m.Pulse = 1.0
		if feat.IsDrop {
			m.Pulse = 1.5
		}
	} else {
		m.Pulse *= math.Pow(0.9, delta*60)
	}
}

func (m *Motion) applySilenceDecay(delta float64) {
	decay := math.Pow(0.92, delta*60)
	m.Amplitude = m.Amplitude*decay + 0.4*(1-decay)
	m.Speed *= math.Pow(0.88, delta*60)
	m.Brightness = m.Brightness*decay + 0.6*(1-decay)
	m.Pulse *= decay
}

func lerp(current, target, factor float64) float64 {
	return current*(1-factor) + target*factor
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
