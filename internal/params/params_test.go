package params

import (
	"testing"

	"github.com/guidoenr/visualsound/internal/analyzer"
)

func TestApplySilenceDecayDoesNotPanic(t *testing.T) {
	m := DefaultMotion()
	m.ApplyFeatures(analyzer.Features{}, 1.0/60.0)
}

func TestUpdateTimeAdvances(t *testing.T) {
	m := DefaultMotion()
	m.Speed = 1.0
	m.UpdateTime(0.5)
	if m.Time <= 0 {
		t.Fatalf("expected time to advance, got %f", m.Time)
	}
}

func TestBeatTriggersPulse(t *testing.T) {
	m := DefaultMotion()
	m.ApplyFeatures(analyzer.Features{Bass: 0.8, BeatStrength: 0.9}, 1.0/60.0)
	if m.Pulse != 1.0 {
		t.Fatalf("pulse=%f want=1", m.Pulse)
	}
	m.ApplyFeatures(analyzer.Features{Bass: 0.1}, 1.0/60.0)
	if m.Pulse >= 1.0 {
		t.Fatalf("pulse did not decay: %f", m.Pulse)
	}
}

func TestPresetsClampIntoRange(t *testing.T) {
	for _, name := range PresetNames() {
		a, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q): %v", name, err)
		}
		p := a.Params(48000)
		if p.SampleRate <= 0 || p.SampleRate > 48000 {
			t.Fatalf("%s: sample rate %d", name, p.SampleRate)
		}
	}
	if _, err := Preset("loudness-war"); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}

func TestAnalysisRoundTripsDefaults(t *testing.T) {
	if got := DefaultAnalysis().Params(48000); got != analyzer.DefaultParams() {
		t.Fatalf("defaults=%+v want=%+v", got, analyzer.DefaultParams())
	}
}
