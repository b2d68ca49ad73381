package analyzer

import "math"

// FullScale is the band level mapped to 1.0 by Features.
const FullScale = 8192.0

// Features describes band energy and rhythmic cues normalised to 0..1,
// averaged over both channels.
type Features struct {
	Bass         float64
	Mid          float64
	Treble       float64
	Overall      float64
	BeatStrength float64
	IsDrop       bool
}

// GateFeatures applies a simple noise floor so weak signals are ignored.
func GateFeatures(f Features, floor float64) Features {
	if floor <= 0 {
		return f
	}
	gate := func(v float64) float64 {
		if v <= floor {
			return 0
		}
		return clamp((v-floor)/(1.0-floor), 0, 1)
	}

	f.Bass = gate(f.Bass)
	f.Mid = gate(f.Mid)
	f.Treble = gate(f.Treble)
	f.Overall = gate(f.Overall)
	f.BeatStrength = gate(f.BeatStrength)
	if f.Overall == 0 && f.Bass == 0 && f.Mid == 0 && f.Treble == 0 {
		f.IsDrop = false
	}
	return f
}

// featureTracker follows band peaks across refreshes to expand dynamics and
// detect kicks and drops.
type featureTracker struct {
	bassPeak     float64
	midPeak      float64
	treblePeak   float64
	beatPulse    float64
	lastBass     float64
	dropCooldown float64
	bassHistory  []float64
	historySize  int
}

func newFeatureTracker(history int) featureTracker {
	return featureTracker{
		historySize: history,
		bassHistory: make([]float64, 0, history),
	}
}

func (t *featureTracker) update(bands [2]Bands, dt float64) Features {
	level := func(l, r int) float64 {
		return clamp(float64(l+r)/2/FullScale, 0, 1)
	}
	bass := level(bands[0].Bass, bands[1].Bass)
	mid := level(bands[0].Mid, bands[1].Mid)
	treble := level(bands[0].Treble, bands[1].Treble)
	vu := level(bands[0].VU, bands[1].VU)

	t.bassPeak = envelope(t.bassPeak, bass, 0.94, 0.75)
	t.midPeak = envelope(t.midPeak, mid, 0.94, 0.78)
	t.treblePeak = envelope(t.treblePeak, treble, 0.94, 0.8)

	bassDiff := bass - t.lastBass
	beat := clamp(bassDiff*14.0, 0, 1)
	if beat > 0.12 {
		t.beatPulse = 1.0
	}
	t.beatPulse *= 0.88
	beat = math.Min(1.0, beat+t.beatPulse*0.7)

	isDrop := false
	if t.dropCooldown <= 0 {
		avg := average(t.bassHistory)
		if avg > 0 && bass > avg*2.0 && bassDiff > 0.1 {
			isDrop = true
			t.dropCooldown = 1.0
		}
	} else {
		t.dropCooldown -= dt
	}
	t.pushBass(bass)
	t.lastBass = bass

	return Features{
		Bass:         dynamics(bass, t.bassPeak),
		Mid:          dynamics(mid, t.midPeak),
		Treble:       dynamics(treble, t.treblePeak),
		Overall:      vu,
		BeatStrength: beat,
		IsDrop:       isDrop,
	}
}

func (t *featureTracker) pushBass(v float64) {
	t.bassHistory = append(t.bassHistory, v)
	if len(t.bassHistory) > t.historySize {
		copy(t.bassHistory, t.bassHistory[1:])
		t.bassHistory = t.bassHistory[:len(t.bassHistory)-1]
	}
}

func envelope(current, input, attack, release float64) float64 {
	if input > current {
		return current*attack + input*(1-attack)
	}
	return current * release
}

func dynamics(value, peak float64) float64 {
	if peak < 0.01 {
		return value
	}
	ratio := value / peak
	if ratio < 0 {
		ratio = 0
	}
	expanded := math.Pow(ratio, 0.7) * peak
	if ratio > 0.85 {
		expanded *= 1.0 + (ratio-0.85)*2.0
	}
	return math.Min(expanded, 1.0)
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
