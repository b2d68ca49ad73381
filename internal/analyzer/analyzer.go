package analyzer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/window"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBufferSize is the analysis window in frames.
	DefaultBufferSize = 512
	minBufferSize     = 32
	magnitudeScale    = 20.0
	maxMagnitude      = math.MaxInt16
)

// Source supplies interleaved stereo snapshots at a requested rate.
type Source interface {
	CollectSamples(out []int16, rate int)
}

// Params tunes the refresh pipeline. Values take effect on the next Refresh.
type Params struct {
	// SampleRate is the rate snapshots are taken at. It trades time span
	// against spectral resolution.
	SampleRate     int
	WaveLPF        float64 // 1.0 disables the waveform low-pass
	WaveTimeSmooth float64 // 1.0 disables waveform smoothing across refreshes
	SpecSmoothPass int     // box filter passes over the half spectrum
	SpecTimeSmooth float64 // 1.0 disables spectrum smoothing across refreshes
}

// DefaultParams leaves every filter disabled and samples at 6 kHz.
func DefaultParams() Params {
	return Params{
		SampleRate:     6000,
		WaveLPF:        1,
		WaveTimeSmooth: 1,
		SpecSmoothPass: 0,
		SpecTimeSmooth: 1,
	}
}

// Clamp limits coefficients to [0,1], passes to [0,255] and the sample rate to
// (0, native].
func (p Params) Clamp(native int) Params {
	p.WaveLPF = clamp(p.WaveLPF, 0, 1)
	p.WaveTimeSmooth = clamp(p.WaveTimeSmooth, 0, 1)
	p.SpecTimeSmooth = clamp(p.SpecTimeSmooth, 0, 1)
	p.SpecSmoothPass = max(0, min(p.SpecSmoothPass, 255))
	if native > 0 && (p.SampleRate <= 0 || p.SampleRate > native) {
		p.SampleRate = native
	}
	if p.SampleRate <= 0 {
		p.SampleRate = DefaultParams().SampleRate
	}
	return p
}

// Bands holds spectrum averages for one channel.
type Bands struct {
	VU     int
	Bass   int
	Mid    int
	Treble int
}

// Config controls Analyzer construction.
type Config struct {
	Source     Source
	BufferSize int
	NativeRate int
	// HistoryFrames is how many native frames the source retains. When set,
	// the sampling rate is kept high enough for one window to fit.
	HistoryFrames int
	Params        Params
	Log           logrus.FieldLogger
}

// Analyzer turns audio snapshots into smoothed waveform and spectrum arrays.
// Refresh and the accessors are meant for a single render goroutine; Bands,
// Features and parameter access are safe from any goroutine.
type Analyzer struct {
	src     Source
	size    int
	native  int
	minRate int
	log     logrus.FieldLogger

	mu       sync.RWMutex
	params   Params
	wave     [2][]int16
	spec     [2][]int16
	bands    [2]Bands
	features Features

	raw     []int16
	window  []float64
	work    []complex128
	scratch []complex128
	smooth  [2][]float64

	tracker featureTracker
	now     func() time.Time
	last    time.Time
}

// New allocates an Analyzer. The buffer size must be a power of two.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Source == nil {
		return nil, ErrNoSource
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if !isPow2(cfg.BufferSize) || cfg.BufferSize < minBufferSize {
		return nil, fmt.Errorf("%w: got %d", ErrBufferSize, cfg.BufferSize)
	}
	if cfg.Params == (Params{}) {
		cfg.Params = DefaultParams()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	n := cfg.BufferSize
	a := &Analyzer{
		src:     cfg.Source,
		size:    n,
		native:  cfg.NativeRate,
		log:     cfg.Log.WithField("component", "analyzer"),
		raw:     make([]int16, n*2),
		window:  window.Hann(n),
		work:    make([]complex128, n),
		scratch: make([]complex128, n),
		tracker: newFeatureTracker(60),
		now:     time.Now,
	}
	if h := cfg.HistoryFrames; h > 0 && a.native > 0 {
		a.minRate = min((a.native*n+h-1)/h, a.native)
	}
	a.params = a.limit(cfg.Params)
	for ch := 0; ch < 2; ch++ {
		a.wave[ch] = make([]int16, n)
		a.spec[ch] = make([]int16, n)
		a.smooth[ch] = make([]float64, n)
	}
	a.log.WithFields(logrus.Fields{"size": n, "rate": a.params.SampleRate}).Debug("analyzer ready")
	return a, nil
}

// Size returns the number of samples per channel in each array.
func (a *Analyzer) Size() int { return a.size }

// Params returns the active tuning.
func (a *Analyzer) Params() Params {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.params
}

// SetParams installs new tuning, clamped to the valid ranges and to the
// lowest rate the source history supports.
func (a *Analyzer) SetParams(p Params) {
	a.mu.Lock()
	a.params = a.limit(p)
	a.mu.Unlock()
}

// limit clamps p and raises the sampling rate until one window of size
// samples fits in the source history.
func (a *Analyzer) limit(p Params) Params {
	p = p.Clamp(a.native)
	if p.SampleRate < a.minRate {
		p.SampleRate = a.minRate
	}
	return p
}

// Refresh pulls a fresh snapshot and recomputes every published value.
func (a *Analyzer) Refresh() {
	p := a.Params()
	n := a.size
	half := n / 2

	a.src.CollectSamples(a.raw, p.SampleRate)

	a.mu.Lock()
	defer a.mu.Unlock()

	for ch := 0; ch < 2; ch++ {
		a.refreshWave(ch, p)

		for i := 0; i < n; i++ {
			a.work[i] = complex(a.window[i]*float64(a.raw[i*2+ch]), 0)
		}
		fft(a.work, a.scratch)

		buf := a.smoothSpectrum(ch, p.SpecSmoothPass)
		spec := a.spec[ch]
		for i := 0; i < half; i++ {
			spec[i] = int16(float64(spec[i])*(1-p.SpecTimeSmooth) + buf[i]*p.SpecTimeSmooth)
			spec[n-1-i] = spec[i]
		}
		a.bands[ch] = extractBands(spec)
	}

	now := a.now()
	dt := 0.0
	if !a.last.IsZero() {
		dt = now.Sub(a.last).Seconds()
	}
	a.last = now
	a.features = a.tracker.update(a.bands, dt)
}

func (a *Analyzer) refreshWave(ch int, p Params) {
	wave := a.wave[ch]
	var w int16
	for i := 0; i < a.size; i++ {
		w = int16(float64(w)*(1-p.WaveLPF) + float64(a.raw[i*2+ch])*p.WaveLPF)
		wave[i] = int16(float64(wave[i])*(1-p.WaveTimeSmooth) + float64(w)*p.WaveTimeSmooth)
	}
}

// smoothSpectrum writes scaled magnitudes of the first half of a.work and
// applies passes box filters, returning the buffer holding the result.
func (a *Analyzer) smoothSpectrum(ch, passes int) []float64 {
	half := a.size / 2
	bufs := [2][]float64{a.smooth[ch][:half], a.smooth[ch][half:]}
	for i := 0; i < half; i++ {
		m := cabs(a.work[i]) / magnitudeScale
		if m > maxMagnitude {
			m = maxMagnitude
		}
		bufs[0][i] = m
	}
	for pass := 0; pass < passes; pass++ {
		from, to := bufs[pass%2], bufs[(pass+1)%2]
		to[0] = (from[0] + from[1]) / 2
		to[half-1] = (from[half-1] + from[half-2]) / 2
		for j := 1; j < half-1; j++ {
			to[j] = (from[j-1] + from[j] + from[j+1]) / 3
		}
	}
	return bufs[passes%2]
}

func extractBands(spec []int16) Bands {
	half := len(spec) / 2
	width := len(spec) / 24
	third := half / 3
	return Bands{
		VU:     mean(spec[:half]),
		Bass:   mean(spec[:width]),
		Mid:    mean(spec[third : third+width]),
		Treble: mean(spec[2*third : 2*third+width]),
	}
}

// Wave returns waveform sample i of channel ch (0 left, 1 right), clamping i
// into range.
func (a *Analyzer) Wave(ch, i int) int16 {
	return clampedAt(a.wave[channel(ch)], i)
}

// Spectrum returns spectrum bin i of channel ch, clamping i into range.
func (a *Analyzer) Spectrum(ch, i int) int16 {
	return clampedAt(a.spec[channel(ch)], i)
}

// Bands returns the band averages of channel ch.
func (a *Analyzer) Bands(ch int) Bands {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bands[channel(ch)]
}

// Features returns the normalised features computed by the last Refresh.
func (a *Analyzer) Features() Features {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.features
}

func channel(ch int) int {
	if ch <= 0 {
		return 0
	}
	return 1
}

func clampedAt(s []int16, i int) int16 {
	if i < 0 {
		return s[0]
	}
	if i >= len(s) {
		return s[len(s)-1]
	}
	return s[i]
}

func mean(s []int16) int {
	if len(s) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s {
		sum += float64(v)
	}
	return int(sum / float64(len(s)))
}

func cabs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func clamp(v, minVal, maxVal float64) float64 {
	if math.IsNaN(v) {
		return maxVal
	}
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
