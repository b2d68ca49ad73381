package analyzer

import (
	"errors"
	"io"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	dspfft "github.com/mjibson/go-dsp/fft"
	"github.com/sirupsen/logrus"
)

// funcSource feeds the same value to both channels of frame i.
type funcSource struct {
	sample func(i int) int16
	rates  []int
}

func (s *funcSource) CollectSamples(out []int16, rate int) {
	s.rates = append(s.rates, rate)
	for i := 0; i < len(out)/2; i++ {
		v := s.sample(i)
		out[i*2] = v
		out[i*2+1] = v
	}
}

func constant(v int16) *funcSource {
	return &funcSource{sample: func(int) int16 { return v }}
}

func newTestAnalyzer(t *testing.T, src Source, size int, p Params) *Analyzer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	a, err := New(Config{Source: src, BufferSize: size, NativeRate: 48000, Params: p, Log: log})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRejectsOddSizes(t *testing.T) {
	for _, size := range []int{500, 16, -8} {
		_, err := New(Config{Source: constant(0), BufferSize: size})
		if !errors.Is(err, ErrBufferSize) {
			t.Fatalf("size %d: err=%v want ErrBufferSize", size, err)
		}
	}
	if _, err := New(Config{BufferSize: 64}); !errors.Is(err, ErrNoSource) {
		t.Fatalf("missing source: err=%v", err)
	}
}

func TestFFTMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 64
	in := make([]complex128, n)
	for i := range in {
		in[i] = complex(rng.Float64()*2-1, 0)
	}
	want := dspfft.FFT(in)

	got := append([]complex128(nil), in...)
	fft(got, make([]complex128, n))
	for i := range want {
		if cmplx.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("bin %d: got=%v want=%v", i, got[i], want[i])
		}
	}
}

func TestFFTImpulseIsFlat(t *testing.T) {
	x := make([]complex128, 32)
	x[0] = 1
	fft(x, make([]complex128, 32))
	for i, v := range x {
		if math.Abs(cmplx.Abs(v)-1) > 1e-12 {
			t.Fatalf("bin %d magnitude=%f want=1", i, cmplx.Abs(v))
		}
	}
}

func TestSinusoidPeaksAtItsBin(t *testing.T) {
	const n, k = 512, 32
	src := &funcSource{sample: func(i int) int16 {
		return int16(1000 * math.Sin(2*math.Pi*k*float64(i)/n))
	}}
	a := newTestAnalyzer(t, src, n, DefaultParams())
	a.Refresh()

	peak, peakAt := int16(0), 0
	for i := 0; i < n/2; i++ {
		if v := a.Spectrum(0, i); v > peak {
			peak, peakAt = v, i
		}
	}
	if peakAt < k-1 || peakAt > k+1 {
		t.Fatalf("peak at bin %d want %d", peakAt, k)
	}
	for i := 0; i < n/2; i++ {
		if i >= k-3 && i <= k+3 {
			continue
		}
		if v := a.Spectrum(0, i); int(v)*100 > int(peak) {
			t.Fatalf("bin %d=%d too large next to peak %d", i, v, peak)
		}
	}
}

func TestSpectrumIsMirrored(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	src := &funcSource{sample: func(int) int16 { return int16(rng.Intn(2000) - 1000) }}
	a := newTestAnalyzer(t, src, 128, DefaultParams())
	a.Refresh()
	for i := 0; i < 64; i++ {
		if a.Spectrum(1, i) != a.Spectrum(1, 127-i) {
			t.Fatalf("bin %d=%d mirror=%d", i, a.Spectrum(1, i), a.Spectrum(1, 127-i))
		}
	}
}

func TestSilenceYieldsZero(t *testing.T) {
	a := newTestAnalyzer(t, constant(0), 64, DefaultParams())
	a.Refresh()
	if b := a.Bands(0); b != (Bands{}) {
		t.Fatalf("bands=%+v want zero", b)
	}
	if f := a.Features(); f.Overall != 0 || f.Bass != 0 {
		t.Fatalf("features=%+v want silent", f)
	}
}

func TestRefreshUsesConfiguredRate(t *testing.T) {
	src := constant(0)
	p := DefaultParams()
	p.SampleRate = 12000
	a := newTestAnalyzer(t, src, 64, p)
	a.Refresh()
	if len(src.rates) != 1 || src.rates[0] != 12000 {
		t.Fatalf("rates=%v want [12000]", src.rates)
	}
}

func TestWaveLowPass(t *testing.T) {
	p := DefaultParams()
	p.WaveLPF = 0.5
	a := newTestAnalyzer(t, constant(1000), 64, p)
	a.Refresh()
	want := []int16{500, 750, 875}
	for i, w := range want {
		if got := a.Wave(0, i); got != w {
			t.Fatalf("wave[%d]=%d want=%d", i, got, w)
		}
	}
}

func TestWaveTimeSmoothing(t *testing.T) {
	p := DefaultParams()
	p.WaveTimeSmooth = 0.5
	a := newTestAnalyzer(t, constant(1000), 64, p)
	a.Refresh()
	if got := a.Wave(1, 10); got != 500 {
		t.Fatalf("first refresh=%d want=500", got)
	}
	a.Refresh()
	if got := a.Wave(1, 10); got != 750 {
		t.Fatalf("second refresh=%d want=750", got)
	}
}

func TestAccessorsClamp(t *testing.T) {
	src := &funcSource{sample: func(i int) int16 { return int16(i) }}
	a := newTestAnalyzer(t, src, 64, DefaultParams())
	a.Refresh()
	if a.Wave(0, -5) != a.Wave(0, 0) {
		t.Fatalf("negative index not clamped")
	}
	if a.Wave(0, 1000) != a.Wave(0, 63) || a.Wave(0, 63) != 63 {
		t.Fatalf("large index not clamped: %d", a.Wave(0, 1000))
	}
	if a.Spectrum(5, 64) != a.Spectrum(1, 63) {
		t.Fatalf("channel or index not clamped")
	}
}

func TestSmoothSpectrumPass(t *testing.T) {
	a := newTestAnalyzer(t, constant(0), 32, DefaultParams())
	a.work[0] = complex(20*10, 0)
	a.work[5] = complex(20*60, 0)
	a.work[15] = complex(0, 20*30)

	buf := a.smoothSpectrum(0, 1)
	want := map[int]float64{0: 5, 1: 10.0 / 3, 4: 20, 5: 20, 6: 20, 7: 0, 14: 10, 15: 15}
	for i, w := range want {
		if math.Abs(buf[i]-w) > 1e-9 {
			t.Fatalf("smooth[%d]=%f want=%f", i, buf[i], w)
		}
	}
}

func TestSpectrumClampsToInt16(t *testing.T) {
	a := newTestAnalyzer(t, constant(0), 32, DefaultParams())
	a.work[3] = complex(1e9, 0)
	if got := a.smoothSpectrum(0, 0)[3]; got != math.MaxInt16 {
		t.Fatalf("magnitude=%f want clamp", got)
	}
}

func TestExtractBands(t *testing.T) {
	spec := make([]int16, 48)
	for i := 0; i < 24; i++ {
		spec[i] = int16(i)
		spec[47-i] = int16(i)
	}
	got := extractBands(spec)
	want := Bands{VU: 11, Bass: 0, Mid: 8, Treble: 16}
	if got != want {
		t.Fatalf("bands=%+v want=%+v", got, want)
	}
}

func TestParamsClamp(t *testing.T) {
	p := Params{SampleRate: 96000, WaveLPF: 2, WaveTimeSmooth: -1, SpecSmoothPass: 400, SpecTimeSmooth: math.NaN()}.Clamp(48000)
	if p.SampleRate != 48000 || p.WaveLPF != 1 || p.WaveTimeSmooth != 0 || p.SpecSmoothPass != 255 || p.SpecTimeSmooth != 1 {
		t.Fatalf("clamped=%+v", p)
	}
}

func TestSampleRateKeepsWindowInHistory(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	src := constant(100)
	a, err := New(Config{
		Source:        src,
		BufferSize:    512,
		NativeRate:    48000,
		HistoryFrames: 24600,
		Params:        Params{SampleRate: 100},
		Log:           log,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// ceil(48000*512/24600)
	if got := a.Params().SampleRate; got != 1000 {
		t.Fatalf("rate=%d want=1000", got)
	}
	a.SetParams(Params{SampleRate: 200})
	if got := a.Params().SampleRate; got != 1000 {
		t.Fatalf("rate after SetParams=%d want=1000", got)
	}
	a.Refresh()
	rate := src.rates[len(src.rates)-1]
	if stride := 48000 / rate; (512-1)*stride >= 24600 {
		t.Fatalf("window of stride %d overruns the history", stride)
	}

	a.SetParams(Params{SampleRate: 6000})
	if got := a.Params().SampleRate; got != 6000 {
		t.Fatalf("rate=%d want=6000", got)
	}

	unbounded := newTestAnalyzer(t, constant(0), 512, Params{SampleRate: 100})
	if got := unbounded.Params().SampleRate; got != 100 {
		t.Fatalf("rate without history=%d want=100", got)
	}
}

func TestGateFeatures(t *testing.T) {
	f := GateFeatures(Features{Bass: 0.05, Mid: 0.55, Overall: 0.1, IsDrop: true}, 0.1)
	if f.Bass != 0 || f.Overall != 0 {
		t.Fatalf("weak bands not gated: %+v", f)
	}
	if math.Abs(f.Mid-0.5) > 1e-9 {
		t.Fatalf("mid=%f want=0.5", f.Mid)
	}
	if !f.IsDrop {
		t.Fatalf("drop cleared while mid is audible")
	}
}

func TestDynamicsWithLowPeakReturnsValue(t *testing.T) {
	if got := dynamics(0.5, 0.0); got != 0.5 {
		t.Fatalf("dynamics for zero peak: got=%f want=0.5", got)
	}
}

func TestTrackerFlagsDrop(t *testing.T) {
	tr := newFeatureTracker(8)
	quiet := [2]Bands{{Bass: 400}, {Bass: 400}}
	for i := 0; i < 8; i++ {
		tr.update(quiet, 1.0/60)
	}
	loud := [2]Bands{{Bass: 6000}, {Bass: 6000}}
	f := tr.update(loud, 1.0/60)
	if !f.IsDrop || f.BeatStrength < 0.5 {
		t.Fatalf("features=%+v want drop with strong beat", f)
	}
	if f = tr.update(loud, 1.0/60); f.IsDrop {
		t.Fatalf("drop repeated during cooldown")
	}
}
