package render

import (
	"math"

	"github.com/guidoenr/visualsound/internal/analyzer"
	"github.com/guidoenr/visualsound/internal/voxel"
)

// Round styles.
const (
	RoundFull = iota
	RoundNoWave
	RoundNoSpectrum
	RoundJustSpectrum
	roundStyles
)

const roundSpectrumPoints = 100

// Round wraps the spectrum around a ring with a spinning square accent in the
// middle and the waveforms running along the short edges.
type Round struct {
	base
	spin float64
}

// NewRound builds the round scene. rotation is applied on Setup.
func NewRound(cv *voxel.Canvas, an *analyzer.Analyzer, rotation int) *Round {
	return &Round{base: base{
		canvas:   cv,
		analyzer: an,
		styles:   roundStyles,
		rotation: rotation,
		tuning:   sceneTuning,
	}}
}

func (r *Round) Clear() { r.spin = 0 }

// polar offsets center by radius along angle, truncating to the grid.
func polar(center voxel.Vector, angle, radius float64) voxel.Vector {
	return center.Add(voxel.V(int(math.Cos(angle)*radius), int(math.Sin(angle)*radius), 0))
}

func (r *Round) Draw(elapsed float64) {
	vu, bass := r.intensity()
	capped := capOne(vu)
	cv := r.canvas
	ov := cv.Oversample()
	dimX, dimY := cv.Dimension().X, cv.Dimension().Y
	n := r.analyzer.Size()
	center := voxel.V(dimX/2, dimY/2, 0)

	cv.Clear(voxel.Black)

	edge := r.color1.Lerp(r.color2, 50).Lerp(voxel.Black, 50-int(25*capped))
	grad := dimX/5 + int(float64(dimX/20)*capped)
	cv.DrawQuad(
		voxel.V(0, 0, 0), edge,
		voxel.V(grad, 0, 0), voxel.Black,
		voxel.V(grad, dimY-1, 0), voxel.Black,
		voxel.V(0, dimY-1, 0), edge)
	cv.DrawQuad(
		voxel.V(dimX-grad, 0, 0), voxel.Black,
		voxel.V(dimX-1, 0, 0), edge,
		voxel.V(dimX-1, dimY-1, 0), edge,
		voxel.V(dimX-grad, dimY-1, 0), voxel.Black)

	if r.style == RoundFull || r.style == RoundNoSpectrum {
		r.drawWaves(dimX, dimY, ov, n)
	}
	if r.style != RoundNoSpectrum {
		r.drawRing(center, dimX, dimY, ov, n)
	}
	if r.style != RoundJustSpectrum {
		r.spin += vu * 2 * elapsed
		for r.spin > 2*math.Pi {
			r.spin -= 2 * math.Pi
		}
		radius := math.Min(float64(dimX)/5+0.2*float64(dimX)*bass, float64(dimY)/5+0.2*float64(dimY)*bass)
		radius = float64(int(radius))
		if r.style == RoundNoSpectrum {
			radius = float64(int(1.5 * radius))
		}
		corner := func(k int, rad float64) voxel.Vector {
			return polar(center, r.spin+math.Pi*0.5*float64(k), rad)
		}
		for i := 0; i < ov; i++ {
			rad := radius + 1 + float64(i)
			for k := 0; k < 4; k++ {
				cv.DrawLine(corner(k, rad), voxel.Black, corner(k+1, rad), voxel.Black)
			}
		}
		cv.DrawQuad(
			corner(0, radius), r.color2,
			corner(1, radius), r.color1,
			corner(2, radius), r.color2,
			corner(3, radius), r.color1)
	}
}

func (r *Round) drawWaves(dimX, dimY, ov, n int) {
	cv := r.canvas
	offset := dimX / 6
	const start = 20
	step := 0.2 * float64(n) / float64(dimY)
	amp := 0.02 * float64(dimX) / 1000
	if r.singleColor() {
		offset = dimX / 2
		amp *= 1.5
	}
	limit := func(v int) int { return max(-dimX, min(v, dimX)) }
	sample := func(ch, i int) int {
		return limit(int(float64(r.analyzer.Wave(ch, start+int(float64(i)*step))) * amp))
	}

	for i := 0; i < dimY; i++ {
		v0, v1 := sample(0, i), sample(0, i+1)
		x := dimX - 1 - offset
		band := func(left, cols int, col voxel.Color) {
			for j := 0; j < cols; j++ {
				cv.DrawLine(voxel.V(left-j+v0, i, 0), col, voxel.V(left-j+v1, i+1, 0), col)
			}
		}
		band(x, ov*2, r.color1)
		band(x+ov, ov, voxel.Black)
		band(x-ov*2, ov, voxel.Black)
	}

	if r.singleColor() {
		return
	}
	for i := 0; i < dimY; i++ {
		v0, v1 := -sample(1, i), -sample(1, i+1)
		y0, y1 := dimY-1-i, dimY-2-i
		x := offset
		band := func(left, cols int, col voxel.Color) {
			for j := 0; j < cols; j++ {
				cv.DrawLine(voxel.V(left+j+v0, y0, 0), col, voxel.V(left+j+v1, y1, 0), col)
			}
		}
		band(x, ov*2, r.color2)
		band(x-ov, ov, voxel.Black)
		band(x+ov*2, ov, voxel.Black)
	}
}

func (r *Round) drawRing(center voxel.Vector, dimX, dimY, ov, n int) {
	cv := r.canvas
	radius := float64(int(math.Min(float64(dimX)/2.5, float64(dimY)/2.5)))
	offset := math.Pi*0.35 + float64(r.rotation)/180*math.Pi
	step := float64(n/2) / roundSpectrumPoints
	ampOut := 0.13 * radius / 1000
	ampIn := 0.09 * radius / 1000
	innerMax := int(radius) - ov
	outerMax := dimY

	grey := voxel.RGB(220, 220, 220)
	col := r.color1.Lerp(r.color2, 50).Lerp(grey, 90)
	if r.style == RoundJustSpectrum {
		col = r.color1.Lerp(grey, 20)
	}

	level := func(i int) (out, in int) {
		bin := int(float64(i) * step)
		out = int(float64(r.analyzer.Spectrum(0, bin)) * ampOut)
		in = int(float64(r.analyzer.Spectrum(1, bin)) * ampIn)
		return max(ov, min(out, outerMax)), min(in, innerMax)
	}

	for i := 0; i < roundSpectrumPoints; i++ {
		a0 := 2*math.Pi*float64(i)/roundSpectrumPoints - offset
		a1 := 2*math.Pi*float64(i+1)/roundSpectrumPoints - offset
		out0, in0 := level(i)
		out1, in1 := level(i + 1)

		for j := 0; j < ov; j++ {
			cv.DrawLine(
				polar(center, a0, radius+float64(out0+1+j)), voxel.Black,
				polar(center, a1, radius+float64(out1+1+j)), voxel.Black)
		}
		cv.DrawQuad(
			polar(center, a0, radius+float64(out0)), col,
			polar(center, a0, radius-float64(in0)), col,
			polar(center, a1, radius-float64(in1)), col,
			polar(center, a1, radius+float64(out1)), col)
	}
}
