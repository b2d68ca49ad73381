package render

import (
	"github.com/guidoenr/visualsound/internal/analyzer"
	"github.com/guidoenr/visualsound/internal/voxel"
)

// Straight styles.
const (
	StraightFull = iota
	StraightNoWave
	StraightNoSpectrum
	straightStyles
)

// Straight draws both waveforms across the display with the mirrored spectrum
// between them, framed by gradients on the long edges.
type Straight struct {
	base
}

// NewStraight builds the straight scene. rotation is applied on Setup.
func NewStraight(cv *voxel.Canvas, an *analyzer.Analyzer, rotation int) *Straight {
	return &Straight{base{
		canvas:   cv,
		analyzer: an,
		styles:   straightStyles,
		rotation: rotation,
		tuning:   sceneTuning,
	}}
}

func (s *Straight) Draw(elapsed float64) {
	vu, _ := s.intensity()
	capped := capOne(vu)
	cv := s.canvas
	ov := cv.Oversample()
	dimX, dimY := cv.Dimension().X, cv.Dimension().Y
	n := s.analyzer.Size()

	cv.Clear(voxel.Black)

	edge := s.color1.Lerp(s.color2, 50).Lerp(voxel.Black, 50-int(25*capped))
	grad := dimY/5 + int(float64(dimY/10)*capped)
	cv.DrawQuad(
		voxel.V(0, 0, 0), edge,
		voxel.V(dimX-1, 0, 0), edge,
		voxel.V(dimX-1, grad, 0), voxel.Black,
		voxel.V(0, grad, 0), voxel.Black)
	cv.DrawQuad(
		voxel.V(0, dimY-grad, 0), voxel.Black,
		voxel.V(dimX-1, dimY-grad, 0), voxel.Black,
		voxel.V(dimX-1, dimY-1, 0), edge,
		voxel.V(0, dimY-1, 0), edge)

	if s.style == StraightFull || s.style == StraightNoSpectrum {
		offset := dimY / 6
		const start = 20
		step := 0.4 * float64(n) / float64(dimX)
		amp := 0.02 * float64(dimY) / 1000
		if s.style == StraightNoSpectrum {
			offset = dimY / 3
		}
		if s.singleColor() {
			offset = dimY / 2
			amp *= 1.5
		}
		limit := func(v int) int { return max(-dimX, min(v, dimX)) }
		sample := func(ch, i int) int {
			return limit(int(float64(s.analyzer.Wave(ch, start+int(float64(i)*step))) * amp))
		}

		for i := 0; i < dimX; i++ {
			v0, v1 := sample(0, i), sample(0, i+1)
			y := dimY - 1 - offset
			band := func(top, rows int, col voxel.Color) {
				for j := 0; j < rows; j++ {
					cv.DrawLine(voxel.V(i, top-j+v0, 0), col, voxel.V(i+1, top-j+v1, 0), col)
				}
			}
			band(y, ov*2, s.color1)
			band(y+ov, ov, voxel.Black)
			band(y-ov*2, ov, voxel.Black)
		}

		if !s.singleColor() {
			for i := 0; i < dimX; i++ {
				v0, v1 := -sample(1, i), -sample(1, i+1)
				y := offset
				band := func(top, rows int, col voxel.Color) {
					for j := 0; j < rows; j++ {
						cv.DrawLine(voxel.V(i, top+j+v0, 0), col, voxel.V(i+1, top+j+v1, 0), col)
					}
				}
				band(y, ov*2, s.color2)
				band(y-ov, ov, voxel.Black)
				band(y+ov*2, ov, voxel.Black)
			}
		}
	}

	if s.style == StraightFull || s.style == StraightNoWave {
		step := float64(n/2) / float64(dimX)
		amp := 0.05 * float64(dimY) / 1000
		grey := voxel.RGB(220, 220, 220)
		col := s.color1.Lerp(s.color2, 50).Lerp(grey, 90)
		if s.style == StraightNoWave {
			col = s.color1.Lerp(grey, 20)
		}
		center := dimY / 2
		limit := func(v int) int { return max(ov, min(v, dimY)) }
		for i := 0; i < dimX; i++ {
			bin := int(float64(i) * step)
			l := limit(int(float64(s.analyzer.Spectrum(0, bin)) * amp))
			r := limit(int(float64(s.analyzer.Spectrum(1, bin)) * amp))
			for j := 0; j < ov; j++ {
				cv.DrawPoint(voxel.V(i, center-(l+1+j), 0), voxel.Black)
				cv.DrawPoint(voxel.V(i, center-1+(r+1+j), 0), voxel.Black)
			}
			cv.DrawLine(voxel.V(i, center-l, 0), col, voxel.V(i, center-1+r, 0), col)
		}
	}
}
