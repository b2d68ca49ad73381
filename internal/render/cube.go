package render

import (
	"math"

	"github.com/guidoenr/visualsound/internal/analyzer"
	"github.com/guidoenr/visualsound/internal/params"
	"github.com/guidoenr/visualsound/internal/voxel"
)

// Cube styles.
const (
	CubeWire = iota
	CubePlanes
	CubeSphere
	cubeStyles
)

const sphereSteps = 100

var cubeEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
}

// Cube spins solid geometry in the middle of a volume above a spectrum floor.
// On a flat canvas the geometry is projected onto the single layer.
type Cube struct {
	base
	spin   float64
	motion params.Motion
}

// NewCube builds the geometry scene.
func NewCube(cv *voxel.Canvas, an *analyzer.Analyzer) *Cube {
	tuning := sceneTuning
	tuning.SpecSmoothPass = 64
	return &Cube{
		base: base{
			canvas:   cv,
			analyzer: an,
			styles:   cubeStyles,
			tuning:   tuning,
		},
		motion: params.DefaultMotion(),
	}
}

func (c *Cube) Clear() {
	c.spin = 0
	c.motion = params.DefaultMotion()
}

func (c *Cube) Draw(elapsed float64) {
	vu, bass := c.intensity()
	c.motion.ApplyFeatures(c.analyzer.Features(), elapsed)
	c.motion.UpdateTime(elapsed)

	cv := c.canvas
	ov := cv.Oversample()
	dim, size := cv.Dimension(), cv.Size()
	zOver := dim.Z / size.Z

	span := min(size.X, size.Y)
	if !cv.Flat() {
		span = min(span, size.Z)
	}
	scale := float64(span) / 10
	mid := size.Div(2).Mul(ov).Sub(voxel.V(ov/2, ov/2, ov/2))
	if cv.Flat() {
		mid.Z = 0
	}
	place := func(p voxel.Vector, off voxel.Vector) voxel.Vector {
		p = p.Add(mid).Add(off)
		if cv.Flat() {
			p.Z = off.Z
		}
		return p
	}
	each := func(fn func(off voxel.Vector)) {
		for x := 0; x < ov; x++ {
			for y := 0; y < ov; y++ {
				for z := 0; z < zOver; z++ {
					fn(voxel.V(x, y, z))
				}
			}
		}
	}
	gain := 1.8 + 0.4*c.motion.Pulse

	cv.Clear(voxel.Black)

	switch c.style {
	case CubeWire:
		c.advance((0.5+vu*3.5)*elapsed, 2*math.Pi)
		r := max(1, int(3*scale)) * ov
		p := [8]voxel.Vector{
			voxel.V(r, r, r), voxel.V(r, r, -r), voxel.V(-r, r, -r), voxel.V(-r, r, r),
			voxel.V(r, -r, r), voxel.V(r, -r, -r), voxel.V(-r, -r, -r), voxel.V(-r, -r, r),
		}
		cols := [2]voxel.Color{c.color1, c.color2}
		for i := range p {
			p[i] = p[i].Rotate(c.spin, c.spin, 0)
		}
		each(func(off voxel.Vector) {
			for _, e := range cubeEdges {
				// neighbouring corners never share a colour
				c0 := cols[(e[0]+e[0]/4)%2]
				c1 := cols[(e[1]+e[1]/4)%2]
				cv.DrawLine(place(p[e[0]], off), c0, place(p[e[1]], off), c1)
			}
		})
		cv.PPBrightness(gain)

	case CubePlanes:
		c.advance((0.6+vu*2.5)*elapsed, 4*math.Pi)
		r := dim.X
		p1 := [4]voxel.Vector{voxel.V(-r, -r, 0), voxel.V(r, -r, 0), voxel.V(r, r, 0), voxel.V(-r, r, 0)}
		p2 := [4]voxel.Vector{voxel.V(0, -r, -r), voxel.V(0, r, -r), voxel.V(0, r, r), voxel.V(0, -r, r)}
		shift1, shift2 := voxel.Vector{}, voxel.Vector{}
		if !c.singleColor() {
			d := max(1, int(2*scale)) * ov
			shift1 = voxel.V(-d, -d, -d)
			shift2 = voxel.V(d, d, d)
		}
		for i := range p1 {
			p1[i] = p1[i].Rotate(c.spin, c.spin, 0).Add(shift1)
			p2[i] = p2[i].Rotate(c.spin, -c.spin, c.spin).Add(shift2)
		}
		each(func(off voxel.Vector) {
			cv.DrawQuad(
				place(p1[0], off), c.color1, place(p1[1], off), c.color1,
				place(p1[2], off), c.color1, place(p1[3], off), c.color1)
			cv.DrawQuad(
				place(p2[0], off), c.color2, place(p2[1], off), c.color2,
				place(p2[2], off), c.color2, place(p2[3], off), c.color2)
		})

	case CubeSphere:
		c.advance((2.5+vu*6.5)*elapsed, 2*math.Pi)
		radius := (4 + capOne(bass)*6) * scale * float64(ov)
		for i := 0; i < sphereSteps/2; i++ {
			col := c.color1.Lerp(c.color2, i*100/(sphereSteps/2))
			a1 := float64(i)*2*math.Pi/sphereSteps + math.Pi/2
			for j := 0; j < sphereSteps; j++ {
				a2 := float64(j) * 2 * math.Pi / sphereSteps
				x := int(math.Cos(a1) * radius)
				y := int(math.Sin(a1) * radius)
				z := int(math.Sin(a2) * float64(x))
				x = int(math.Cos(a2) * float64(x))
				cv.DrawPoint(place(voxel.V(x, y, z).Rotate(c.spin, c.spin, 0), voxel.Vector{}), col)
			}
		}
		cv.PPBrightness(gain)
	}

	c.drawFloor(dim, ov)
}

func (c *Cube) advance(delta, wrap float64) {
	c.spin += delta
	for c.spin > wrap {
		c.spin -= wrap
	}
}

// drawFloor lays the spectrum along the bottom rows, one depth slice per bin.
func (c *Cube) drawFloor(dim voxel.Vector, ov int) {
	highlight := voxel.RGB(150, 150, 150)
	n := c.analyzer.Size()
	step := float64(n/2) / float64(dim.Z)
	amp := 0.09 * float64(dim.X) / 1000
	for z := 0; z < dim.Z; z++ {
		bin := int(float64(z) * step)
		l := int(float64(c.analyzer.Spectrum(0, bin)) * amp)
		r := int(float64(c.analyzer.Spectrum(1, bin)) * amp)
		for y := 0; y < ov; y++ {
			c.canvas.DrawLine(
				voxel.V(dim.X/2+ov/2+l, y, z), highlight,
				voxel.V(dim.X/2-ov-r, y, z), highlight)
		}
	}
}
