package voxel

import "fmt"

// Sink receives a downsampled frame voxel by voxel.
type Sink interface {
	SetVoxel(x, y, z int, c Color)
	Present() error
}

// Canvas is an oversampled voxel buffer. A canvas whose logical depth is 1 is
// flat: Z is not oversampled and quarter-turn rotation is available.
type Canvas struct {
	size       Vector // logical display size, unrotated
	oversample int
	zOver      int
	dim        Vector // buffer size after oversampling and rotation
	buf        []Color

	baseRotation int
	rotation     int
	mirrorX      bool
	mirrorY      bool
	xyFlip       bool

	outline outline
}

// NewCanvas allocates a black canvas for a display of the given logical size.
// rotation is the mounting rotation in degrees and is only valid on flat
// canvases; it is quantised to quarter turns.
func NewCanvas(size Vector, oversample, rotation int) (*Canvas, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 || oversample <= 0 {
		return nil, fmt.Errorf("%w: size=%v oversample=%d", ErrSize, size, oversample)
	}
	c := &Canvas{size: size, oversample: oversample, zOver: oversample}
	if c.Flat() {
		c.zOver = 1
	} else if quarter(rotation) != 0 {
		return nil, ErrRotation3D
	}
	c.baseRotation = quarter(rotation)
	c.calcRotation(c.baseRotation)
	c.buf = make([]Color, c.dim.X*c.dim.Y*c.dim.Z)
	return c, nil
}

// Flat reports whether the canvas is a single layer deep.
func (c *Canvas) Flat() bool { return c.size.Z == 1 }

// Size returns the logical display size.
func (c *Canvas) Size() Vector { return c.size }

// Dimension returns the drawable size: logical size times oversample, with X
// and Y swapped under a quarter-turn rotation.
func (c *Canvas) Dimension() Vector { return c.dim }

// Oversample returns the width of one display cell in buffer voxels.
func (c *Canvas) Oversample() int { return c.oversample }

// Rotation returns the user rotation in degrees.
func (c *Canvas) Rotation() int { return c.rotation }

// SetRotation sets the user rotation (0, 90, 180, 270) on top of the mounting
// rotation. The buffer is reallocated when the dimension changes.
func (c *Canvas) SetRotation(deg int) error {
	if !c.Flat() {
		return ErrRotation3D
	}
	c.rotation = quarter(deg)
	prev := c.dim
	c.calcRotation(c.baseRotation + c.rotation)
	if c.dim != prev {
		c.buf = make([]Color, c.dim.X*c.dim.Y*c.dim.Z)
	}
	return nil
}

func quarter(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg / 90 * 90
}

func (c *Canvas) calcRotation(angle int) {
	angle = quarter(angle)
	if angle == 0 || angle == 180 {
		c.dim = Vector{c.size.X * c.oversample, c.size.Y * c.oversample, c.size.Z * c.zOver}
		c.xyFlip = false
	} else {
		c.dim = Vector{c.size.Y * c.oversample, c.size.X * c.oversample, c.size.Z * c.zOver}
		c.xyFlip = true
	}
	c.mirrorY = angle == 90 || angle == 180
	c.mirrorX = angle == 270 || angle == 180
}

func (c *Canvas) inside(p Vector) bool {
	return p.X >= 0 && p.X < c.dim.X && p.Y >= 0 && p.Y < c.dim.Y && p.Z >= 0 && p.Z < c.dim.Z
}

func (c *Canvas) index(x, y, z int) int {
	return (z*c.dim.Y+y)*c.dim.X + x
}

// Clear fills every voxel with col.
func (c *Canvas) Clear(col Color) {
	for i := range c.buf {
		c.buf[i] = col
	}
}

// DrawPoint writes one voxel. Points outside the canvas are ignored.
func (c *Canvas) DrawPoint(p Vector, col Color) {
	if c.inside(p) {
		c.buf[c.index(p.X, p.Y, p.Z)] = col
	}
}

// Point reads one voxel; outside the canvas it is black.
func (c *Canvas) Point(p Vector) Color {
	if !c.inside(p) {
		return Black
	}
	return c.buf[c.index(p.X, p.Y, p.Z)]
}

// Flush averages every display cell, applies the rotation mapping and hands
// the frame to sink, then asks it to present.
func (c *Canvas) Flush(sink Sink) error {
	ov, oz := c.oversample, c.zOver
	dx, dy, dz := c.dim.X/ov, c.dim.Y/ov, c.dim.Z/oz
	for z := 0; z < dz; z++ {
		for y := 0; y < dy; y++ {
			for x := 0; x < dx; x++ {
				col := c.cellAverage(x, y, z)
				xr, yr := x, y
				if c.mirrorY {
					yr = dy - 1 - y
				}
				if c.mirrorX {
					xr = dx - 1 - x
				}
				if c.xyFlip {
					sink.SetVoxel(yr, xr, z, col)
				} else {
					sink.SetVoxel(xr, yr, z, col)
				}
			}
		}
	}
	return sink.Present()
}

// cellAverage returns the mean color of display cell (x, y, z).
func (c *Canvas) cellAverage(x, y, z int) Color {
	r, g, b := c.cellSum(x, y, z)
	n := c.oversample * c.oversample * c.zOver
	return Color{uint8(r / n), uint8(g / n), uint8(b / n)}
}

func (c *Canvas) cellSum(x, y, z int) (r, g, b int) {
	ov, oz := c.oversample, c.zOver
	for zp := 0; zp < oz; zp++ {
		for yp := 0; yp < ov; yp++ {
			row := c.index(x*ov, y*ov+yp, z*oz+zp)
			for xp := 0; xp < ov; xp++ {
				v := c.buf[row+xp]
				r += int(v.R)
				g += int(v.G)
				b += int(v.B)
			}
		}
	}
	return r, g, b
}

func (c *Canvas) fillCell(x, y, z int, col Color) {
	ov, oz := c.oversample, c.zOver
	for zp := 0; zp < oz; zp++ {
		for yp := 0; yp < ov; yp++ {
			row := c.index(x*ov, y*ov+yp, z*oz+zp)
			for xp := 0; xp < ov; xp++ {
				c.buf[row+xp] = col
			}
		}
	}
}
