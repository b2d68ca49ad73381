package voxel

const (
	axisX = iota
	axisY
	axisZ
)

func coord(v Vector, axis int) int {
	switch axis {
	case axisX:
		return v.X
	case axisY:
		return v.Y
	}
	return v.Z
}

// outline records, for every row along rowAxis, the extreme points reached
// along spanAxis while triangle edges are drawn.
type outline struct {
	rowAxis  int
	spanAxis int
	rows     []outlineRow
}

type outlineRow struct {
	set      bool
	lo, hi   int
	loP, hiP Vector
	loC, hiC Color
}

func (o *outline) reset(rowAxis, spanAxis, n int) {
	o.rowAxis, o.spanAxis = rowAxis, spanAxis
	if cap(o.rows) < n {
		o.rows = make([]outlineRow, n)
	}
	o.rows = o.rows[:n]
	for i := range o.rows {
		o.rows[i] = outlineRow{}
	}
}

func (o *outline) add(p Vector, col Color) {
	row := coord(p, o.rowAxis)
	if row < 0 || row >= len(o.rows) {
		return
	}
	v := coord(p, o.spanAxis)
	r := &o.rows[row]
	if !r.set {
		*r = outlineRow{set: true, lo: v, hi: v, loP: p, hiP: p, loC: col, hiC: col}
		return
	}
	if v < r.lo {
		r.lo, r.loP, r.loC = v, p, col
	}
	if v > r.hi {
		r.hi, r.hiP, r.hiC = v, p, col
	}
}

// DrawLine draws a 3D Bresenham line from p0 to p1, stepping along the axis
// with the largest delta. Colors blend from c0 to c1 by integer percentage of
// the distance covered along that axis.
func (c *Canvas) DrawLine(p0 Vector, c0 Color, p1 Vector, c1 Color) {
	c.line(p0, c0, p1, c1, nil)
}

func (c *Canvas) line(p0 Vector, c0 Color, p1 Vector, c1 Color, rec *outline) {
	d := p1.Sub(p0)
	ax, ay, az := abs(d.X)<<1, abs(d.Y)<<1, abs(d.Z)<<1
	sx, sy, sz := sign(d.X), sign(d.Y), sign(d.Z)
	p := p0

	dominant := axisZ
	switch {
	case ax >= ay && ax >= az:
		dominant = axisX
	case ay >= ax && ay >= az:
		dominant = axisY
	}
	from, to := coord(p0, dominant), coord(p1, dominant)
	span := abs(from - to)

	plot := func() {
		col := c0
		if span != 0 {
			col = c1.Lerp(c0, abs(coord(p, dominant)-to)*100/span)
		}
		c.DrawPoint(p, col)
		if rec != nil {
			rec.add(p, col)
		}
	}

	switch dominant {
	case axisX:
		yd, zd := ay-(ax>>1), az-(ax>>1)
		for {
			plot()
			if p.X == p1.X {
				return
			}
			if yd >= 0 {
				p.Y += sy
				yd -= ax
			}
			if zd >= 0 {
				p.Z += sz
				zd -= ax
			}
			p.X += sx
			yd += ay
			zd += az
		}
	case axisY:
		xd, zd := ax-(ay>>1), az-(ay>>1)
		for {
			plot()
			if p.Y == p1.Y {
				return
			}
			if xd >= 0 {
				p.X += sx
				xd -= ay
			}
			if zd >= 0 {
				p.Z += sz
				zd -= ay
			}
			p.Y += sy
			xd += ax
			zd += az
		}
	default:
		xd, yd := ax-(az>>1), ay-(az>>1)
		for {
			plot()
			if p.Z == p1.Z {
				return
			}
			if xd >= 0 {
				p.X += sx
				xd -= az
			}
			if yd >= 0 {
				p.Y += sy
				yd -= az
			}
			p.Z += sz
			xd += ax
			yd += ay
		}
	}
}

// DrawTri draws a filled triangle. The triangle is projected onto the plane
// spanned by its two widest bounding box axes; its edges are traced while the
// extreme points of every row in that plane are recorded, and each row is then
// closed with a line between its extremes. Triangles that are steep relative
// to the chosen plane can show gaps.
func (c *Canvas) DrawTri(p0 Vector, c0 Color, p1 Vector, c1 Color, p2 Vector, c2 Color) {
	span := func(a, b, d int) int {
		return max(a, b, d) - min(a, b, d)
	}
	wx := span(p0.X, p1.X, p2.X)
	wy := span(p0.Y, p1.Y, p2.Y)
	wz := span(p0.Z, p1.Z, p2.Z)

	o := &c.outline
	switch {
	case wz <= wx && wz <= wy:
		o.reset(axisY, axisX, c.dim.Y)
	case wy <= wx:
		o.reset(axisZ, axisX, c.dim.Z)
	default:
		o.reset(axisZ, axisY, c.dim.Z)
	}

	c.line(p0, c0, p1, c1, o)
	c.line(p1, c1, p2, c2, o)
	c.line(p2, c2, p0, c0, o)

	for _, r := range o.rows {
		if !r.set || r.hi-r.lo < 2 {
			continue
		}
		c.line(r.loP, r.loC, r.hiP, r.hiC, nil)
	}
}

// DrawQuad draws four triangles fanned around the centroid of the corners.
func (c *Canvas) DrawQuad(p0 Vector, c0 Color, p1 Vector, c1 Color, p2 Vector, c2 Color, p3 Vector, c3 Color) {
	pc := p0.Add(p1).Add(p2).Add(p3).Div(4)
	cc := c0.Div(4).Add(c1.Div(4)).Add(c2.Div(4)).Add(c3.Div(4))

	c.DrawTri(p0, c0, pc, cc, p1, c1)
	c.DrawTri(p1, c1, pc, cc, p2, c2)
	c.DrawTri(p2, c2, pc, cc, p3, c3)
	c.DrawTri(p3, c3, pc, cc, p0, c0)
}
