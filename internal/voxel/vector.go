package voxel

import "math"

// Vector is an integer voxel coordinate.
type Vector struct {
	X, Y, Z int
}

// V is shorthand for a Vector literal.
func V(x, y, z int) Vector { return Vector{x, y, z} }

func (v Vector) Add(o Vector) Vector { return Vector{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector) Sub(o Vector) Vector { return Vector{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector) Mul(k int) Vector    { return Vector{v.X * k, v.Y * k, v.Z * k} }

// Div divides each coordinate by k, truncating toward zero.
func (v Vector) Div(k int) Vector {
	if k == 0 {
		return Vector{}
	}
	return Vector{v.X / k, v.Y / k, v.Z / k}
}

// Lerp moves v toward o by per percent (0..100).
func (v Vector) Lerp(o Vector, per int) Vector {
	return Vector{
		v.X + (o.X-v.X)*per/100,
		v.Y + (o.Y-v.Y)*per/100,
		v.Z + (o.Z-v.Z)*per/100,
	}
}

// Rotate applies yaw (about Z), pitch (about Y) and roll (about X), in
// radians, around the origin and rounds back to the grid.
func (v Vector) Rotate(pitch, roll, yaw float64) Vector {
	if pitch == 0 && roll == 0 && yaw == 0 {
		return v
	}
	ca, sa := math.Cos(yaw), math.Sin(yaw)
	cb, sb := math.Cos(pitch), math.Sin(pitch)
	cc, sc := math.Cos(roll), math.Sin(roll)
	x, y, z := float64(v.X), float64(v.Y), float64(v.Z)
	return Vector{
		int(math.Round(ca*cb*x + (ca*sb*sc-sa*cc)*y + (ca*sb*cc+sa*sc)*z)),
		int(math.Round(sa*cb*x + (sa*sb*sc+ca*cc)*y + (sa*sb*cc-ca*sc)*z)),
		int(math.Round(-sb*x + cb*sc*y + cb*cc*z)),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
