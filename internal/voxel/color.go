package voxel

// Color is an 8-bit RGB triple. Combining operators saturate at 0 and 255.
type Color struct {
	R, G, B uint8
}

var (
	Black = Color{}
	White = Color{255, 255, 255}
	Red   = Color{R: 255}
	Green = Color{G: 255}
	Blue  = Color{B: 255}
)

// RGB builds a color from ints, clamping each channel into 0..255.
func RGB(r, g, b int) Color {
	return Color{sat(r), sat(g), sat(b)}
}

// Add returns the channel sum, saturating at 255.
func (c Color) Add(o Color) Color {
	return RGB(int(c.R)+int(o.R), int(c.G)+int(o.G), int(c.B)+int(o.B))
}

// Sub returns the channel difference, flooring at 0.
func (c Color) Sub(o Color) Color {
	return RGB(int(c.R)-int(o.R), int(c.G)-int(o.G), int(c.B)-int(o.B))
}

// Mul returns the channel product, saturating at 255.
func (c Color) Mul(o Color) Color {
	return RGB(int(c.R)*int(o.R), int(c.G)*int(o.G), int(c.B)*int(o.B))
}

// Scale multiplies every channel by v (itself capped at 255), saturating.
func (c Color) Scale(v int) Color {
	v = max(0, min(v, 255))
	return RGB(int(c.R)*v, int(c.G)*v, int(c.B)*v)
}

// Div divides every channel by v, truncating. Division by zero yields black.
func (c Color) Div(v int) Color {
	if v <= 0 {
		return Black
	}
	return RGB(int(c.R)/v, int(c.G)/v, int(c.B)/v)
}

// Lerp moves c toward o by per percent (0..100), truncating per channel.
func (c Color) Lerp(o Color, per int) Color {
	per = max(0, min(per, 100))
	step := func(a, b uint8) int {
		return int(a) + (int(b)-int(a))*per/100
	}
	return RGB(step(c.R, o.R), step(c.G, o.G), step(c.B, o.B))
}

// FromHSV converts hue in degrees and saturation/value in percent.
func FromHSV(h, s, v int) Color {
	if h < 0 || h >= 360 {
		h = 0
	}
	hue := float64(h) / 60
	sat := float64(max(0, min(s, 100))) / 100
	val := float64(max(0, min(v, 100))) / 100

	i := int(hue)
	ff := hue - float64(i)
	p := val * (1 - sat)
	q := val * (1 - sat*ff)
	t := val * (1 - sat*(1-ff))

	to := func(r, g, b float64) Color {
		return Color{uint8(r * 255), uint8(g * 255), uint8(b * 255)}
	}
	switch i {
	case 0:
		return to(val, t, p)
	case 1:
		return to(q, val, p)
	case 2:
		return to(p, val, t)
	case 3:
		return to(p, q, val)
	case 4:
		return to(t, p, val)
	default:
		return to(val, p, q)
	}
}

func sat(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
