package voxel

// PPBrightness tone-maps the canvas: every display cell is averaged, scaled by
// multiplier and written back to all of its voxels. When the brightest channel
// would exceed 255 all three are scaled down together so the hue survives.
func (c *Canvas) PPBrightness(multiplier float64) {
	if multiplier < 0 {
		multiplier = 0
	}
	ov, oz := c.oversample, c.zOver
	n := ov * ov * oz
	dx, dy, dz := c.dim.X/ov, c.dim.Y/ov, c.dim.Z/oz
	for z := 0; z < dz; z++ {
		for y := 0; y < dy; y++ {
			for x := 0; x < dx; x++ {
				r, g, b := c.cellSum(x, y, z)
				r = int(float64(r/n) * multiplier)
				g = int(float64(g/n) * multiplier)
				b = int(float64(b/n) * multiplier)
				if peak := max(r, g, b); peak > 255 {
					r = r * 255 / peak
					g = g * 255 / peak
					b = b * 255 / peak
				}
				c.fillCell(x, y, z, Color{uint8(r), uint8(g), uint8(b)})
			}
		}
	}
}
