package render

import "github.com/guidoenr/visualsound/internal/voxel"

// PaletteSize is the number of selectable colour pairs.
const PaletteSize = 36

// Pair is a primary/secondary colour choice.
type Pair struct {
	Primary   voxel.Color
	Secondary voxel.Color
}

// Palette returns the selectable colour pairs: four families of nine hues
// around the wheel, whose secondaries sit 40, 80 and 120 degrees further on,
// and finally black.
func Palette() []Pair {
	out := make([]Pair, PaletteSize)
	for i := range out {
		out[i] = PaletteEntry(i)
	}
	return out
}

// PaletteEntry returns pair i, wrapping out-of-range indices.
func PaletteEntry(i int) Pair {
	i %= PaletteSize
	if i < 0 {
		i += PaletteSize
	}
	hues := PaletteSize / 4
	family, n := i/hues, i%hues
	hue := n * (360 / hues) % 360
	p := Pair{Primary: voxel.FromHSV(hue, 90, 90)}
	if family < 3 {
		p.Secondary = voxel.FromHSV((hue+40*(family+1))%360, 90, 90)
	}
	return p
}
