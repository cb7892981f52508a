package nfp

import (
	"github.com/lucasb-eyer/go-colorful"
)

// Nearest returns the blit digit of the palette entry closest to the given
// colour by squared Euclidean distance in RGB space. Ties go to the entry
// declared first.
func (p Palette) Nearest(r, g, b uint8) byte {
	best := 0
	bestDist := -1

	for i, e := range p {
		dr := int(r) - int(e.RGB[0])
		dg := int(g) - int(e.RGB[1])
		db := int(b) - int(e.RGB[2])
		dist := dr*dr + dg*dg + db*db
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = i
		}
	}

	return p[best].Index
}

// MeanDeltaE returns the mean CIE76 distance between every source pixel of
// raw and the palette colour it was quantized to in enc. It is a rough
// measure of how much colour a frame lost to the palette.
func MeanDeltaE(raw RawFrame, enc *EncodedFrame, p Palette) float64 {
	if enc == nil || enc.Width == 0 || enc.Height == 0 {
		return 0
	}

	lookup := make(map[byte]colorful.Color, len(p))
	for _, e := range p {
		c, _ := colorful.MakeColor(e.Color())
		lookup[e.Index] = c
	}

	var total float64
	for y, row := range enc.Rows {
		for x, idx := range row {
			off := (y*enc.Width + x) * 3
			src := colorful.Color{
				R: float64(raw.Pix[off]) / 255,
				G: float64(raw.Pix[off+1]) / 255,
				B: float64(raw.Pix[off+2]) / 255,
			}
			total += src.DistanceCIE76(lookup[idx])
		}
	}

	return total / float64(enc.Width*enc.Height)
}
