package nfp

import (
	"image"

	"github.com/fogleman/gg"
)

// PreviewName is the preview image file name inside an output directory.
const PreviewName = "preview.png"

// RenderPreview draws an encoded frame as an image with scale×scale pixels
// per cell. Unknown digits are drawn black.
func RenderPreview(f *EncodedFrame, p Palette, scale int) image.Image {
	if scale < 1 {
		scale = 1
	}

	dc := gg.NewContext(f.Width*scale, f.Height*scale)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	s := float64(scale)
	for y, row := range f.Rows {
		for x, idx := range row {
			entry, ok := p.Lookup(idx)
			if !ok {
				continue
			}
			dc.SetColor(entry.Color())
			dc.DrawRectangle(float64(x)*s, float64(y)*s, s, s)
			dc.Fill()
		}
	}

	return dc.Image()
}

// WritePreview renders f and saves it as a PNG file.
func WritePreview(path string, f *EncodedFrame, p Palette, scale int) error {
	return gg.SavePNG(path, RenderPreview(f, p, scale))
}
