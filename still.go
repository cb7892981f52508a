package nfp

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/gift"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var stillExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// IsStillImage reports whether path names an image format that can be
// converted without ffmpeg.
func IsStillImage(path string) bool {
	return stillExtensions[strings.ToLower(filepath.Ext(path))]
}

// OpenStill decodes the image at path and returns a Source producing exactly
// one frame of it, resized to g with a Lanczos filter.
func OpenStill(path string, g Geometry) (Source, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("nfp: OpenStill: decode %s: %w", path, err)
	}

	return NewReaderSource(bytes.NewReader(ImageToRGB(img, g)), nil), nil
}

// ImageToRGB resizes img to g and returns its pixels as row-major rgb24.
// Transparent areas come out black.
func ImageToRGB(img image.Image, g Geometry) []byte {
	filter := gift.New(gift.Resize(g.Width, g.Height, gift.LanczosResampling))
	dst := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	filter.Draw(dst, img)

	out := make([]byte, 0, g.FrameSize())
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			i := dst.PixOffset(x, y)
			out = append(out, dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2])
		}
	}

	return out
}
