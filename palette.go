package nfp

import (
	"errors"
	"fmt"
	"image/color"
)

// colorAlphabet is the set of blit digits a palette index may use.
var colorAlphabet = []byte("0123456789abcdef")

// PaletteEntry is a single named palette colour and the blit digit used to
// reference it in frame files.
type PaletteEntry struct {
	Name  string
	Index byte
	RGB   [3]uint8
}

// Color returns the entry as an opaque color.RGBA.
func (e PaletteEntry) Color() color.RGBA {
	return color.RGBA{R: e.RGB[0], G: e.RGB[1], B: e.RGB[2], A: 0xff}
}

// Palette is an ordered list of palette entries. The order is significant:
// quantization ties resolve to the earliest entry.
type Palette []PaletteEntry

// DefaultPalette approximates the 16 ComputerCraft terminal colours.
var DefaultPalette = Palette{
	{Name: "white", Index: '0', RGB: [3]uint8{240, 240, 240}},
	{Name: "orange", Index: '1', RGB: [3]uint8{242, 178, 51}},
	{Name: "magenta", Index: '2', RGB: [3]uint8{229, 127, 216}},
	{Name: "lightBlue", Index: '3', RGB: [3]uint8{153, 178, 242}},
	{Name: "yellow", Index: '4', RGB: [3]uint8{222, 222, 108}},
	{Name: "lime", Index: '5', RGB: [3]uint8{127, 204, 25}},
	{Name: "pink", Index: '6', RGB: [3]uint8{242, 178, 204}},
	{Name: "gray", Index: '7', RGB: [3]uint8{76, 76, 76}},
	{Name: "lightGray", Index: '8', RGB: [3]uint8{153, 153, 153}},
	{Name: "cyan", Index: '9', RGB: [3]uint8{76, 153, 178}},
	{Name: "purple", Index: 'a', RGB: [3]uint8{178, 102, 229}},
	{Name: "blue", Index: 'b', RGB: [3]uint8{51, 76, 178}},
	{Name: "brown", Index: 'c', RGB: [3]uint8{102, 76, 51}},
	{Name: "green", Index: 'd', RGB: [3]uint8{102, 127, 51}},
	{Name: "red", Index: 'e', RGB: [3]uint8{153, 51, 51}},
	{Name: "black", Index: 'f', RGB: [3]uint8{0, 0, 0}},
}

// Lookup returns the entry with the given blit digit.
func (p Palette) Lookup(index byte) (PaletteEntry, bool) {
	for _, e := range p {
		if e.Index == index {
			return e, true
		}
	}

	return PaletteEntry{}, false
}

// ColorPalette returns the palette as a color.Palette in declaration order.
func (p Palette) ColorPalette() color.Palette {
	pal := make(color.Palette, len(p))
	for i, e := range p {
		pal[i] = e.Color()
	}

	return pal
}

// Validate checks that the palette has exactly 16 entries whose indices are
// unique blit digits.
func (p Palette) Validate() error {
	if len(p) != len(colorAlphabet) {
		return fmt.Errorf("nfp: palette must have %d entries, has %d",
			len(colorAlphabet), len(p))
	}

	seen := make(map[byte]bool)
	for _, e := range p {
		if !isBlitDigit(e.Index) {
			return fmt.Errorf("nfp: palette entry %q has invalid index %q", e.Name, e.Index)
		}
		if seen[e.Index] {
			return errors.New("nfp: palette index " + string(e.Index) + " is used twice")
		}
		seen[e.Index] = true
	}

	return nil
}

func isBlitDigit(b byte) bool {
	for _, c := range colorAlphabet {
		if b == c {
			return true
		}
	}
	return false
}
