package nfp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxCells bounds Width*Height so a frame's byte size always fits in an int.
const MaxCells = 1 << 24

// Geometry is the size of the output character grid.
type Geometry struct {
	Width  int
	Height int
}

// FrameSize returns the number of rgb24 bytes in one raw frame.
func (g Geometry) FrameSize() int {
	return g.Width * g.Height * 3
}

// Validate returns an error if either dimension is not positive or the grid
// has more than MaxCells cells.
func (g Geometry) Validate() error {
	if g.Width <= 0 {
		return fmt.Errorf("%w: width must be positive, got %d", ErrInvalidOptions, g.Width)
	}
	if g.Height <= 0 {
		return fmt.Errorf("%w: height must be positive, got %d", ErrInvalidOptions, g.Height)
	}
	if g.Width > MaxCells/g.Height {
		return fmt.Errorf("%w: %dx%d grid exceeds %d cells", ErrInvalidOptions,
			g.Width, g.Height, MaxCells)
	}
	return nil
}

// RawFrame is one decoded frame of row-major rgb24 pixels.
type RawFrame struct {
	Index int
	Pix   []byte
}

// FrameName returns the file name of the frame with the given 1-based index.
func FrameName(index int) string {
	return fmt.Sprintf("frame_%04d.nfp", index)
}

// EncodedFrame is a frame quantized to palette digits, one row per line.
type EncodedFrame struct {
	Width  int
	Height int
	Rows   [][]byte
}

// EncodeFrame quantizes every pixel of raw against the palette.
func EncodeFrame(raw RawFrame, g Geometry, p Palette) (*EncodedFrame, error) {
	if len(raw.Pix) != g.FrameSize() {
		return nil, fmt.Errorf("nfp: EncodeFrame: frame %d has %d bytes, want %d",
			raw.Index, len(raw.Pix), g.FrameSize())
	}

	frame := &EncodedFrame{
		Width:  g.Width,
		Height: g.Height,
		Rows:   make([][]byte, g.Height),
	}

	for y := 0; y < g.Height; y++ {
		row := make([]byte, g.Width)
		for x := 0; x < g.Width; x++ {
			idx := (y*g.Width + x) * 3
			row[x] = p.Nearest(raw.Pix[idx], raw.Pix[idx+1], raw.Pix[idx+2])
		}
		frame.Rows[y] = row
	}

	return frame, nil
}

// WriteTo writes the frame in its text form: a "width height" header line
// followed by the rows, newline separated, without a trailing newline.
func (f *EncodedFrame) WriteTo(w io.Writer) (int64, error) {
	wr := bufio.NewWriter(w)

	var total int64
	n, err := wr.WriteString(strconv.Itoa(f.Width) + " " + strconv.Itoa(f.Height) + "\n")
	total += int64(n)
	if err != nil {
		return total, err
	}

	for i, row := range f.Rows {
		if i > 0 {
			if err := wr.WriteByte('\n'); err != nil {
				return total, err
			}
			total++
		}

		n, err = wr.Write(row)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, wr.Flush()
}

// Bytes returns the frame in its text form.
func (f *EncodedFrame) Bytes() []byte {
	buf := new(bytes.Buffer)
	f.WriteTo(buf)
	return buf.Bytes()
}

// ParseFrame reads a frame written by WriteTo and checks that its rows match
// the header dimensions and only use blit digits.
func ParseFrame(r io.Reader) (*EncodedFrame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("nfp: ParseFrame: missing header")
	}

	fields := strings.Fields(sc.Text())
	if len(fields) != 2 {
		return nil, fmt.Errorf("nfp: ParseFrame: malformed header %q", sc.Text())
	}

	width, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("nfp: ParseFrame: bad width: %w", err)
	}
	height, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("nfp: ParseFrame: bad height: %w", err)
	}

	frame := &EncodedFrame{Width: width, Height: height}
	for sc.Scan() {
		row := []byte(sc.Text())
		if len(row) != width {
			return nil, fmt.Errorf("nfp: ParseFrame: row %d has %d columns, want %d",
				len(frame.Rows)+1, len(row), width)
		}
		for _, c := range row {
			if !isBlitDigit(c) {
				return nil, fmt.Errorf("nfp: ParseFrame: row %d has invalid digit %q",
					len(frame.Rows)+1, c)
			}
		}
		frame.Rows = append(frame.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(frame.Rows) != height {
		return nil, fmt.Errorf("nfp: ParseFrame: got %d rows, want %d", len(frame.Rows), height)
	}

	return frame, nil
}
