package nfp

// Assembler reassembles fixed-size frames out of a byte stream delivered in
// chunks of arbitrary length. It is not safe for concurrent use; one reader
// owns it for the duration of a conversion.
type Assembler struct {
	frameSize int
	buf       []byte
	off       int
	emitted   int
}

// NewAssembler returns an Assembler producing frames of frameSize bytes.
func NewAssembler(frameSize int) *Assembler {
	if frameSize <= 0 {
		panic("nfp: NewAssembler: frame size must be positive")
	}

	return &Assembler{
		frameSize: frameSize,
		buf:       make([]byte, 0, frameSize*2),
	}
}

// Write appends a chunk to the buffer. It never fails.
func (a *Assembler) Write(chunk []byte) (int, error) {
	if a.off > 0 {
		// drop consumed bytes before growing
		n := copy(a.buf, a.buf[a.off:])
		a.buf = a.buf[:n]
		a.off = 0
	}

	a.buf = append(a.buf, chunk...)
	return len(chunk), nil
}

// Next extracts the next complete frame, if one is buffered. Frames are
// returned in stream order with 1-based indices.
func (a *Assembler) Next() (RawFrame, bool) {
	if len(a.buf)-a.off < a.frameSize {
		return RawFrame{}, false
	}

	pix := make([]byte, a.frameSize)
	copy(pix, a.buf[a.off:a.off+a.frameSize])
	a.off += a.frameSize
	if a.off == len(a.buf) {
		a.buf = a.buf[:0]
		a.off = 0
	}

	a.emitted++
	return RawFrame{Index: a.emitted, Pix: pix}, true
}

// Buffered returns the number of bytes waiting for a frame to complete.
func (a *Assembler) Buffered() int {
	return len(a.buf) - a.off
}

// Emitted returns the number of frames returned by Next so far.
func (a *Assembler) Emitted() int {
	return a.emitted
}

// Close ends the stream. Leftover bytes shorter than a frame are discarded
// and reported as a *TruncatedTailError.
func (a *Assembler) Close() error {
	residual := a.Buffered()
	a.buf = a.buf[:0]
	a.off = 0

	if residual > 0 {
		return &TruncatedTailError{Residual: residual, FrameSize: a.frameSize}
	}

	return nil
}
