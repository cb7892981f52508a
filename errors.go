package nfp

import (
	"errors"
	"fmt"
)

var (
	// ErrDecoderNotFound is returned when no ffmpeg binary can be located.
	ErrDecoderNotFound = errors.New("nfp: ffmpeg not found")

	// ErrInvalidOptions is returned when conversion options fail validation.
	ErrInvalidOptions = errors.New("nfp: invalid options")

	// ErrNoFrames is returned when a conversion ends without a single
	// complete frame.
	ErrNoFrames = errors.New("nfp: no frames produced")

	// ErrTruncatedTail is wrapped by TruncatedTailError.
	ErrTruncatedTail = errors.New("nfp: truncated frame at end of stream")
)

// TruncatedTailError reports bytes left over at the end of a stream that were
// too few to form a frame. The partial frame is discarded.
type TruncatedTailError struct {
	Residual  int
	FrameSize int
}

func (e *TruncatedTailError) Error() string {
	return fmt.Sprintf("nfp: truncated frame at end of stream: %d of %d bytes",
		e.Residual, e.FrameSize)
}

func (e *TruncatedTailError) Unwrap() error {
	return ErrTruncatedTail
}

// StreamError reports that the decoder exited unsuccessfully after it was
// started. Frames written before the failure are left on disk.
type StreamError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *StreamError) Error() string {
	msg := fmt.Sprintf("nfp: decoder exited with code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
