package nfp

import (
	"io"
)

// Source produces raw rgb24 frame data. Read delivers the stream in chunks
// of arbitrary size and returns io.EOF once the producer has finished; Wait
// then reports how the producer exited.
type Source interface {
	io.Reader
	Wait() error
}

type readerSource struct {
	io.Reader
	exitErr error
}

// NewReaderSource wraps an in-memory or otherwise already available stream
// as a Source whose Wait returns exitErr.
func NewReaderSource(r io.Reader, exitErr error) Source {
	return &readerSource{Reader: r, exitErr: exitErr}
}

func (s *readerSource) Wait() error {
	return s.exitErr
}

func (s *readerSource) Close() error {
	if c, ok := s.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
