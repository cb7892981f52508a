package nfp

import (
	"bytes"
	"errors"
	"testing"
)

// sequence returns n bytes counting up from 0, wrapping at 256.
func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func drain(a *Assembler) []RawFrame {
	var frames []RawFrame
	for {
		f, ok := a.Next()
		if !ok {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestAssembler_ExactMultiple(t *testing.T) {
	a := NewAssembler(12)
	data := sequence(36)

	a.Write(data)
	frames := drain(a)

	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Index != i+1 {
			t.Errorf("frame %d: expected index %d, got %d", i, i+1, f.Index)
		}
		if !bytes.Equal(f.Pix, data[i*12:(i+1)*12]) {
			t.Errorf("frame %d: wrong pixels", i)
		}
	}

	if err := a.Close(); err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}
}

func TestAssembler_Remainder(t *testing.T) {
	a := NewAssembler(12)
	a.Write(sequence(29))

	frames := drain(a)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if a.Buffered() != 5 {
		t.Errorf("expected 5 buffered bytes, got %d", a.Buffered())
	}

	err := a.Close()
	var tail *TruncatedTailError
	if !errors.As(err, &tail) {
		t.Fatalf("expected TruncatedTailError, got %v", err)
	}
	if tail.Residual != 5 || tail.FrameSize != 12 {
		t.Errorf("expected 5 of 12 bytes, got %d of %d", tail.Residual, tail.FrameSize)
	}
	if !errors.Is(err, ErrTruncatedTail) {
		t.Error("expected error to wrap ErrTruncatedTail")
	}
}

func TestAssembler_ShorterThanOneFrame(t *testing.T) {
	a := NewAssembler(12)
	a.Write(sequence(5))

	if frames := drain(a); len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
	if a.Emitted() != 0 {
		t.Errorf("expected 0 emitted, got %d", a.Emitted())
	}
	if err := a.Close(); !errors.Is(err, ErrTruncatedTail) {
		t.Errorf("expected truncated tail, got %v", err)
	}
}

func TestAssembler_ChunkingInvariance(t *testing.T) {
	const frameSize = 2 * 2 * 3
	data := sequence(frameSize*7 + 4)

	a := NewAssembler(frameSize)
	a.Write(data)
	want := drain(a)

	for _, chunk := range []int{1, 2, 3, 5, 7, 11, 12, 13, 24, 25, 64, len(data)} {
		a := NewAssembler(frameSize)
		var got []RawFrame
		for off := 0; off < len(data); off += chunk {
			end := off + chunk
			if end > len(data) {
				end = len(data)
			}
			a.Write(data[off:end])
			got = append(got, drain(a)...)
		}

		if len(got) != len(want) {
			t.Fatalf("chunk %d: expected %d frames, got %d", chunk, len(want), len(got))
		}
		for i := range want {
			if got[i].Index != want[i].Index || !bytes.Equal(got[i].Pix, want[i].Pix) {
				t.Errorf("chunk %d: frame %d differs", chunk, i+1)
			}
		}
		if a.Buffered() != 4 {
			t.Errorf("chunk %d: expected 4 buffered bytes, got %d", chunk, a.Buffered())
		}
	}
}

func TestAssembler_FramesDoNotAlias(t *testing.T) {
	a := NewAssembler(3)
	a.Write([]byte{1, 2, 3})
	first, _ := a.Next()

	a.Write([]byte{4, 5, 6})
	second, _ := a.Next()

	if !bytes.Equal(first.Pix, []byte{1, 2, 3}) {
		t.Errorf("first frame was overwritten: %v", first.Pix)
	}
	if !bytes.Equal(second.Pix, []byte{4, 5, 6}) {
		t.Errorf("unexpected second frame: %v", second.Pix)
	}
}

func TestNewAssembler_PanicsOnZeroSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero frame size")
		}
	}()
	NewAssembler(0)
}
