package nfp

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func BenchmarkEncodeFrame(b *testing.B) {
	g := Geometry{Width: 164, Height: 81}
	raw := RawFrame{Index: 1, Pix: sequence(g.FrameSize())}

	b.SetBytes(int64(g.FrameSize()))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		enc, err := EncodeFrame(raw, g, DefaultPalette)
		if err != nil {
			b.Fatal(err)
		}
		enc.WriteTo(io.Discard)
	}
}

func BenchmarkConvert(b *testing.B) {
	g := Geometry{Width: 51, Height: 19}
	stream := sequence(g.FrameSize() * 100)

	b.SetBytes(int64(len(stream)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		src := NewReaderSource(bytes.NewReader(stream), nil)
		_, err := Convert(context.Background(), src, ConvertOptions{
			OutputDir: b.TempDir(),
			Geometry:  g,
			FPS:       20,
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
