package stream

import (
	"context"
	"io"
	"os"

	"github.com/tmpim/nfp"
)

// urlSource decodes a video downloaded by yt-dlp.
type urlSource struct {
	*nfp.Decoder
	download io.ReadCloser
}

func (s *urlSource) Wait() error {
	err := s.Decoder.Wait()
	s.download.Close()
	return err
}

func (s *urlSource) Close() error {
	s.Decoder.Close()
	return s.download.Close()
}

// Open returns a frame source for input, which may be a still image, a
// video file, "-" for standard input, or an http(s) URL downloaded with
// yt-dlp. Metadata is best effort and may be nil.
func Open(ctx context.Context, input string, dec nfp.DecoderOptions) (nfp.Source, *Metadata, error) {
	switch {
	case IsURL(input):
		meta, rd, err := YoutubeDLSource(ctx, input)
		if err != nil {
			return nil, nil, err
		}

		dec.Input = ""
		dec.Stdin = rd
		d, err := nfp.StartDecoder(ctx, dec)
		if err != nil {
			rd.Close()
			return nil, nil, err
		}

		return &urlSource{Decoder: d, download: rd}, meta, nil

	case input == "-":
		dec.Input = ""
		dec.Stdin = os.Stdin
		d, err := nfp.StartDecoder(ctx, dec)
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil

	case nfp.IsStillImage(input):
		src, err := nfp.OpenStill(input, dec.Geometry)
		if err != nil {
			return nil, nil, err
		}
		return src, &Metadata{Title: FileTitle(input)}, nil
	}

	// fail before launching ffmpeg when the file is missing
	if _, err := os.Stat(input); err != nil {
		return nil, nil, err
	}

	meta, _ := Probe(input)

	dec.Input = input
	dec.Stdin = nil
	d, err := nfp.StartDecoder(ctx, dec)
	if err != nil {
		return nil, nil, err
	}

	return d, meta, nil
}

// ConvertInput opens input and converts it with opts.
func ConvertInput(ctx context.Context, input string, dec nfp.DecoderOptions,
	opts nfp.ConvertOptions) (*nfp.Result, error) {
	src, _, err := Open(ctx, input, dec)
	if err != nil {
		return nil, err
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	return nfp.Convert(ctx, src, opts)
}
