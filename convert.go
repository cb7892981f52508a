package nfp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/tmpim/nfp/logger"
	"golang.org/x/sync/errgroup"
)

const readChunkSize = 32 * 1024

// Progress is reported after each frame file is written.
type Progress struct {
	// Frame is the index of the frame just written.
	Frame int
	// Written is the number of frames written so far.
	Written int
}

// ConvertOptions configures a conversion.
type ConvertOptions struct {
	OutputDir string
	Geometry  Geometry
	FPS       float64
	Slug      string

	// Palette defaults to DefaultPalette.
	Palette Palette

	// Workers is the number of frames encoded and written in parallel.
	// Defaults to the number of CPUs.
	Workers int

	// Preview writes preview.png of the first frame, PreviewScale pixels
	// per cell.
	Preview      bool
	PreviewScale int

	Logger logger.Logger

	// OnProgress is called after every frame file is written. Calls are
	// serialized but may come from different goroutines.
	OnProgress func(Progress)
}

func (o *ConvertOptions) validate() error {
	if o.OutputDir == "" {
		return fmt.Errorf("%w: output directory must be specified", ErrInvalidOptions)
	}
	if err := o.Geometry.Validate(); err != nil {
		return err
	}
	if !(o.FPS > 0) || math.IsInf(o.FPS, 0) {
		return fmt.Errorf("%w: fps must be a positive finite number", ErrInvalidOptions)
	}
	if o.Palette == nil {
		o.Palette = DefaultPalette
	}
	if err := o.Palette.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.PreviewScale <= 0 {
		o.PreviewScale = 8
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoop()
	}
	return nil
}

// Result summarizes a finished conversion.
type Result struct {
	Manifest     *Manifest
	ManifestPath string

	// Truncated is the number of trailing bytes discarded because they did
	// not form a complete frame.
	Truncated int

	// MeanDeltaE is the average quantization error over all frames.
	MeanDeltaE float64
}

// Convert reads raw rgb24 frames from src, writes one frame file per
// complete frame into OutputDir/frames and, once every frame is on disk,
// writes OutputDir/manifest.json.
//
// A decoder failure returns a *StreamError and leaves already written
// frames in place without a manifest. A stream without a single complete
// frame returns ErrNoFrames. A partial frame at the end of the stream is
// logged and dropped.
func Convert(ctx context.Context, src Source, opts ConvertOptions) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	log := opts.Logger.WithComponent("convert")

	framesDir := filepath.Join(opts.OutputDir, FramesDir)
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, fmt.Errorf("nfp: Convert: %w", err)
	}

	asm := NewAssembler(opts.Geometry.FrameSize())
	builder := NewManifestBuilder(opts.Geometry, opts.FPS, opts.Slug)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	var (
		statsMu  sync.Mutex
		written  int
		deltaSum float64
		first    *EncodedFrame
	)

	writeFrame := func(raw RawFrame) error {
		enc, err := EncodeFrame(raw, opts.Geometry, opts.Palette)
		if err != nil {
			return err
		}

		name := FrameName(raw.Index)
		if err := os.WriteFile(filepath.Join(framesDir, name), enc.Bytes(), 0644); err != nil {
			return fmt.Errorf("nfp: Convert: write frame %d: %w", raw.Index, err)
		}
		builder.Set(raw.Index, name)

		delta := MeanDeltaE(raw, enc, opts.Palette)
		log.Debug("Frame %d written, mean error %.2f", raw.Index, delta)

		statsMu.Lock()
		defer statsMu.Unlock()

		written++
		deltaSum += delta
		if raw.Index == 1 {
			first = enc
		}
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Frame: raw.Index, Written: written})
		}

		return nil
	}

	log.Debug("Reading %dx%d frames of %d bytes", opts.Geometry.Width,
		opts.Geometry.Height, opts.Geometry.FrameSize())

	// stop the producer as soon as a write fails or ctx is cancelled
	stop := context.AfterFunc(gctx, func() {
		closeSource(src)
	})

	chunk := make([]byte, readChunkSize)
	var readErr error
	for gctx.Err() == nil {
		n, err := src.Read(chunk)
		if n > 0 {
			asm.Write(chunk[:n])
			for {
				raw, ok := asm.Next()
				if !ok {
					break
				}
				g.Go(func() error {
					return writeFrame(raw)
				})
			}
		}

		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			readErr = fmt.Errorf("nfp: Convert: read: %w", err)
			break
		}
	}

	stop()
	writeErr := g.Wait()

	if err := ctx.Err(); err != nil {
		closeSource(src)
		return nil, err
	}
	if writeErr != nil {
		closeSource(src)
		return nil, writeErr
	}
	if readErr != nil {
		closeSource(src)
		return nil, readErr
	}

	if err := src.Wait(); err != nil {
		log.Error("Decoder failed after %d frames: %s", builder.Len(), err)
		return nil, err
	}

	result := &Result{}

	if err := asm.Close(); err != nil {
		var tail *TruncatedTailError
		if !errors.As(err, &tail) {
			return nil, err
		}
		result.Truncated = tail.Residual
		log.Warn("Trailing bytes ignored; likely partial frame at end (%d of %d bytes)",
			tail.Residual, tail.FrameSize)
	}

	if builder.Len() == 0 {
		return nil, ErrNoFrames
	}

	if opts.Preview && first != nil {
		path := filepath.Join(opts.OutputDir, PreviewName)
		if err := WritePreview(path, first, opts.Palette, opts.PreviewScale); err != nil {
			log.Warn("Failed to write preview: %s", err)
		}
	}

	result.Manifest = builder.Build()
	result.ManifestPath = filepath.Join(opts.OutputDir, ManifestName)
	result.MeanDeltaE = deltaSum / float64(written)

	if err := WriteManifest(opts.OutputDir, result.Manifest); err != nil {
		return nil, err
	}

	log.Info("Converted %d frames (%dx%d at %g fps)", result.Manifest.FrameCount,
		opts.Geometry.Width, opts.Geometry.Height, opts.FPS)

	return result, nil
}

func closeSource(src Source) {
	if c, ok := src.(io.Closer); ok {
		c.Close()
	}
}
