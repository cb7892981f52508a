package nfp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// DecoderOptions describes how ffmpeg should decode and scale the input.
type DecoderOptions struct {
	// FFmpegPath overrides ffmpeg discovery when set.
	FFmpegPath string

	// Input is a path or URL understood by ffmpeg. When Stdin is set the
	// input is read from it instead and Input is ignored.
	Input string
	Stdin io.Reader

	Geometry Geometry
	FPS      float64

	// Start and Duration are passed through as ffmpeg timestamps.
	Start    string
	Duration string

	// Debug copies ffmpeg's stderr to os.Stderr.
	Debug bool
}

func (o *DecoderOptions) validate() error {
	if err := o.Geometry.Validate(); err != nil {
		return err
	}
	if !(o.FPS > 0) {
		return fmt.Errorf("%w: fps must be positive", ErrInvalidOptions)
	}
	if o.Input == "" && o.Stdin == nil {
		return fmt.Errorf("%w: input must be specified", ErrInvalidOptions)
	}
	return nil
}

// Args returns the ffmpeg arguments for the options.
func (o *DecoderOptions) Args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if o.Start != "" {
		args = append(args, "-ss", o.Start)
	}

	input := o.Input
	if o.Stdin != nil {
		input = "-"
	}
	args = append(args, "-i", input)

	if o.Duration != "" {
		args = append(args, "-t", o.Duration)
	}

	args = append(args,
		"-vf", "scale="+strconv.Itoa(o.Geometry.Width)+":"+strconv.Itoa(o.Geometry.Height)+
			":flags=lanczos,fps="+strconv.FormatFloat(o.FPS, 'f', -1, 64),
		"-an",
		"-vcodec", "rawvideo",
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"pipe:1",
	)

	return args
}

// FindFFmpeg locates the ffmpeg binary. A non-empty custom path is used as
// is; otherwise FFMPEG_PATH, then PATH, then a few common install locations
// are checked.
func FindFFmpeg(custom string) (string, error) {
	if custom != "" {
		if _, err := os.Stat(custom); err != nil {
			return "", fmt.Errorf("%w: custom path %s not found", ErrDecoderNotFound, custom)
		}
		return custom, nil
	}

	if envPath := os.Getenv("FFMPEG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: FFMPEG_PATH %s not found", ErrDecoderNotFound, envPath)
		}
		return envPath, nil
	}

	execName := "ffmpeg"
	if runtime.GOOS == "windows" {
		execName = "ffmpeg.exe"
	}

	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	var commonPaths []string
	if runtime.GOOS == "windows" {
		commonPaths = []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
		}
	} else {
		commonPaths = []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/opt/homebrew/bin/ffmpeg",
			"/snap/bin/ffmpeg",
		}
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", ErrDecoderNotFound
}

// Decoder is a running ffmpeg process emitting raw rgb24 frames on its
// standard output.
type Decoder struct {
	ctx    context.Context
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer

	waitOnce sync.Once
	waitErr  error
}

// StartDecoder launches ffmpeg. The process is killed when ctx is done or
// the decoder is closed.
func StartDecoder(ctx context.Context, opts DecoderOptions) (*Decoder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	path, err := FindFFmpeg(opts.FFmpegPath)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, opts.Args()...)
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	stderr := newTailBuffer(4096)
	if opts.Debug {
		cmd.Stderr = io.MultiWriter(stderr, os.Stderr)
	} else {
		cmd.Stderr = stderr
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrDecoderNotFound, err)
	}

	return &Decoder{
		ctx:    ctx,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// Read reads decoded bytes from ffmpeg's standard output.
func (d *Decoder) Read(p []byte) (int, error) {
	return d.stdout.Read(p)
}

// Wait waits for ffmpeg to exit. It must only be called after Read has
// returned io.EOF or the decoder has been closed.
func (d *Decoder) Wait() error {
	d.waitOnce.Do(func() {
		err := d.cmd.Wait()
		if err == nil {
			return
		}

		if d.ctx.Err() != nil {
			d.waitErr = d.ctx.Err()
			return
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			d.waitErr = &StreamError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(d.stderr.String()),
				Err:      err,
			}
			return
		}

		d.waitErr = err
	})

	return d.waitErr
}

// Close kills ffmpeg if it is still running and reaps it.
func (d *Decoder) Close() error {
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}

	go io.Copy(io.Discard, d.stdout)

	d.Wait()
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = append(t.buf[:0], t.buf[len(t.buf)-t.max:]...)
	}

	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return string(t.buf)
}
