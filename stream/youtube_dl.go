package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// YouTubeDLMetadata is the part of yt-dlp's JSON output used here.
type YouTubeDLMetadata struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Ext        string  `json:"ext"`
}

// IsURL reports whether input should be fetched with yt-dlp rather than
// opened as a file.
func IsURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// CloseWrapper kills the process producing a stream when the stream is
// closed.
type CloseWrapper struct {
	io.ReadCloser
	cmd    *exec.Cmd
	cancel func()
}

func (c CloseWrapper) Close() error {
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}

	go io.Copy(io.Discard, c.ReadCloser)

	c.cmd.Wait()
	c.cancel()

	return nil
}

// YoutubeDLSource starts yt-dlp for videoURL and returns its metadata and
// the downloaded video as a stream. The caller must close the stream.
func YoutubeDLSource(ctx context.Context, videoURL string) (*Metadata, io.ReadCloser, error) {
	args := []string{"-f", "best[height<=720]/best", "-o", "-", "--print-json", videoURL}

	wrappedCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(wrappedCtx, "yt-dlp", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, nil, err
	}

	err = cmd.Start()
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("stream: start yt-dlp: %w", err)
	}

	stderrBuf := new(bytes.Buffer)
	rd := io.TeeReader(stderr, stderrBuf)

	var metadata YouTubeDLMetadata

	jsonErr := json.NewDecoder(rd).Decode(&metadata)
	if jsonErr != nil {
		// assume the download failed
		go io.Copy(io.Discard, stdout)
		cancel()
		io.Copy(io.Discard, rd)
		err = cmd.Wait()
		if err == nil {
			return nil, nil, errors.New("stream: yt-dlp exited cleanly without metadata")
		}

		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		return nil, nil, fmt.Errorf("stream: yt-dlp: failed to parse json: %w; output: %s",
			jsonErr, strings.TrimSpace(stderrBuf.String()))
	}

	go io.Copy(io.Discard, stderr)

	meta := Metadata{
		Title:    metadata.Title,
		Duration: time.Duration(metadata.Duration * float64(time.Second)),
		HasVideo: true,
	}

	return &meta, CloseWrapper{ReadCloser: stdout, cmd: cmd, cancel: cancel}, nil
}
