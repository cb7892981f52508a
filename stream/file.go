package stream

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Metadata describes an input before it is converted.
type Metadata struct {
	Title    string
	Duration time.Duration
	HasVideo bool
}

// FileTitle returns the file name of path without its extension.
func FileTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var mp4Extensions = map[string]bool{
	".mp4": true,
	".m4v": true,
	".mov": true,
}

// Probe returns the metadata of a local file. MP4 and QuickTime files are
// read directly; anything else is passed to ffprobe.
func Probe(path string) (*Metadata, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	if mp4Extensions[strings.ToLower(filepath.Ext(path))] {
		meta, err := probeMP4(path)
		if err == nil {
			return meta, nil
		}
	}

	return probeFFprobe(path)
}

func probeMP4(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := mp4.DecodeFile(f)
	if err != nil {
		return nil, fmt.Errorf("stream: decode mp4: %w", err)
	}

	moov := file.Moov
	if moov == nil && file.Init != nil {
		moov = file.Init.Moov
	}
	if moov == nil || moov.Mvhd == nil {
		return nil, fmt.Errorf("stream: %s has no movie header", path)
	}

	meta := Metadata{Title: FileTitle(path)}
	if moov.Mvhd.Timescale > 0 {
		meta.Duration = time.Duration(moov.Mvhd.Duration) * time.Second /
			time.Duration(moov.Mvhd.Timescale)
	}

	for _, trak := range moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide" {
			meta.HasVideo = true
			break
		}
	}

	return &meta, nil
}

var (
	durationPattern = regexp.MustCompile(`(?m)^\s+Duration: (\d*):(\d*):(\d*)\.(\d*),`)
	videoPattern    = regexp.MustCompile(`(?m)Stream #\S+.*: Video:`)
)

func probeFFprobe(path string) (*Metadata, error) {
	out, err := exec.Command("ffprobe", "-hide_banner", path).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("stream: ffprobe: %w", err)
	}

	return parseFFprobe(FileTitle(path), string(out)), nil
}

func parseFFprobe(title, out string) *Metadata {
	meta := Metadata{
		Title:    title,
		HasVideo: videoPattern.MatchString(out),
	}

	matches := durationPattern.FindStringSubmatch(out)
	if len(matches) != 0 {
		var h, m, s, ms int
		if len(matches[4]) < 3 {
			matches[4] = matches[4] + strings.Repeat("0", 3-len(matches[4]))
		}
		_, err := fmt.Sscanf(matches[1]+" "+matches[2]+" "+matches[3]+" "+
			matches[4][:3], "%d %d %d %d", &h, &m, &s, &ms)
		if err == nil {
			meta.Duration = time.Duration(h)*time.Hour +
				time.Duration(m)*time.Minute +
				time.Duration(s)*time.Second +
				time.Duration(ms)*time.Millisecond
		}
	}

	return &meta
}
