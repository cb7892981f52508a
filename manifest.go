package nfp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	// ManifestFormat identifies the frame file layout described by a manifest.
	ManifestFormat = "nfp-bg-rows-v1"

	// ManifestName is the manifest file name inside an output directory.
	ManifestName = "manifest.json"

	// FramesDir is the directory, relative to the manifest, holding frames.
	FramesDir = "frames"
)

// Manifest describes a converted frame sequence.
type Manifest struct {
	Format         string   `json:"format"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	FPS            float64  `json:"fps"`
	FrameCount     int      `json:"frameCount"`
	Slug           string   `json:"slug"`
	FramesBasePath string   `json:"framesBasePath"`
	Frames         []string `json:"frames"`
}

// ManifestBuilder collects frame file names as frames are written. Frames
// may be recorded in any order; the built manifest lists them by index.
type ManifestBuilder struct {
	mu       sync.Mutex
	geometry Geometry
	fps      float64
	slug     string
	names    map[int]string
}

// NewManifestBuilder returns a builder for a sequence with the given
// parameters.
func NewManifestBuilder(g Geometry, fps float64, slug string) *ManifestBuilder {
	return &ManifestBuilder{
		geometry: g,
		fps:      fps,
		slug:     slug,
		names:    make(map[int]string),
	}
}

// Set records the file name of the frame with the given 1-based index.
func (b *ManifestBuilder) Set(index int, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.names[index] = name
}

// Len returns the number of frames recorded.
func (b *ManifestBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.names)
}

// Build returns the manifest. FrameCount is the number of frames actually
// recorded.
func (b *ManifestBuilder) Build() *Manifest {
	b.mu.Lock()
	defer b.mu.Unlock()

	indices := make([]int, 0, len(b.names))
	for i := range b.names {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	frames := make([]string, len(indices))
	for i, idx := range indices {
		frames[i] = b.names[idx]
	}

	return &Manifest{
		Format:         ManifestFormat,
		Width:          b.geometry.Width,
		Height:         b.geometry.Height,
		FPS:            b.fps,
		FrameCount:     len(frames),
		Slug:           b.slug,
		FramesBasePath: FramesDir,
		Frames:         frames,
	}
}

// WriteManifest writes m to dir/manifest.json. The document is written to a
// temporary file first and renamed into place so readers never observe a
// partial manifest.
func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("nfp: WriteManifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("nfp: WriteManifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("nfp: WriteManifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("nfp: WriteManifest: %w", err)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("nfp: WriteManifest: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, ManifestName)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("nfp: WriteManifest: %w", err)
	}

	return nil
}

// ReadManifest reads dir/manifest.json and checks that it is consistent:
// the format is known, the frame count matches, and every frame exists.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("nfp: ReadManifest: %w", err)
	}

	if m.Format != ManifestFormat {
		return nil, fmt.Errorf("nfp: ReadManifest: unknown format %q", m.Format)
	}
	if len(m.Frames) != m.FrameCount {
		return nil, fmt.Errorf("nfp: ReadManifest: frameCount is %d but %d frames are listed",
			m.FrameCount, len(m.Frames))
	}

	for _, name := range m.Frames {
		if _, err := os.Stat(filepath.Join(dir, m.FramesBasePath, name)); err != nil {
			return nil, fmt.Errorf("nfp: ReadManifest: %w", err)
		}
	}

	return &m, nil
}
