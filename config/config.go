// Package config loads conversion settings from YAML files and defaults.
package config

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/tmpim/nfp"
)

// Config holds the settings shared by the nfp command and server.
type Config struct {
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	FPS      float64 `yaml:"fps"`
	Slug     string  `yaml:"slug"`
	Start    string  `yaml:"start"`
	Duration string  `yaml:"duration"`

	Workers    int    `yaml:"workers"`
	FFmpegPath string `yaml:"ffmpeg_path"`
	LogLevel   string `yaml:"log_level"`
	Debug      bool   `yaml:"debug"`

	Preview      bool `yaml:"preview"`
	PreviewScale int  `yaml:"preview_scale"`

	// Server settings
	Listen string `yaml:"listen"`
	Root   string `yaml:"root"`
}

// Defaults returns the default configuration: a 26x20 grid at 10 fps.
func Defaults() Config {
	return Config{
		Width:        26,
		Height:       20,
		FPS:          10,
		Slug:         "video",
		Workers:      runtime.NumCPU(),
		LogLevel:     "info",
		PreviewScale: 8,
		Listen:       ":9999",
		Root:         "videos",
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidSlug reports whether slug is safe to use as a directory name below
// the server root.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Validate checks that the grid and frame rate are usable.
func (c Config) Validate() error {
	if c.Width <= 0 {
		return fmt.Errorf("config: width must be positive, got %d", c.Width)
	}
	if c.Height <= 0 {
		return fmt.Errorf("config: height must be positive, got %d", c.Height)
	}
	if c.Width > nfp.MaxCells/c.Height {
		return fmt.Errorf("config: %dx%d grid exceeds %d cells", c.Width, c.Height, nfp.MaxCells)
	}
	if math.IsNaN(c.FPS) || math.IsInf(c.FPS, 0) || c.FPS <= 0 {
		return fmt.Errorf("config: fps must be a positive finite number, got %v", c.FPS)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	if c.PreviewScale < 0 {
		return fmt.Errorf("config: preview_scale must not be negative, got %d", c.PreviewScale)
	}
	return nil
}
