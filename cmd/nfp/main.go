// Command nfp converts a video into ComputerCraft NFP frames and a manifest.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"

	"github.com/tmpim/nfp"
	"github.com/tmpim/nfp/config"
	"github.com/tmpim/nfp/logger"
	"github.com/tmpim/nfp/stream"
)

// CLI defines the command-line interface.
type CLI struct {
	Input  string `arg:"" help:"Video file, still image, http(s) URL, or - for standard input."`
	Output string `arg:"" help:"Output directory."`

	Width    *int     `help:"Grid width in characters (default: 26)."`
	Height   *int     `help:"Grid height in characters (default: 20)."`
	FPS      *float64 `name:"fps" help:"Frames per second to extract (default: 10)."`
	Slug     *string  `help:"Name recorded in the manifest (default: video)."`
	Start    *string  `help:"Start offset, e.g. 00:00:05 or 5s."`
	Duration *string  `help:"Length to convert, e.g. 5, 500ms or 00:00:05."`

	Config  string `help:"YAML configuration file."`
	Workers *int   `help:"Frames encoded in parallel (default: number of CPUs)."`
	Preview bool   `help:"Also write preview.png of the first frame."`
	FFmpeg  string `name:"ffmpeg" help:"Path to ffmpeg (falls back to FFMPEG_PATH, then PATH)."`

	Debug    bool    `short:"d" help:"Show ffmpeg output and per-frame details."`
	LogLevel *string `name:"log-level" short:"l" help:"Log level (debug, info, warn, error)."`
	Quiet    bool    `short:"q" help:"Suppress all log output."`
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("nfp"),
		kong.Description("Convert a video into ComputerCraft NFP frames."),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintln(stderr, "nfp:", err)
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) {
			parseErr.Context.PrintUsage(true)
		}
		return 1
	}

	cfg, err := cli.buildConfig()
	if err != nil {
		fmt.Fprintln(stderr, "nfp:", err)
		kctx.PrintUsage(true)
		return 1
	}

	var log logger.Logger
	if cli.Quiet {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(logger.ParseLevel(cfg.LogLevel))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return convert(ctx, cli.Input, cli.Output, cfg, log, stdout)
}

// buildConfig layers the config file and flags over the defaults.
func (cli *CLI) buildConfig() (config.Config, error) {
	cfg := config.Defaults()
	if cli.Config != "" {
		var err error
		cfg, err = config.Load(cli.Config)
		if err != nil {
			return cfg, err
		}
	}

	if cli.Width != nil {
		cfg.Width = *cli.Width
	}
	if cli.Height != nil {
		cfg.Height = *cli.Height
	}
	if cli.FPS != nil {
		cfg.FPS = *cli.FPS
	}
	if cli.Slug != nil {
		cfg.Slug = *cli.Slug
	}
	if cli.Start != nil {
		cfg.Start = *cli.Start
	}
	if cli.Duration != nil {
		cfg.Duration = *cli.Duration
	}
	if cli.Workers != nil {
		cfg.Workers = *cli.Workers
	}
	if cli.Preview {
		cfg.Preview = true
	}
	if cli.FFmpeg != "" {
		cfg.FFmpegPath = cli.FFmpeg
	}
	if cli.Debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if cli.LogLevel != nil {
		cfg.LogLevel = *cli.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	if cfg.Start != "" {
		if _, err := stream.ParseTimestamp(cfg.Start); err != nil {
			return cfg, err
		}
	}
	if cfg.Duration != "" {
		if _, err := stream.ParseTimestamp(cfg.Duration); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func convert(ctx context.Context, input, output string, cfg config.Config,
	log logger.Logger, stdout io.Writer) int {
	geometry := nfp.Geometry{Width: cfg.Width, Height: cfg.Height}

	src, meta, err := stream.Open(ctx, input, nfp.DecoderOptions{
		FFmpegPath: cfg.FFmpegPath,
		Geometry:   geometry,
		FPS:        cfg.FPS,
		Start:      cfg.Start,
		Duration:   cfg.Duration,
		Debug:      cfg.Debug,
	})
	if errors.Is(err, nfp.ErrDecoderNotFound) {
		log.Error("ffmpeg not found in PATH. Please install ffmpeg.")
		return 1
	} else if err != nil {
		log.Error("Failed to open %s: %s", input, err)
		return 1
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	if meta != nil {
		announce(log, meta, cfg)
	}

	tty := false
	if f, ok := stdout.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}

	result, err := nfp.Convert(ctx, src, nfp.ConvertOptions{
		OutputDir:    output,
		Geometry:     geometry,
		FPS:          cfg.FPS,
		Slug:         cfg.Slug,
		Workers:      cfg.Workers,
		Preview:      cfg.Preview,
		PreviewScale: cfg.PreviewScale,
		Logger:       log,
		OnProgress: func(p nfp.Progress) {
			if tty && p.Written%25 == 0 {
				fmt.Fprint(stdout, l10n.F("Processed %d frames...", p.Written)+"\r")
			}
		},
	})

	var streamErr *nfp.StreamError
	switch {
	case errors.As(err, &streamErr):
		log.Error("ffmpeg exited with code %d", streamErr.ExitCode)
		if streamErr.Stderr != "" {
			log.Error("%s", streamErr.Stderr)
		}
		return 1
	case errors.Is(err, nfp.ErrNoFrames):
		log.Error("No frames were produced; the input may be shorter than one frame.")
		return 1
	case errors.Is(err, context.Canceled):
		log.Warn("Interrupted, shutting down...")
		return 1
	case err != nil:
		log.Error("Conversion failed: %s", err)
		return 1
	}

	if tty {
		fmt.Fprintln(stdout)
	}
	log.Info("Done. Frames: %d. Manifest: %s", result.Manifest.FrameCount, result.ManifestPath)
	log.Debug("Mean quantization error: %.2f", result.MeanDeltaE)

	return 0
}

// announce logs what is about to be converted. Stills and inputs whose
// length could not be read have no duration to report.
func announce(log logger.Logger, meta *stream.Metadata, cfg config.Config) {
	if meta.Duration <= 0 {
		log.Info("Converting %s to %dx%d at %g fps", meta.Title, cfg.Width, cfg.Height, cfg.FPS)
		return
	}

	log.Info("Converting %s (%s) to %dx%d at %g fps", meta.Title, meta.Duration,
		cfg.Width, cfg.Height, cfg.FPS)
	if start, err := stream.ParseTimestamp(cfg.Start); err == nil && start >= meta.Duration {
		log.Warn("Start offset %s is beyond the end of the input (%s)", start, meta.Duration)
	}
}
