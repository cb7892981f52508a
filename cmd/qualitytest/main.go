// Command qualitytest quantizes every still image in a directory and
// reports how far each result is from its source.
package main

import (
	"image"
	"os"
	"path/filepath"
	"runtime/pprof"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tmpim/nfp"
	"github.com/tmpim/nfp/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Input      string `arg:"" default:"input_test" help:"Directory of images to convert."`
	Output     string `arg:"" default:"output_test" help:"Directory frames and previews are written to."`
	Width      int    `default:"26" help:"Grid width in characters."`
	Height     int    `default:"20" help:"Grid height in characters."`
	Scale      int    `default:"8" help:"Preview pixels per cell."`
	CPUProfile string `name:"cpuprofile" help:"Write a CPU profile to this file."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli, kong.Name("qualitytest"))

	log := logger.NewConsole(logger.LevelInfo).WithComponent("qualitytest")

	if cli.CPUProfile != "" {
		f, err := os.Create(cli.CPUProfile)
		if err != nil {
			log.Error("%s", err)
			os.Exit(1)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			log.Error("%s", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	g := nfp.Geometry{Width: cli.Width, Height: cli.Height}
	if err := g.Validate(); err != nil {
		log.Error("%s", err)
		kctx.PrintUsage(true)
		os.Exit(1)
	}

	entries, err := os.ReadDir(cli.Input)
	if err != nil {
		log.Error("%s", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cli.Output, 0755); err != nil {
		log.Error("%s", err)
		os.Exit(1)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && nfp.IsStillImage(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var total float64
	for _, name := range names {
		start := time.Now()
		delta, err := convert(filepath.Join(cli.Input, name), cli.Output, g, cli.Scale)
		if err != nil {
			log.Error("Failed to process %s: %s", name, err)
			continue
		}
		total += delta

		log.Info("%s: mean error %.2f", name, delta)
		log.Debug("%s took %s", name, time.Since(start))
	}

	if len(names) > 0 {
		log.Info("%s: mean error %.2f", cli.Input, total/float64(len(names)))
	}
}

func convert(path, outDir string, g nfp.Geometry, scale int) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return 0, err
	}

	raw := nfp.RawFrame{Index: 1, Pix: nfp.ImageToRGB(img, g)}
	enc, err := nfp.EncodeFrame(raw, g, nfp.DefaultPalette)
	if err != nil {
		return 0, err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if err := os.WriteFile(filepath.Join(outDir, base+".nfp"), enc.Bytes(), 0644); err != nil {
		return 0, err
	}

	if err := nfp.WritePreview(filepath.Join(outDir, base+".png"), enc, nfp.DefaultPalette, scale); err != nil {
		return 0, err
	}

	return nfp.MeanDeltaE(raw, enc, nfp.DefaultPalette), nil
}
