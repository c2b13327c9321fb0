package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/echoflaresat/panocam/screen"
	"github.com/echoflaresat/panocam/texture"
	"github.com/echoflaresat/panocam/viewer"
	"github.com/hajimehoshi/ebiten/v2"
)

type config struct {
	image, envelope *string
	width, height   *int
	capture         *int64
	winW, winH      *int
	lazy            *bool
	verbose         *bool
	showHelp        *bool
}

func defineFlags() config {
	return config{
		image:    flag.String("image", "", "Panorama image path (JPEG, PNG or TIFF)"),
		envelope: flag.String("envelope", "", "Robot panoramic_image message (JSON)"),

		width:   flag.Int("width", 0, "Override the reported width in pixels"),
		height:  flag.Int("height", 0, "Override the reported height in pixels"),
		capture: flag.Int64("capture", 0, "Override the capture time (Unix milliseconds)"),

		winW: flag.Int("win-width", 1280, "Window width in pixels"),
		winH: flag.Int("win-height", 720, "Window height in pixels"),
		lazy: flag.Bool("lazy", false, "Redraw only when the view changes"),

		verbose:  flag.Bool("v", false, "Verbose logging"),
		showHelp: flag.Bool("h", false, "Show this help message"),
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Panocam - Panoramic Image Viewer

Drag to look around, scroll to tilt, Escape or a click outside the
panorama closes the viewer.

Usage:
  %[1]s -image pano.jpg
  %[1]s -envelope message.json

`, os.Args[0])

	printGroup("Source", []string{"image", "envelope"})
	printGroup("Metadata", []string{"width", "height", "capture"})
	printGroup("Display", []string{"win-width", "win-height", "lazy"})
	printGroup("Misc", []string{"v", "h"})
}

func printGroup(title string, keys []string) {
	fmt.Fprintf(os.Stderr, "%s:\n", title)
	for _, name := range keys {
		if f := flag.Lookup(name); f != nil {
			fmt.Fprintf(os.Stderr, "  -%-11s %s (default %q)\n", f.Name, f.Usage, f.DefValue)
		}
	}
	fmt.Fprintln(os.Stderr)
}

func main() {
	cfg := defineFlags()
	flag.Usage = printHelp
	flag.Parse()

	if *cfg.showHelp {
		printHelp()
		return
	}

	level := slog.LevelInfo
	if *cfg.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	source, meta, err := openSource(*cfg.image, *cfg.envelope)
	if err != nil {
		log.Fatal(err)
	}
	if *cfg.width > 0 {
		meta.Width = *cfg.width
	}
	if *cfg.height > 0 {
		meta.Height = *cfg.height
	}
	if *cfg.capture > 0 {
		meta.CaptureTime = time.UnixMilli(*cfg.capture)
	}

	var game *screen.Game
	queue := viewer.NewFrameQueue()
	surface := screen.NewSurface()
	v := viewer.New(viewer.Config{
		Source:         source,
		Metadata:       meta,
		OnClose:        func() { game.RequestClose() },
		RedrawOnChange: *cfg.lazy,
	}, surface, queue)
	defer v.Teardown()
	game = screen.NewGame(v, queue, surface)

	ebiten.SetWindowSize(*cfg.winW, *cfg.winH)
	ebiten.SetWindowTitle("Panocam - " + meta.Resolution())
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}

// openSource builds the loader and display metadata for the chosen input.
func openSource(imagePath, envelopePath string) (viewer.Loader, texture.Metadata, error) {
	switch {
	case imagePath != "" && envelopePath != "":
		return nil, texture.Metadata{}, fmt.Errorf("-image and -envelope are mutually exclusive")
	case envelopePath != "":
		env, err := texture.OpenEnvelope(envelopePath)
		if err != nil {
			return nil, texture.Metadata{}, err
		}
		return texture.EnvelopeLoader(env), env.Metadata(), nil
	case imagePath != "":
		meta, err := texture.Probe(imagePath)
		if err != nil {
			slog.Warn("could not probe panorama metadata", "path", imagePath, "error", err)
		}
		return texture.FileLoader(imagePath), meta, nil
	default:
		return nil, texture.Metadata{}, fmt.Errorf("one of -image or -envelope is required")
	}
}
