// Command snapshot renders a yaw sweep of a panorama to image files
// without opening a window.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/echoflaresat/panocam/render"
	"github.com/echoflaresat/panocam/texture"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
)

type sweep struct {
	frames        int
	startYaw      float64
	step          float64
	pitch         float64
	width, height int
}

// orientation returns the view of frame i.
func (s sweep) orientation(i int) render.Orientation {
	return render.Orientation{
		Yaw:   s.startYaw + float64(i)*s.step,
		Pitch: mgl64.Clamp(s.pitch, render.MinPitch, render.MaxPitch),
	}
}

func main() {
	var (
		imagePath = flag.String("image", "", "Panorama image path")
		envPath   = flag.String("envelope", "", "Robot panoramic_image message (JSON)")
		outDir    = flag.String("out", "snapshots", "Output directory")
		format    = flag.String("format", "png", "Output format: png or jpg")
		size      = flag.String("size", "800x600", "Frame size as <width>x<height>")
		frames    = flag.Int("frames", 8, "Number of frames in the sweep")
		startYaw  = flag.Float64("yaw", 0, "Yaw of the first frame in degrees")
		step      = flag.Float64("step", 45, "Yaw step between frames in degrees")
		pitch     = flag.Float64("pitch", 0, "Pitch of every frame in degrees")
		workers   = flag.Int("workers", runtime.GOMAXPROCS(0), "Frames rendered in parallel")
	)
	flag.Parse()

	w, h, err := parseSize(*size)
	if err != nil {
		log.Fatal(err)
	}
	if err := checkFormat(*format); err != nil {
		log.Fatal(err)
	}
	img, err := loadPanorama(*imagePath, *envPath)
	if err != nil {
		log.Fatal(err)
	}
	if c, ok := img.(io.Closer); ok {
		defer c.Close()
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Could not create %s: %v", *outDir, err)
	}

	s := sweep{frames: *frames, startYaw: *startYaw, step: *step, pitch: *pitch, width: w, height: h}
	if err := renderSweep(context.Background(), render.NewTexture(img), s, *workers, *outDir, *format); err != nil {
		log.Fatal(err)
	}
}

func loadPanorama(imagePath, envPath string) (image.Image, error) {
	switch {
	case envPath != "":
		env, err := texture.OpenEnvelope(envPath)
		if err != nil {
			return nil, err
		}
		return env.Decode()
	case imagePath != "":
		return texture.Load(imagePath)
	default:
		return nil, fmt.Errorf("one of -image or -envelope is required")
	}
}

// renderSweep renders every frame of s into dir, at most workers at a time.
func renderSweep(ctx context.Context, tex render.Texture, s sweep, workers int, dir, format string) error {
	if tex.Empty() {
		return fmt.Errorf("panorama has no pixels")
	}
	if err := checkFormat(format); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for i := range s.frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o := s.orientation(i)
			frame := render.RenderFrame(tex, o, s.width, s.height, nil)
			path := filepath.Join(dir, frameName(i, o, format))
			if err := save(path, frame); err != nil {
				return err
			}
			slog.Info("rendered frame", "path", path, "yaw", o.NormalizedYaw(), "pitch", o.Pitch)
			return nil
		})
	}
	return g.Wait()
}

func checkFormat(format string) error {
	switch strings.ToLower(format) {
	case "png", "jpg", "jpeg":
		return nil
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

func frameName(i int, o render.Orientation, format string) string {
	return fmt.Sprintf("frame_%03d_yaw%03.0f.%s", i, o.NormalizedYaw(), format)
}

func parseSize(s string) (int, int, error) {
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid size format: %s (expected WxH)", s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width: %w", err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height: %w", err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size: %s", s)
	}
	return w, h, nil
}

func save(output string, img image.Image) error {
	outFile, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", output, err)
	}
	defer outFile.Close()

	ext := strings.ToLower(filepath.Ext(output))
	switch ext {
	case ".png":
		if err := png.Encode(outFile, img); err != nil {
			return fmt.Errorf("failed to encode PNG: %w", err)
		}
	case ".jpg", ".jpeg":
		opts := jpeg.Options{Quality: 95}
		if err := jpeg.Encode(outFile, img, &opts); err != nil {
			return fmt.Errorf("failed to encode JPEG: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", ext)
	}
	return outFile.Close()
}
