// Package texture loads panoramas from disk or from robot envelopes.
package texture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	etiff "github.com/echoflaresat/tiff"

	"github.com/echoflaresat/panocam/texture/tiff"

	_ "image/jpeg" // register JPEG format with image.Decode
	_ "image/png"  // register PNG format with image.Decode
)

// Load decodes the panorama at path. Plain TIFFs are memory-mapped and read
// lazily; other TIFFs go through a full decoder; everything else uses the
// registered image codecs. Callers should Close the result when it
// implements io.Closer.
func Load(path string) (image.Image, error) {
	if isTiff(path) {
		img, err := loadTiff(path)
		if err == nil {
			return img, nil
		}
		if !errors.Is(err, tiff.ErrInvalidTiffHeader) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		// Wrong extension; let the codecs sniff it.
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func isTiff(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return true
	}
	return false
}

func loadTiff(path string) (image.Image, error) {
	img, err := tiff.LoadStripedTiff(path)
	if err == nil {
		return img, nil
	}
	if !errors.Is(err, tiff.ErrUnsupported) {
		return nil, err
	}
	slog.Debug("striped TIFF reader declined", "path", path, "error", err)

	img, err = tiff.LoadTiledTiff(path)
	if err == nil {
		return img, nil
	}
	if !errors.Is(err, tiff.ErrUnsupported) {
		return nil, err
	}
	slog.Debug("tiled TIFF reader declined", "path", path, "error", err)

	// Compressed strips and other layouts need a full decode.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return etiff.Decode(f)
}

// FileLoader returns a loader for the panorama at path, suitable for
// viewer.Config.Source.
func FileLoader(path string) func(context.Context) (image.Image, error) {
	return func(ctx context.Context) (image.Image, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Load(path)
	}
}
