package texture

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/echoflaresat/panocam/texture/tiff"
	"github.com/rwcarlsen/goexif/exif"
)

// CaptureTimeLayout is how capture times are shown to the operator.
const CaptureTimeLayout = "2006-01-02 15:04:05"

// Metadata holds display-only facts about a panorama.
type Metadata struct {
	Width       int
	Height      int
	CaptureTime time.Time
}

// Resolution formats the pixel size, e.g. "1920 x 480".
func (m Metadata) Resolution() string {
	return fmt.Sprintf("%d x %d", m.Width, m.Height)
}

// Captured formats the capture time in local time, or "unknown".
func (m Metadata) Captured() string {
	if m.CaptureTime.IsZero() {
		return "unknown"
	}
	return m.CaptureTime.Local().Format(CaptureTimeLayout)
}

// Probe reads the dimensions of the image at path without decoding it and
// takes the capture time from EXIF, falling back to the file's
// modification time.
func Probe(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	md, err := probeSize(f, isTiff(path))
	if err != nil {
		return Metadata{}, fmt.Errorf("probe %s: %w", path, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Metadata{}, fmt.Errorf("seeking file for exif: %w", err)
	}
	if x, err := exif.Decode(f); err == nil {
		if t, err := x.DateTime(); err == nil {
			md.CaptureTime = t
			return md, nil
		}
	} else {
		slog.Debug("no EXIF data", "path", path, "error", err)
	}

	info, err := f.Stat()
	if err != nil {
		return Metadata{}, fmt.Errorf("getting file stats: %w", err)
	}
	md.CaptureTime = info.ModTime()
	return md, nil
}

// probeSize reads the pixel size from the TIFF IFD or the codec header,
// never decoding pixels.
func probeSize(f *os.File, tiffExt bool) (Metadata, error) {
	if tiffExt {
		h, err := tiff.ReadHeader(f)
		if err == nil {
			return Metadata{Width: h.Width, Height: h.Height}, nil
		}
		if !errors.Is(err, tiff.ErrInvalidTiffHeader) {
			return Metadata{}, err
		}
		// Wrong extension; let the codecs sniff it.
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Metadata{}, fmt.Errorf("seeking file: %w", err)
	}
	config, _, err := image.DecodeConfig(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("decoding image config: %w", err)
	}
	return Metadata{Width: config.Width, Height: config.Height}, nil
}
