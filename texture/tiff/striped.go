package tiff

import (
	"fmt"
	"image"
	"image/color"

	"github.com/echoflaresat/panocam/texture/tiff/compression"
	"github.com/echoflaresat/panocam/texture/tiff/photometric"
	"golang.org/x/exp/mmap"
)

// Image is a TIFF mapped into memory. Pixels are read on demand; Close
// unmaps the file.
type Image interface {
	image.Image
	Header() TiffHeader
	Close() error
}

type stripedTiff struct {
	header TiffHeader
	reader *mmap.ReaderAt
}

// LoadStripedTiff maps an uncompressed, strip-organised TIFF.
func LoadStripedTiff(path string) (Image, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	header, err := ReadHeader(reader)
	if err == nil {
		err = checkStriped(header, reader.Len())
	}
	if err != nil {
		reader.Close()
		return nil, err
	}

	return &stripedTiff{header: header, reader: reader}, nil
}

// checkStriped validates h against a file of size bytes.
func checkStriped(h TiffHeader, size int) error {
	if len(h.StripOffsets) == 0 {
		return fmt.Errorf("%w: no strips", ErrUnsupported)
	}
	if len(h.StripOffsets) != len(h.StripByteCounts) {
		return fmt.Errorf("%w: %d strip offsets, %d byte counts", ErrCorrupt, len(h.StripOffsets), len(h.StripByteCounts))
	}
	if h.Compression != compression.None {
		return fmt.Errorf("%w: compression %d", ErrUnsupported, h.Compression)
	}
	if err := checkPixelFormat(h); err != nil {
		return err
	}

	rowBytes := h.Width * h.SamplesPerPixel
	strips := (h.Height + h.RowsPerStrip - 1) / h.RowsPerStrip
	return checkSegments("strip", h.StripOffsets, h.StripByteCounts, strips, size, func(i int) int {
		rows := min(h.RowsPerStrip, h.Height-i*h.RowsPerStrip)
		return rows * rowBytes
	})
}

func (t *stripedTiff) Header() TiffHeader {
	return t.header
}

func (t *stripedTiff) Close() error {
	return t.reader.Close()
}

func (t *stripedTiff) ColorModel() color.Model {
	if t.header.Photometric == photometric.BlackIsZero {
		return color.GrayModel
	}
	return color.RGBAModel
}

func (t *stripedTiff) Bounds() image.Rectangle {
	return image.Rect(0, 0, t.header.Width, t.header.Height)
}

func (t *stripedTiff) At(x, y int) color.Color {
	h := t.header
	if !image.Pt(x, y).In(t.Bounds()) {
		return t.ColorModel().Convert(color.Transparent)
	}

	strip := y / h.RowsPerStrip
	localY := y % h.RowsPerStrip
	idx := h.StripOffsets[strip] + (localY*h.Width+x)*h.SamplesPerPixel

	var buf [3]byte
	px := buf[:h.SamplesPerPixel]
	if _, err := t.reader.ReadAt(px, int64(idx)); err != nil {
		panic(fmt.Sprintf("could not read pixel at (%d,%d): %v", x, y, err))
	}

	if h.Photometric == photometric.BlackIsZero {
		return color.Gray{Y: px[0]}
	}
	return color.RGBA{R: px[0], G: px[1], B: px[2], A: 255}
}
