package tiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/echoflaresat/panocam/texture/tiff/photometric"
)

type TiffHeader struct {
	ByteOrder       binary.ByteOrder
	Width, Height   int
	SamplesPerPixel int
	BitsPerSample   []int
	Photometric     int
	Compression     int
	PlanarConfig    int

	// Strip layout
	RowsPerStrip    int
	StripOffsets    []int
	StripByteCounts []int

	// Tile layout
	TileWidth      int
	TileHeight     int
	TileOffsets    []int
	TileByteCounts []int
}

// https://www.loc.gov/preservation/digital/formats/content/tiff_tags.shtml
const (
	TagImageWidth                = 256
	TagImageLength               = 257
	TagBitsPerSample             = 258
	TagCompression               = 259
	TagPhotometricInterpretation = 262
	TagStripOffsets              = 273
	TagSamplesPerPixel           = 277
	TagRowsPerStrip              = 278
	TagStripByteCounts           = 279
	TagPlanarConfiguration       = 284
	TagTileWidth                 = 322
	TagTileLength                = 323
	TagTileOffsets               = 324
	TagTileByteCounts            = 325
)

// Field types that can appear in the value slot of an IFD entry.
const (
	typeShort = 3
	typeLong  = 4
)

var (
	// ErrInvalidTiffHeader means the data is not a TIFF file at all.
	ErrInvalidTiffHeader = errors.New("invalid TIFF header")
	// ErrUnsupported means the file is a TIFF these readers cannot map
	// directly; a full decoder may still handle it.
	ErrUnsupported = errors.New("unsupported TIFF layout")
	// ErrCorrupt means the strips or tiles point outside the file or hold
	// fewer bytes than the layout needs.
	ErrCorrupt = errors.New("corrupt TIFF")
)

// ReadHeader parses the first IFD. It reads only the header and the tag
// arrays, never pixel data.
func ReadHeader(reader io.ReaderAt) (TiffHeader, error) {
	read := func(offset int64, size int) ([]byte, error) {
		buf := make([]byte, size)
		_, err := reader.ReadAt(buf, offset)
		return buf, err
	}

	header, err := read(0, 8)
	if err != nil {
		return TiffHeader{}, fmt.Errorf("%w: %v", ErrInvalidTiffHeader, err)
	}

	var bo binary.ByteOrder
	switch string(header[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return TiffHeader{}, ErrInvalidTiffHeader
	}
	if bo.Uint16(header[2:4]) != 42 {
		return TiffHeader{}, ErrInvalidTiffHeader
	}
	ifdOffset := int64(bo.Uint32(header[4:8]))

	entryCountRaw, err := read(ifdOffset, 2)
	if err != nil {
		return TiffHeader{}, fmt.Errorf("read IFD: %w", err)
	}
	numEntries := int(bo.Uint16(entryCountRaw))
	entriesRaw, err := read(ifdOffset+2, numEntries*12)
	if err != nil {
		return TiffHeader{}, fmt.Errorf("read IFD entries: %w", err)
	}

	hdr := TiffHeader{
		ByteOrder:       bo,
		SamplesPerPixel: 1, // TIFF default
		Photometric:     -1,
		Compression:     1, // TIFF default
		PlanarConfig:    1,
	}

	for i := 0; i < numEntries; i++ {
		entry := entriesRaw[i*12 : (i+1)*12]
		tag := bo.Uint16(entry[0:2])
		typ := bo.Uint16(entry[2:4])
		count := bo.Uint32(entry[4:8])

		// A single SHORT sits left-justified in the 4-byte value slot.
		scalar := int(bo.Uint32(entry[8:12]))
		if typ == typeShort {
			scalar = int(bo.Uint16(entry[8:10]))
		}

		readArray := func() ([]int, error) {
			size := 4
			if typ == typeShort {
				size = 2
			}
			if int(count)*size <= 4 {
				out := make([]int, count)
				for i := range out {
					out[i] = readUint(bo, entry[8+i*size:], size)
				}
				return out, nil
			}
			buf, err := read(int64(bo.Uint32(entry[8:12])), int(count)*size)
			if err != nil {
				return nil, err
			}
			out := make([]int, count)
			for i := range out {
				out[i] = readUint(bo, buf[i*size:], size)
			}
			return out, nil
		}

		switch tag {
		case TagImageWidth:
			hdr.Width = scalar
		case TagImageLength:
			hdr.Height = scalar
		case TagBitsPerSample:
			hdr.BitsPerSample, err = readArray()
		case TagCompression:
			hdr.Compression = scalar
		case TagPhotometricInterpretation:
			hdr.Photometric = scalar
		case TagStripOffsets:
			hdr.StripOffsets, err = readArray()
		case TagSamplesPerPixel:
			hdr.SamplesPerPixel = scalar
		case TagRowsPerStrip:
			hdr.RowsPerStrip = scalar
		case TagStripByteCounts:
			hdr.StripByteCounts, err = readArray()
		case TagPlanarConfiguration:
			hdr.PlanarConfig = scalar
		case TagTileWidth:
			hdr.TileWidth = scalar
		case TagTileLength:
			hdr.TileHeight = scalar
		case TagTileOffsets:
			hdr.TileOffsets, err = readArray()
		case TagTileByteCounts:
			hdr.TileByteCounts, err = readArray()
		}
		if err != nil {
			return TiffHeader{}, fmt.Errorf("read tag %d: %w", tag, err)
		}
	}

	if hdr.Width <= 0 || hdr.Height <= 0 {
		return TiffHeader{}, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidTiffHeader, hdr.Width, hdr.Height)
	}
	if hdr.RowsPerStrip <= 0 || hdr.RowsPerStrip > hdr.Height {
		hdr.RowsPerStrip = hdr.Height
	}
	return hdr, nil
}

func readUint(bo binary.ByteOrder, b []byte, size int) int {
	if size == 2 {
		return int(bo.Uint16(b))
	}
	return int(bo.Uint32(b))
}

// checkSegments verifies that the first need strips or tiles exist, that
// every segment lies inside a file of size bytes and, when want is not
// nil, that segment i holds at least want(i) bytes.
func checkSegments(kind string, offsets, counts []int, need, size int, want func(i int) int) error {
	if len(offsets) < need {
		return fmt.Errorf("%w: %d %ss, layout needs %d", ErrCorrupt, len(offsets), kind, need)
	}
	for i, off := range offsets {
		n := counts[i]
		if off < 0 || n < 0 || off+n > size {
			return fmt.Errorf("%w: %s %d spans [%d, %d) in a %d-byte file", ErrCorrupt, kind, i, off, off+n, size)
		}
		if want == nil || i >= need {
			continue
		}
		if w := want(i); n < w {
			return fmt.Errorf("%w: %s %d has %d bytes, want %d", ErrCorrupt, kind, i, n, w)
		}
	}
	return nil
}

// checkPixelFormat accepts 8-bit RGB and 8-bit grayscale, chunky only.
func checkPixelFormat(h TiffHeader) error {
	if h.PlanarConfig != 1 {
		return fmt.Errorf("%w: planar configuration %d", ErrUnsupported, h.PlanarConfig)
	}
	if len(h.BitsPerSample) == 0 || h.BitsPerSample[0] != 8 {
		return fmt.Errorf("%w: bits per sample %v", ErrUnsupported, h.BitsPerSample)
	}
	switch h.Photometric {
	case photometric.BlackIsZero:
		if h.SamplesPerPixel != 1 {
			return fmt.Errorf("%w: grayscale with %d samples", ErrUnsupported, h.SamplesPerPixel)
		}
	case photometric.RGB:
		if h.SamplesPerPixel != 3 {
			return fmt.Errorf("%w: RGB with %d samples", ErrUnsupported, h.SamplesPerPixel)
		}
	default:
		return fmt.Errorf("%w: photometric %d", ErrUnsupported, h.Photometric)
	}
	return nil
}
