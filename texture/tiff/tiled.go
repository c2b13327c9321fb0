package tiff

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"

	"github.com/echoflaresat/panocam/texture/tiff/compression"
	"github.com/echoflaresat/panocam/texture/tiff/photometric"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/exp/mmap"
)

// tileCacheSize is the number of decompressed tiles kept per image. A
// 256x256 RGB tile is 192 KiB.
const tileCacheSize = 200

type tiledTiff struct {
	header      TiffHeader
	reader      *mmap.ReaderAt
	cache       *lru.Cache // tileIndex -> []byte
	tilesAcross int
}

// LoadTiledTiff maps a tile-organised TIFF, uncompressed or Deflate.
func LoadTiledTiff(path string) (Image, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	header, err := ReadHeader(reader)
	if err == nil {
		err = checkTiled(header, reader.Len())
	}
	if err != nil {
		reader.Close()
		return nil, err
	}

	cache, err := lru.New(tileCacheSize)
	if err != nil {
		reader.Close()
		return nil, err
	}

	return &tiledTiff{
		header:      header,
		reader:      reader,
		cache:       cache,
		tilesAcross: (header.Width + header.TileWidth - 1) / header.TileWidth,
	}, nil
}

// checkTiled validates h against a file of size bytes. Deflate tiles are
// only bounds-checked; their length is known after decompression.
func checkTiled(h TiffHeader, size int) error {
	if len(h.TileOffsets) == 0 || h.TileWidth <= 0 || h.TileHeight <= 0 {
		return fmt.Errorf("%w: no tiles", ErrUnsupported)
	}
	if len(h.TileOffsets) != len(h.TileByteCounts) {
		return fmt.Errorf("%w: %d tile offsets, %d byte counts", ErrCorrupt, len(h.TileOffsets), len(h.TileByteCounts))
	}
	if h.Compression != compression.None && h.Compression != compression.Deflate {
		return fmt.Errorf("%w: compression %d", ErrUnsupported, h.Compression)
	}
	if err := checkPixelFormat(h); err != nil {
		return err
	}

	across := (h.Width + h.TileWidth - 1) / h.TileWidth
	down := (h.Height + h.TileHeight - 1) / h.TileHeight
	var want func(int) int
	if h.Compression == compression.None {
		tileBytes := h.TileWidth * h.TileHeight * h.SamplesPerPixel
		want = func(int) int { return tileBytes }
	}
	return checkSegments("tile", h.TileOffsets, h.TileByteCounts, across*down, size, want)
}

func (t *tiledTiff) Header() TiffHeader {
	return t.header
}

func (t *tiledTiff) Close() error {
	t.cache.Purge()
	return t.reader.Close()
}

func (t *tiledTiff) ColorModel() color.Model {
	if t.header.Photometric == photometric.BlackIsZero {
		return color.GrayModel
	}
	return color.RGBAModel
}

func (t *tiledTiff) Bounds() image.Rectangle {
	return image.Rect(0, 0, t.header.Width, t.header.Height)
}

func (t *tiledTiff) At(x, y int) color.Color {
	h := t.header
	if !image.Pt(x, y).In(t.Bounds()) {
		return t.ColorModel().Convert(color.Transparent)
	}

	tileIndex := (y/h.TileHeight)*t.tilesAcross + x/h.TileWidth

	var tile []byte
	if val, ok := t.cache.Get(tileIndex); ok {
		tile = val.([]byte)
	} else {
		var err error
		tile, err = t.loadTile(tileIndex)
		if err != nil {
			slog.Warn("unreadable TIFF tile, drawing it black", "tile", tileIndex, "error", err)
		}
		t.cache.Add(tileIndex, tile)
	}

	localX := x % h.TileWidth
	localY := y % h.TileHeight
	rowStride := h.TileWidth * h.SamplesPerPixel
	pixOffset := localY*rowStride + localX*h.SamplesPerPixel

	if h.Photometric == photometric.BlackIsZero {
		return color.Gray{Y: tile[pixOffset]}
	}
	return color.RGBA{
		R: tile[pixOffset],
		G: tile[pixOffset+1],
		B: tile[pixOffset+2],
		A: 255,
	}
}

// loadTile returns the pixels of tile index. The result always holds a
// full tile; on error the missing part is zero.
func (t *tiledTiff) loadTile(index int) ([]byte, error) {
	h := t.header
	tileBytes := h.TileWidth * h.TileHeight * h.SamplesPerPixel
	offset := h.TileOffsets[index]
	byteCount := h.TileByteCounts[index]

	buf := make([]byte, byteCount)
	if _, err := t.reader.ReadAt(buf, int64(offset)); err != nil {
		return make([]byte, tileBytes), fmt.Errorf("read tile %d: %w", index, err)
	}
	if h.Compression != compression.Deflate {
		return buf, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(buf))
	if err != nil {
		return make([]byte, tileBytes), fmt.Errorf("inflate tile %d: %w", index, err)
	}
	defer r.Close()
	tile, err := io.ReadAll(io.LimitReader(r, int64(tileBytes)))
	if err == nil && len(tile) < tileBytes {
		err = fmt.Errorf("inflate tile %d: %d of %d bytes", index, len(tile), tileBytes)
	}
	if len(tile) < tileBytes {
		tile = append(tile, make([]byte, tileBytes-len(tile))...)
	}
	return tile, err
}
