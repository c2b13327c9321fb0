package tiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	xtiff "golang.org/x/image/tiff"
)

func grayPattern(x, y int) uint8 {
	return uint8(x*16 + y)
}

func writeEncoded(t *testing.T, img image.Image, opts *xtiff.Options) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pano.tif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := xtiff.Encode(f, img, opts); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestLoadStripedTiffGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 9, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 9; x++ {
			src.SetGray(x, y, color.Gray{Y: grayPattern(x, y)})
		}
	}
	path := writeEncoded(t, src, &xtiff.Options{Compression: xtiff.Uncompressed})

	img, err := LoadStripedTiff(path)
	if err != nil {
		t.Fatalf("LoadStripedTiff: %v", err)
	}
	defer img.Close()

	if b := img.Bounds(); b.Dx() != 9 || b.Dy() != 5 {
		t.Fatalf("bounds = %v, want 9x5", b)
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 9; x++ {
			got := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if got.Y != grayPattern(x, y) {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got.Y, grayPattern(x, y))
			}
		}
	}
}

func TestLoadStripedTiffRejects(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	gray := image.NewGray(image.Rect(0, 0, 4, 4))

	cases := []struct {
		name string
		path string
		want error
	}{
		{"rgba", writeEncoded(t, rgba, &xtiff.Options{Compression: xtiff.Uncompressed}), ErrUnsupported},
		{"deflate", writeEncoded(t, gray, &xtiff.Options{Compression: xtiff.Deflate}), ErrUnsupported},
		{"not a tiff", writeFile(t, []byte("\x89PNG\r\n\x1a\nnot really")), ErrInvalidTiffHeader},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			img, err := LoadStripedTiff(c.path)
			if err == nil {
				img.Close()
				t.Fatal("expected an error")
			}
			if !errors.Is(err, c.want) {
				t.Errorf("err = %v, want %v", err, c.want)
			}
		})
	}
}

func TestLoadTiledTiff(t *testing.T) {
	for _, deflate := range []bool{false, true} {
		name := "raw"
		if deflate {
			name = "deflate"
		}
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, buildTiledGray(t, 5, 3, 4, 2, deflate))

			img, err := LoadTiledTiff(path)
			if err != nil {
				t.Fatalf("LoadTiledTiff: %v", err)
			}
			defer img.Close()

			if h := img.Header(); h.TileWidth != 4 || h.TileHeight != 2 || len(h.TileOffsets) != 4 {
				t.Fatalf("header = %+v", h)
			}
			for y := 0; y < 3; y++ {
				for x := 0; x < 5; x++ {
					got := img.At(x, y).(color.Gray)
					if got.Y != grayPattern(x, y) {
						t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got.Y, grayPattern(x, y))
					}
				}
			}
			// Second pass is served from the tile cache.
			if got := img.At(4, 2).(color.Gray); got.Y != grayPattern(4, 2) {
				t.Errorf("cached pixel = %d", got.Y)
			}
		})
	}
}

func TestStripedLoaderRejectsTiled(t *testing.T) {
	path := writeFile(t, buildTiledGray(t, 5, 3, 4, 2, false))
	if _, err := LoadStripedTiff(path); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.tif")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// buildTiledGray assembles a little-endian 8-bit grayscale TIFF with
// tw x th tiles filled from grayPattern.
func buildTiledGray(t *testing.T, w, h, tw, th int, deflate bool) []byte {
	t.Helper()
	across := (w + tw - 1) / tw
	down := (h + th - 1) / th
	n := across * down

	var tiles [][]byte
	for ty := 0; ty < down; ty++ {
		for tx := 0; tx < across; tx++ {
			raw := make([]byte, tw*th)
			for y := 0; y < th; y++ {
				for x := 0; x < tw; x++ {
					raw[y*tw+x] = grayPattern(tx*tw+x, ty*th+y)
				}
			}
			if deflate {
				var z bytes.Buffer
				zw := zlib.NewWriter(&z)
				if _, err := zw.Write(raw); err != nil {
					t.Fatal(err)
				}
				if err := zw.Close(); err != nil {
					t.Fatal(err)
				}
				raw = z.Bytes()
			}
			tiles = append(tiles, raw)
		}
	}

	const numEntries = 10
	ifdEnd := 8 + 2 + numEntries*12 + 4
	offsetsAt := ifdEnd
	countsAt := offsetsAt + 4*n
	dataAt := countsAt + 4*n

	compressionTag := uint32(1)
	if deflate {
		compressionTag = 8
	}

	le := binary.LittleEndian
	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(42))
	binary.Write(&buf, le, uint32(8))
	binary.Write(&buf, le, uint16(numEntries))

	entry := func(tag, typ uint16, count, value uint32) {
		binary.Write(&buf, le, tag)
		binary.Write(&buf, le, typ)
		binary.Write(&buf, le, count)
		binary.Write(&buf, le, value)
	}
	entry(TagImageWidth, typeLong, 1, uint32(w))
	entry(TagImageLength, typeLong, 1, uint32(h))
	entry(TagBitsPerSample, typeShort, 1, 8)
	entry(TagCompression, typeShort, 1, compressionTag)
	entry(TagPhotometricInterpretation, typeShort, 1, 1)
	entry(TagSamplesPerPixel, typeShort, 1, 1)
	entry(TagTileWidth, typeLong, 1, uint32(tw))
	entry(TagTileLength, typeLong, 1, uint32(th))
	entry(TagTileOffsets, typeLong, uint32(n), uint32(offsetsAt))
	entry(TagTileByteCounts, typeLong, uint32(n), uint32(countsAt))
	binary.Write(&buf, le, uint32(0)) // no next IFD

	offset := dataAt
	for _, tile := range tiles {
		binary.Write(&buf, le, uint32(offset))
		offset += len(tile)
	}
	for _, tile := range tiles {
		binary.Write(&buf, le, uint32(len(tile)))
	}
	for _, tile := range tiles {
		buf.Write(tile)
	}
	return buf.Bytes()
}

// buildStripedGray assembles a little-endian 8-bit grayscale TIFF with
// rows rows per strip. patch may rewrite the strip tables before they are
// written.
func buildStripedGray(t *testing.T, w, h, rows int, patch func(offsets, counts []uint32)) []byte {
	t.Helper()
	n := (h + rows - 1) / rows

	var strips [][]byte
	for s := 0; s < n; s++ {
		var raw []byte
		for y := s * rows; y < min(h, (s+1)*rows); y++ {
			for x := 0; x < w; x++ {
				raw = append(raw, grayPattern(x, y))
			}
		}
		strips = append(strips, raw)
	}

	const numEntries = 9
	ifdEnd := 8 + 2 + numEntries*12 + 4
	offsetsAt := ifdEnd
	countsAt := offsetsAt + 4*n
	dataAt := countsAt + 4*n

	offsets := make([]uint32, n)
	counts := make([]uint32, n)
	pos := dataAt
	for i, s := range strips {
		offsets[i] = uint32(pos)
		counts[i] = uint32(len(s))
		pos += len(s)
	}
	if patch != nil {
		patch(offsets, counts)
	}

	le := binary.LittleEndian
	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(42))
	binary.Write(&buf, le, uint32(8))
	binary.Write(&buf, le, uint16(numEntries))

	entry := func(tag, typ uint16, count, value uint32) {
		binary.Write(&buf, le, tag)
		binary.Write(&buf, le, typ)
		binary.Write(&buf, le, count)
		binary.Write(&buf, le, value)
	}
	// A single strip keeps its offset and count inline.
	offsetsValue, countsValue := uint32(offsetsAt), uint32(countsAt)
	if n == 1 {
		offsetsValue, countsValue = offsets[0], counts[0]
	}
	entry(TagImageWidth, typeLong, 1, uint32(w))
	entry(TagImageLength, typeLong, 1, uint32(h))
	entry(TagBitsPerSample, typeShort, 1, 8)
	entry(TagCompression, typeShort, 1, 1)
	entry(TagPhotometricInterpretation, typeShort, 1, 1)
	entry(TagStripOffsets, typeLong, uint32(n), offsetsValue)
	entry(TagSamplesPerPixel, typeShort, 1, 1)
	entry(TagRowsPerStrip, typeLong, 1, uint32(rows))
	entry(TagStripByteCounts, typeLong, uint32(n), countsValue)
	binary.Write(&buf, le, uint32(0)) // no next IFD

	// Table slots are written even for a single strip to keep dataAt fixed.
	binary.Write(&buf, le, offsets)
	binary.Write(&buf, le, counts)
	for _, s := range strips {
		buf.Write(s)
	}
	return buf.Bytes()
}

func TestLoadStripedTiffMultipleStrips(t *testing.T) {
	for _, rows := range []int{1, 2, 5} {
		path := writeFile(t, buildStripedGray(t, 4, 5, rows, nil))
		img, err := LoadStripedTiff(path)
		if err != nil {
			t.Fatalf("rows %d: LoadStripedTiff: %v", rows, err)
		}
		for y := 0; y < 5; y++ {
			for x := 0; x < 4; x++ {
				if got := img.At(x, y).(color.Gray); got.Y != grayPattern(x, y) {
					t.Fatalf("rows %d: pixel (%d,%d) = %d, want %d", rows, x, y, got.Y, grayPattern(x, y))
				}
			}
		}
		img.Close()
	}
}

func TestLoadStripedTiffRejectsCorruptStrips(t *testing.T) {
	cases := []struct {
		name  string
		patch func(offsets, counts []uint32)
	}{
		{"offset past end", func(offsets, _ []uint32) { offsets[0] = 4096 }},
		{"count past end", func(_, counts []uint32) { counts[1] = 1 << 20 }},
		{"short strip", func(_, counts []uint32) { counts[0]-- }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeFile(t, buildStripedGray(t, 4, 2, 1, c.patch))
			img, err := LoadStripedTiff(path)
			if err == nil {
				img.Close()
				t.Fatal("corrupt TIFF loaded")
			}
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestLoadTiledTiffRejectsCorruptTiles(t *testing.T) {
	// 5x3 image in 4x2 tiles: four tile offsets right after the IFD.
	const offsetsAt = 8 + 2 + 10*12 + 4

	pastEnd := buildTiledGray(t, 5, 3, 4, 2, false)
	binary.LittleEndian.PutUint32(pastEnd[offsetsAt:], 4096)

	full := buildTiledGray(t, 5, 3, 4, 2, false)
	truncated := full[:len(full)-1]

	for name, data := range map[string][]byte{"offset past end": pastEnd, "truncated": truncated} {
		t.Run(name, func(t *testing.T) {
			img, err := LoadTiledTiff(writeFile(t, data))
			if err == nil {
				img.Close()
				t.Fatal("corrupt TIFF loaded")
			}
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestTiledTiffBadDeflateTileIsBlack(t *testing.T) {
	const dataAt = 8 + 2 + 10*12 + 4 + 4*4 + 4*4
	data := buildTiledGray(t, 5, 3, 4, 2, true)
	data[dataAt] = 0 // break the zlib header of tile 0

	img, err := LoadTiledTiff(writeFile(t, data))
	if err != nil {
		t.Fatalf("LoadTiledTiff: %v", err)
	}
	defer img.Close()

	if got := img.At(1, 1).(color.Gray); got.Y != 0 {
		t.Errorf("pixel in broken tile = %d, want 0", got.Y)
	}
	if got := img.At(4, 0).(color.Gray); got.Y != grayPattern(4, 0) {
		t.Errorf("pixel in intact tile = %d, want %d", got.Y, grayPattern(4, 0))
	}
}

func TestReadHeader(t *testing.T) {
	data := buildStripedGray(t, 7, 3, 2, nil)
	h, err := ReadHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Width != 7 || h.Height != 3 || h.RowsPerStrip != 2 || len(h.StripOffsets) != 2 {
		t.Errorf("header = %+v", h)
	}
}
