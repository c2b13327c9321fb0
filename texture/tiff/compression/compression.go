// Package compression lists the TIFF Compression tag values the readers
// understand.
package compression

const (
	None    = 1
	LZW     = 5
	JPEG    = 7
	Deflate = 8
)
