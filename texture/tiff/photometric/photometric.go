// Package photometric lists TIFF PhotometricInterpretation tag values.
package photometric

const (
	WhiteIsZero = 0
	BlackIsZero = 1
	RGB         = 2
)
