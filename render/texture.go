package render

import (
	"image"
)

// Texture is an immutable decoded panorama.
type Texture struct {
	Width  int
	Height int
	img    image.Image
}

// NewTexture wraps a decoded image. The image must not be modified
// afterwards.
func NewTexture(img image.Image) Texture {
	b := img.Bounds()
	return Texture{
		Width:  b.Dx(),
		Height: b.Dy(),
		img:    img,
	}
}

// Image returns the underlying image.
func (t Texture) Image() image.Image {
	return t.img
}

// Empty reports whether the texture holds no pixels.
func (t Texture) Empty() bool {
	return t.img == nil || t.Width <= 0 || t.Height <= 0
}
