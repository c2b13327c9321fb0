package render

import (
	"image"

	"golang.org/x/image/draw"
)

// DefaultScaler is used when a nil scaler is passed in.
var DefaultScaler draw.Scaler = draw.ApproxBiLinear

// Compose executes p, scaling each blit of src into dst. Destination
// rectangles are relative to dst's origin.
func Compose(dst draw.Image, src image.Image, p Plan, s draw.Scaler) {
	for b := range p.Blits() {
		DrawBlit(dst, src, b, s)
	}
}

// DrawBlit scales b.Src of src onto b.Dst of dst. Empty rectangles after
// clipping are skipped.
func DrawBlit(dst draw.Image, src image.Image, b Blit, s draw.Scaler) {
	if s == nil {
		s = DefaultScaler
	}
	sr := b.Src.SourcePixels(src.Bounds())
	dr := b.Dst.DestPixels().Add(dst.Bounds().Min).Intersect(dst.Bounds())
	if sr.Empty() || dr.Empty() {
		return
	}
	s.Scale(dst, dr, src, sr, draw.Src, nil)
}

// RenderFrame samples tex at orientation o into a new width x height image.
func RenderFrame(tex Texture, o Orientation, width, height int, s draw.Scaler) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	p := PlanFrame(o, tex.Width, tex.Height, float64(width), float64(height))
	Compose(out, tex.Image(), p, s)
	return out
}
