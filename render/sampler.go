package render

import (
	"fmt"
	"image"
	"iter"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Crop window policy, as fractions of the source image. These constants are
// replicated exactly; they do not derive from a camera model.
const (
	CropWidthFraction  = 0.4 // horizontal share of the panorama visible at once
	CropHeightFraction = 0.6
	PitchBandFraction  = 0.6 // pitch in [-90, 90] maps onto this share of the height
	MaxOffsetFraction  = 0.3 // upper bound of the vertical read origin
)

// Rect is an axis-aligned rectangle with float64 coordinates.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f,%.2f %.2fx%.2f)", r.X, r.Y, r.W, r.H)
}

// Right returns X + W.
func (r Rect) Right() float64 {
	return r.X + r.W
}

// SourcePixels returns the integer pixel rectangle covering r, offset by
// the origin of bounds and clipped to bounds.
func (r Rect) SourcePixels(bounds image.Rectangle) image.Rectangle {
	px := image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.Right())), int(math.Ceil(r.Y+r.H)),
	)
	return px.Add(bounds.Min).Intersect(bounds)
}

// DestPixels rounds every edge of r to the nearest pixel. Rectangles that
// share an edge in float space share it after rounding too, so adjacent
// segments never leave a gap or overlap.
func (r Rect) DestPixels() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.Right())), int(math.Round(r.Y+r.H)),
	)
}

// Blit copies Src of the source image onto Dst of the output, stretching
// non-uniformly when the aspect ratios differ.
type Blit struct {
	Src Rect
	Dst Rect
}

// Plan describes how one frame is sampled from the source image. Crop is the
// logical crop window and may extend past the right edge of the source; the
// blits returned by Blits never do.
type Plan struct {
	Crop Rect

	srcWidth float64
	dstW     float64
	dstH     float64
}

// PlanFrame computes the crop window for orientation o over a source image
// of srcW x srcH pixels, drawn onto an output of dstW x dstH. It has no side
// effects.
func PlanFrame(o Orientation, srcW, srcH int, dstW, dstH float64) Plan {
	w := float64(srcW)
	h := float64(srcH)

	sourceX := o.NormalizedYaw() / 360 * w
	sourceY := mgl64.Clamp((o.Pitch+90)/180*h*PitchBandFraction, 0, h*MaxOffsetFraction)

	return Plan{
		Crop: Rect{
			X: sourceX,
			Y: sourceY,
			W: w * CropWidthFraction,
			H: h * CropHeightFraction,
		},
		srcWidth: w,
		dstW:     dstW,
		dstH:     dstH,
	}
}

// Wrapped reports whether the crop window runs past the right edge of the
// source and has to continue from its left edge.
func (p Plan) Wrapped() bool {
	return p.Crop.Right() > p.srcWidth
}

// Len returns the number of blits in the plan: 1 or 2.
func (p Plan) Len() int {
	if p.Wrapped() {
		return 2
	}
	return 1
}

// Dest returns the full output rectangle.
func (p Plan) Dest() Rect {
	return Rect{W: p.dstW, H: p.dstH}
}

// Blits yields the blits of the plan in left-to-right destination order.
// The crop window is narrower than the source, so at most one wrap occurs.
func (p Plan) Blits() iter.Seq[Blit] {
	return func(yield func(Blit) bool) {
		c := p.Crop
		if !p.Wrapped() {
			yield(Blit{Src: c, Dst: p.Dest()})
			return
		}

		firstW := p.srcWidth - c.X
		secondW := c.W - firstW
		split := firstW / c.W * p.dstW

		first := Blit{
			Src: Rect{X: c.X, Y: c.Y, W: firstW, H: c.H},
			Dst: Rect{X: 0, Y: 0, W: split, H: p.dstH},
		}
		if !yield(first) {
			return
		}
		yield(Blit{
			Src: Rect{X: 0, Y: c.Y, W: secondW, H: c.H},
			Dst: Rect{X: split, Y: 0, W: p.dstW - split, H: p.dstH},
		})
	}
}
