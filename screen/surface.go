package screen

import (
	"image"

	"github.com/echoflaresat/panocam/render"
	"github.com/hajimehoshi/ebiten/v2"
)

// Surface draws the panorama into an offscreen image sized to the panel.
// It must only be used from the game goroutine.
type Surface struct {
	panel   image.Rectangle
	backing *ebiten.Image
	stale   []*ebiten.Image
	op      ebiten.DrawImageOptions
}

func NewSurface() *Surface {
	return &Surface{}
}

// SetPanel sets where the panorama is shown, in screen pixels. It reports
// whether the panel changed.
func (s *Surface) SetPanel(r image.Rectangle) bool {
	if r == s.panel {
		return false
	}
	s.panel = r
	return true
}

func (s *Surface) Panel() image.Rectangle {
	return s.panel
}

func (s *Surface) DisplaySize() (int, int, bool) {
	if s.panel.Empty() {
		return 0, 0, false
	}
	return s.panel.Dx(), s.panel.Dy(), true
}

func (s *Surface) BackingSize() (int, int) {
	if s.backing == nil {
		return 0, 0
	}
	b := s.backing.Bounds()
	return b.Dx(), b.Dy()
}

func (s *Surface) ResizeBacking(w, h int) {
	if s.backing != nil {
		s.stale = append(s.stale, s.backing)
	}
	s.backing = ebiten.NewImage(w, h)
}

func (s *Surface) Upload(img image.Image) image.Image {
	return ebiten.NewImageFromImage(img)
}

func (s *Surface) Blit(src image.Image, b render.Blit) {
	e, ok := src.(*ebiten.Image)
	if !ok || s.backing == nil {
		return
	}
	sr := b.Src.SourcePixels(e.Bounds())
	if sr.Empty() {
		return
	}

	s.op.GeoM.Reset()
	s.op.GeoM.Scale(b.Dst.W/float64(sr.Dx()), b.Dst.H/float64(sr.Dy()))
	s.op.GeoM.Translate(b.Dst.X, b.Dst.Y)
	s.op.Filter = ebiten.FilterLinear
	s.backing.DrawImage(e.SubImage(sr).(*ebiten.Image), &s.op)
}

func (s *Surface) Release(src image.Image) {
	if e, ok := src.(*ebiten.Image); ok {
		s.stale = append(s.stale, e)
	}
}

// Flush deallocates images replaced or released during the previous frame.
// Call it at the start of Update so Draw never sees a freed image.
func (s *Surface) Flush() {
	for _, img := range s.stale {
		img.Deallocate()
	}
	s.stale = s.stale[:0]
}

// DrawTo composites the backing onto screen at the panel origin.
func (s *Surface) DrawTo(screen *ebiten.Image) {
	if s.backing == nil {
		return
	}
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(float64(s.panel.Min.X), float64(s.panel.Min.Y))
	screen.DrawImage(s.backing, &op)
}
