package viewer

import (
	"image"
	"sync"

	"github.com/echoflaresat/panocam/render"
	"golang.org/x/image/draw"
)

// Surface is where the viewer draws. The backing store keeps its pixels
// between ticks and is scaled to the display by the host.
type Surface interface {
	// DisplaySize reports the size the panorama is shown at. ok is false
	// while the surface cannot be drawn to.
	DisplaySize() (w, h int, ok bool)
	BackingSize() (w, h int)
	ResizeBacking(w, h int)
	// Upload prepares a decoded image for blitting and returns the handle
	// passed to Blit and Release.
	Upload(img image.Image) image.Image
	Blit(src image.Image, b render.Blit)
	Release(src image.Image)
}

// SoftwareSurface draws into an in-memory RGBA image.
type SoftwareSurface struct {
	Scaler draw.Scaler

	mu        sync.Mutex
	display   image.Point
	available bool
	backing   *image.RGBA
	blits     int
	released  int
}

// NewSoftwareSurface returns an available surface displayed at w x h. The
// backing is empty until the first ResizeBacking.
func NewSoftwareSurface(w, h int) *SoftwareSurface {
	return &SoftwareSurface{
		display:   image.Pt(w, h),
		available: true,
		backing:   image.NewRGBA(image.Rectangle{}),
	}
}

// SetDisplaySize changes the display size, as a window resize would.
func (s *SoftwareSurface) SetDisplaySize(w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.display = image.Pt(w, h)
}

// SetAvailable marks the surface drawable or not.
func (s *SoftwareSurface) SetAvailable(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = ok
}

func (s *SoftwareSurface) DisplaySize() (int, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display.X, s.display.Y, s.available
}

func (s *SoftwareSurface) BackingSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.backing.Bounds()
	return b.Dx(), b.Dy()
}

func (s *SoftwareSurface) ResizeBacking(w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backing = image.NewRGBA(image.Rect(0, 0, w, h))
}

func (s *SoftwareSurface) Upload(img image.Image) image.Image {
	return img
}

func (s *SoftwareSurface) Blit(src image.Image, b render.Blit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	render.DrawBlit(s.backing, src, b, s.Scaler)
	s.blits++
}

func (s *SoftwareSurface) Release(image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
}

// Frame returns a copy of the backing store.
func (s *SoftwareSurface) Frame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.backing.Bounds())
	copy(out.Pix, s.backing.Pix)
	return out
}

// Blits returns the number of blits drawn so far.
func (s *SoftwareSurface) Blits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blits
}

// Released returns how many images have been released.
func (s *SoftwareSurface) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
