// Package viewer drives an interactive panorama: it owns the decode,
// the frame loop and the input handlers, and draws through a Surface.
package viewer

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/echoflaresat/panocam/render"
	"github.com/echoflaresat/panocam/texture"
	"github.com/google/uuid"
)

var errNoSource = errors.New("no panorama source")

// Loader decodes the panorama. It should return early when ctx is done.
type Loader func(ctx context.Context) (image.Image, error)

// Config is the construction input of a Viewer.
type Config struct {
	Source   Loader
	Metadata texture.Metadata
	// OnClose is called when the user asks to dismiss the viewer. The
	// owner is expected to call Teardown.
	OnClose func()
	// RedrawOnChange skips frames whose orientation and backing size are
	// unchanged since the last draw.
	RedrawOnChange bool
	Logger         *slog.Logger
}

type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Viewer is safe for concurrent use.
type Viewer struct {
	id      uuid.UUID
	log     *slog.Logger
	meta    texture.Metadata
	onClose func()
	lazy    bool

	tracker *render.Tracker
	surface Surface
	sched   Scheduler

	cancel  context.CancelFunc
	decoded chan struct{}

	mu          sync.Mutex
	state       State
	closed      bool
	img         image.Image // as decoded
	src         image.Image // as uploaded
	srcW, srcH  int
	pending     FrameID
	frames      uint64
	lastVersion uint64
	lastBacking image.Point
	dirty       bool
}

// New creates a viewer in StateIdle and starts decoding cfg.Source in the
// background. Nothing is drawn until the decode succeeds.
func New(cfg Config, surface Surface, sched Scheduler) *Viewer {
	id := uuid.New()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &Viewer{
		id:      id,
		log:     logger.With("viewer", id.String()),
		meta:    cfg.Metadata,
		onClose: cfg.OnClose,
		lazy:    cfg.RedrawOnChange,
		tracker: render.NewTracker(),
		surface: surface,
		sched:   sched,
		cancel:  cancel,
		decoded: make(chan struct{}),
	}
	v.log.Debug("viewer created", "resolution", cfg.Metadata.Resolution())
	go v.decode(ctx, cfg.Source)
	return v
}

func (v *Viewer) decode(ctx context.Context, load Loader) {
	defer close(v.decoded)

	var (
		img image.Image
		err = errNoSource
	)
	if load != nil {
		img, err = load(ctx)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		closeImage(img)
		v.log.Debug("decode finished after teardown")
		return
	}
	if err != nil {
		v.log.Warn("panorama decode failed", "error", err)
		return
	}
	// Held here so Teardown can close it before the first frame runs.
	v.img = img
	v.pending = v.sched.RequestFrame(v.start)
}

// start runs on the first frame after a successful decode.
func (v *Viewer) start() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = 0
	if v.closed || v.img == nil {
		return
	}

	img := v.img
	b := img.Bounds()
	v.src = v.surface.Upload(img)
	v.srcW, v.srcH = b.Dx(), b.Dy()
	v.state = StateRunning
	v.log.Debug("viewer running", "width", v.srcW, "height", v.srcH)

	v.draw()
	v.pending = v.sched.RequestFrame(v.tick)
}

func (v *Viewer) tick() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = 0
	if v.closed || v.state != StateRunning {
		return
	}
	v.draw()
	v.pending = v.sched.RequestFrame(v.tick)
}

// draw must be called with v.mu held.
func (v *Viewer) draw() {
	w, h, ok := v.surface.DisplaySize()
	if !ok || w <= 0 || h <= 0 {
		return
	}
	if bw, bh := v.surface.BackingSize(); bw != w || bh != h {
		v.surface.ResizeBacking(w, h)
		v.log.Debug("backing resized", "width", w, "height", h)
	}

	o, version := v.tracker.Snapshot()
	backing := image.Pt(w, h)
	if v.lazy && v.frames > 0 && !v.dirty && version == v.lastVersion && backing == v.lastBacking {
		return
	}

	plan := render.PlanFrame(o, v.srcW, v.srcH, float64(w), float64(h))
	for b := range plan.Blits() {
		v.surface.Blit(v.src, b)
	}
	v.frames++
	v.lastVersion = version
	v.lastBacking = backing
	v.dirty = false
}

// Teardown stops the frame loop, cancels a running decode, ends any drag
// and releases the image. Later calls do nothing.
func (v *Viewer) Teardown() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.cancel()
	if v.pending != 0 {
		v.sched.CancelFrame(v.pending)
		v.pending = 0
	}
	v.tracker.DragEnd()
	if v.src != nil {
		v.surface.Release(v.src)
	}
	closeImage(v.img)
	v.img, v.src = nil, nil
	v.state = StateIdle
	v.log.Debug("viewer torn down", "frames", v.frames)
}

func closeImage(img image.Image) {
	if c, ok := img.(io.Closer); ok {
		c.Close()
	}
}

func (v *Viewer) detached() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// PointerDown starts a drag at (x, y) in panel coordinates.
func (v *Viewer) PointerDown(x, y float64) {
	if v.detached() {
		return
	}
	v.tracker.DragStart(x, y)
}

func (v *Viewer) PointerMove(x, y float64) {
	if v.detached() {
		return
	}
	v.tracker.DragMove(x, y)
}

func (v *Viewer) PointerUp() {
	if v.detached() {
		return
	}
	if d := v.tracker.Drag(); d.Active {
		v.log.Debug("drag ended", "travel", d.Travel, "orientation", v.tracker.Orientation())
	}
	v.tracker.DragEnd()
}

// PointerLeave ends the drag when the pointer leaves the window.
func (v *Viewer) PointerLeave() {
	v.PointerUp()
}

// Wheel tilts by a vertical wheel delta in pixels.
func (v *Viewer) Wheel(deltaY float64) {
	if v.detached() {
		return
	}
	v.tracker.Scroll(deltaY)
}

// Resize forces a redraw on the next tick.
func (v *Viewer) Resize() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.dirty = true
}

// Dismiss reports a close request to the owner through Config.OnClose.
func (v *Viewer) Dismiss() {
	if v.detached() || v.onClose == nil {
		return
	}
	v.log.Debug("dismiss requested")
	v.onClose()
}

// Decoded returns a channel closed once the decode has finished, whether
// it succeeded or not.
func (v *Viewer) Decoded() <-chan struct{} {
	return v.decoded
}

func (v *Viewer) ID() uuid.UUID {
	return v.id
}

func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Viewer) Closed() bool {
	return v.detached()
}

func (v *Viewer) Orientation() render.Orientation {
	return v.tracker.Orientation()
}

// Dragging reports whether a pointer drag is in progress.
func (v *Viewer) Dragging() bool {
	return v.tracker.Drag().Active
}

// Frames returns the number of frames drawn.
func (v *Viewer) Frames() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

func (v *Viewer) Metadata() texture.Metadata {
	return v.meta
}
