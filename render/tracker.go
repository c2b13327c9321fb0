package render

import (
	"sync"

	"github.com/echoflaresat/panocam/vectors"
)

// Sensitivities are fixed policy: they change how the view feels, not
// what is sampled.
const (
	YawSensitivity    = 0.5  // degrees per pixel of horizontal drag
	PitchSensitivity  = 0.3  // degrees per pixel of vertical drag
	ScrollSensitivity = 0.05 // degrees per wheel unit
)

// DragSession is an in-progress pointer drag.
type DragSession struct {
	Active bool
	Last   vectors.Vec2
	Travel float64 // pointer distance covered since DragStart
}

// Tracker turns pointer drags and wheel deltas into an Orientation.
// It is safe for concurrent use; every change that moves the orientation
// bumps a version so readers can tell whether anything happened.
type Tracker struct {
	mu          sync.RWMutex
	orientation Orientation
	drag        DragSession
	version     uint64
}

// NewTracker returns a tracker looking at yaw 0, pitch 0.
func NewTracker() *Tracker {
	return &Tracker{}
}

// DragStart begins a drag at (x, y). Starting again while active just
// moves the anchor.
func (t *Tracker) DragStart(x, y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drag = DragSession{Active: true, Last: vectors.Vec2{X: x, Y: y}}
}

// DragMove pans and tilts by the distance from the last pointer position.
// It does nothing unless a drag is active.
func (t *Tracker) DragMove(x, y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.drag.Active {
		return
	}

	pos := vectors.Vec2{X: x, Y: y}
	delta := pos.Sub(t.drag.Last)
	t.drag.Travel += vectors.Distance(pos, t.drag.Last)
	t.drag.Last = pos

	t.set(t.orientation.
		pan(delta.X * YawSensitivity).
		tilt(delta.Y * PitchSensitivity))
}

// DragEnd deactivates the current drag, if any.
func (t *Tracker) DragEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drag.Active = false
}

// Scroll tilts by a wheel delta. It never changes yaw and works with or
// without an active drag.
func (t *Tracker) Scroll(deltaY float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set(t.orientation.tilt(deltaY * ScrollSensitivity))
}

// Orientation returns the current orientation.
func (t *Tracker) Orientation() Orientation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.orientation
}

// Snapshot returns the orientation together with its version.
func (t *Tracker) Snapshot() (Orientation, uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.orientation, t.version
}

// Drag returns a copy of the current drag session.
func (t *Tracker) Drag() DragSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.drag
}

// set must be called with t.mu held.
func (t *Tracker) set(o Orientation) {
	if o == t.orientation {
		return
	}
	t.orientation = o
	t.version++
}
