package render

import (
	"math"
	"math/rand/v2"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDragMovePansAndTilts(t *testing.T) {
	tr := NewTracker()
	tr.DragStart(100, 100)
	tr.DragMove(120, 110)

	o := tr.Orientation()
	if !approxEqual(o.Yaw, 10) || !approxEqual(o.Pitch, 3) {
		t.Fatalf("after move orientation = %+v, want yaw 10 pitch 3", o)
	}

	// Second move is measured from the previous pointer position.
	tr.DragMove(100, 300)
	o = tr.Orientation()
	if !approxEqual(o.Yaw, 0) {
		t.Errorf("yaw = %v, want 0", o.Yaw)
	}
	if o.Pitch != MaxPitch {
		t.Errorf("pitch = %v, want clamp at %v", o.Pitch, MaxPitch)
	}

	want := math.Hypot(20, 10) + math.Hypot(20, 190)
	if got := tr.Drag().Travel; !approxEqual(got, want) {
		t.Errorf("travel = %v, want %v", got, want)
	}
	tr.DragStart(0, 0)
	if got := tr.Drag().Travel; got != 0 {
		t.Errorf("travel = %v after restart, want 0", got)
	}
}

func TestDragWithoutMovementLeavesOrientation(t *testing.T) {
	tr := NewTracker()
	tr.Scroll(40)
	before, version := tr.Snapshot()

	tr.DragStart(12, 34)
	tr.DragEnd()

	after, afterVersion := tr.Snapshot()
	if after != before {
		t.Errorf("orientation changed: %+v -> %+v", before, after)
	}
	if afterVersion != version {
		t.Errorf("version changed: %d -> %d", version, afterVersion)
	}
	if tr.Drag().Active {
		t.Error("drag still active after DragEnd")
	}
}

func TestDragMoveWithoutSessionIsNoop(t *testing.T) {
	tr := NewTracker()
	tr.DragMove(500, 500)
	if o := tr.Orientation(); o != (Orientation{}) {
		t.Errorf("orientation = %+v, want zero", o)
	}

	tr.DragStart(0, 0)
	tr.DragEnd()
	tr.DragEnd()
	tr.DragMove(50, 50)
	if o := tr.Orientation(); o != (Orientation{}) {
		t.Errorf("orientation after ended drag = %+v, want zero", o)
	}
}

func TestDragStartOverwritesAnchor(t *testing.T) {
	tr := NewTracker()
	tr.DragStart(0, 0)
	tr.DragStart(200, 0)
	tr.DragMove(210, 0)

	if o := tr.Orientation(); !approxEqual(o.Yaw, 5) {
		t.Errorf("yaw = %v, want 5", o.Yaw)
	}
}

func TestScrollNeverChangesYaw(t *testing.T) {
	tr := NewTracker()
	tr.DragStart(0, 0)
	tr.DragMove(30, 0)

	tr.Scroll(100)
	o := tr.Orientation()
	if !approxEqual(o.Yaw, 15) {
		t.Errorf("yaw = %v, want 15", o.Yaw)
	}
	if !approxEqual(o.Pitch, 5) {
		t.Errorf("pitch = %v, want 5", o.Pitch)
	}

	tr.Scroll(-1e6)
	if o := tr.Orientation(); o.Pitch != MinPitch || !approxEqual(o.Yaw, 15) {
		t.Errorf("orientation = %+v, want pitch %v yaw 15", o, MinPitch)
	}
}

func TestVersionBumpsOnlyOnChange(t *testing.T) {
	tr := NewTracker()
	tr.Scroll(1e6)
	_, v1 := tr.Snapshot()
	if v1 != 1 {
		t.Fatalf("version = %d, want 1", v1)
	}

	// Already clamped: nothing moves.
	tr.Scroll(10)
	if _, v := tr.Snapshot(); v != v1 {
		t.Errorf("version = %d after clamped scroll, want %d", v, v1)
	}

	tr.DragStart(0, 0)
	tr.DragMove(2, 0)
	if _, v := tr.Snapshot(); v != v1+1 {
		t.Errorf("version = %d after pan, want %d", v, v1+1)
	}
}

func TestPitchStaysClamped(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	tr := NewTracker()

	for i := 0; i < 5000; i++ {
		switch rng.IntN(4) {
		case 0:
			tr.DragStart(rng.Float64()*4000-2000, rng.Float64()*4000-2000)
		case 1:
			tr.DragMove(rng.Float64()*4000-2000, rng.Float64()*4000-2000)
		case 2:
			tr.DragEnd()
		case 3:
			tr.Scroll(rng.NormFloat64() * 2000)
		}

		if p := tr.Orientation().Pitch; p < MinPitch || p > MaxPitch {
			t.Fatalf("step %d: pitch %v outside [%v, %v]", i, p, MinPitch, MaxPitch)
		}
	}
}
