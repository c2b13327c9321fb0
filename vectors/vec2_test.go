package vectors

import "testing"

func TestVec2Arithmetic(t *testing.T) {
	a := Vec2{X: 3, Y: 4}
	b := Vec2{X: 1, Y: -2}

	if got := a.Sub(b); got != (Vec2{X: 2, Y: 6}) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Norm(); got != 5 {
		t.Errorf("Norm = %v, want 5", got)
	}
	if got := Distance(a, Vec2{}); got != 5 {
		t.Errorf("Distance = %v, want 5", got)
	}
	if got := Distance(b, b); got != 0 {
		t.Errorf("Distance to self = %v", got)
	}
}
