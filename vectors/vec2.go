package vectors

import "math"

// Vec2 is a 2D vector with float64 components, used for pointer positions
// in surface pixels.
type Vec2 struct {
	X, Y float64
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

// Norm returns the Euclidean length ||v||.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

func Distance(v1, v2 Vec2) float64 {
	return v1.Sub(v2).Norm()
}
