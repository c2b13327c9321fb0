package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MinPitch and MaxPitch bound the vertical look angle in degrees.
	MinPitch = -45.0
	MaxPitch = 45.0
)

// Orientation is the viewing direction inside a panorama, in degrees.
// Yaw accumulates without bound; Pitch always lies in [MinPitch, MaxPitch].
type Orientation struct {
	Yaw   float64
	Pitch float64
}

// NormalizedYaw returns Yaw folded into [0, 360).
func (o Orientation) NormalizedYaw() float64 {
	yaw := math.Mod(o.Yaw, 360)
	if yaw < 0 {
		yaw += 360
	}
	// -1e-15 + 360 rounds up to 360.
	if yaw >= 360 {
		yaw = 0
	}
	return yaw
}

// tilt returns o with pitch moved by deltaDeg and clamped.
func (o Orientation) tilt(deltaDeg float64) Orientation {
	o.Pitch = mgl64.Clamp(o.Pitch+deltaDeg, MinPitch, MaxPitch)
	return o
}

// pan returns o with yaw moved by deltaDeg.
func (o Orientation) pan(deltaDeg float64) Orientation {
	o.Yaw += deltaDeg
	return o
}
