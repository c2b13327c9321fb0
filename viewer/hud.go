package viewer

import "fmt"

// HUD returns the overlay lines shown next to the panorama.
func (v *Viewer) HUD() []string {
	lines := []string{
		"Resolution: " + v.meta.Resolution(),
		"Captured:   " + v.meta.Captured(),
	}

	switch {
	case v.Closed():
		return append(lines, "closed")
	case v.State() == StateIdle:
		return append(lines, "loading...")
	}

	o := v.Orientation()
	return append(lines, fmt.Sprintf("Yaw %6.1f  Pitch %5.1f", o.NormalizedYaw(), o.Pitch))
}
