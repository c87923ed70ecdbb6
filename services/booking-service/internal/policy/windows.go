// Package policy holds the conflict-window rules used to decide whether two
// appointments are mutually exclusive. Three distinct rules coexist on
// purpose and must not be silently unified:
//
//   - creation uses a symmetric +/-1h buffer around the requested start,
//   - slot search uses exact half-open interval overlap (package availability),
//   - technician assignment uses a coarse +/-2h buffer matched against other
//     appointments' start times only.
package policy

import "time"

// Window is a symmetric conflict buffer around a reference timestamp.
type Window struct {
	Buffer time.Duration
}

// Around returns the inclusive range [t-Buffer, t+Buffer].
func (w Window) Around(t time.Time) (time.Time, time.Time) {
	return t.Add(-w.Buffer), t.Add(w.Buffer)
}

// CreationBuffer is the conflict window applied when a new appointment is
// requested: any active appointment starting within the buffer blocks the
// request.
func CreationBuffer(minutes int) Window {
	if minutes <= 0 {
		minutes = 60
	}
	return Window{Buffer: time.Duration(minutes) * time.Minute}
}

// AssignmentWindow is the conflict window applied when picking a technician.
// It is deliberately wider and coarser than the slot-search overlap test: a
// technician is considered committed if any of their active appointments
// starts inside the window, regardless of either appointment's duration.
func AssignmentWindow(minutes int) Window {
	if minutes <= 0 {
		minutes = 120
	}
	return Window{Buffer: time.Duration(minutes) * time.Minute}
}
