package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is a bookable candidate within the working window. Only available
// slots are ever produced; occupied candidates are filtered out, not flagged.
type Slot struct {
	Start time.Time
	End   time.Time
}

// WorkingWindow is the bookable range of a calendar day, as wall-clock
// offsets from midnight. The window is independent of holidays and
// per-technician schedules.
type WorkingWindow struct {
	Open  time.Duration
	Close time.Duration
}

// DefaultWorkingWindow is the workshop's 08:00-18:00 day.
var DefaultWorkingWindow = WorkingWindow{Open: 8 * time.Hour, Close: 18 * time.Hour}

// ForDay resolves the window against a calendar day in the given location.
func (w WorkingWindow) ForDay(day time.Time, loc *time.Location) Interval {
	if loc == nil {
		loc = time.UTC
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return Interval{Start: midnight.Add(w.Open), End: midnight.Add(w.Close)}
}

// Slots returns the candidate slots of length duration inside window that do
// not overlap any busy interval, in chronological order. Candidate starts
// step from window start in increments of duration; a candidate whose slot
// would extend past the window end is excluded.
//
// Busy intervals are half-open, so a slot abutting an existing appointment
// (slot end == busy start, or slot start == busy end) is available. The
// result depends only on the arguments: identical inputs produce identical
// output. Callers are expected to reject non-positive durations earlier;
// Slots returns nil for them.
func Slots(window Interval, duration time.Duration, busy []Interval) []Slot {
	if duration <= 0 {
		return nil
	}
	if !window.End.After(window.Start) {
		return nil
	}

	var slots []Slot
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(duration) {
		end := t.Add(duration)
		if !overlapsAny(t, end, busy) {
			slots = append(slots, Slot{Start: t, End: end})
		}
	}
	return slots
}

// Overlaps reports whether the half-open intervals [startA, endA) and
// [startB, endB) intersect.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
