package availability

import (
	"testing"
	"time"
)

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
}

func TestSlots_FullDayOneBooking(t *testing.T) {
	d := day(t)
	window := DefaultWorkingWindow.ForDay(d, time.UTC)

	// One confirmed appointment at 10:00-11:00.
	busy := []Interval{
		{Start: d.Add(10 * time.Hour), End: d.Add(11 * time.Hour)},
	}

	slots := Slots(window, 60*time.Minute, busy)
	if len(slots) != 9 {
		t.Fatalf("expected 9 slots, got %d", len(slots))
	}

	wantHours := []int{8, 9, 11, 12, 13, 14, 15, 16, 17}
	for i, s := range slots {
		want := d.Add(time.Duration(wantHours[i]) * time.Hour)
		if !s.Start.Equal(want) {
			t.Fatalf("slot %d: expected start %s, got %s", i, want.Format(time.RFC3339), s.Start.Format(time.RFC3339))
		}
		if !s.End.Equal(want.Add(60 * time.Minute)) {
			t.Fatalf("slot %d: expected 60m slot, got end %s", i, s.End.Format(time.RFC3339))
		}
	}
}

func TestSlots_AbuttingBookingDoesNotBlock(t *testing.T) {
	d := day(t)
	window := Interval{Start: d.Add(9 * time.Hour), End: d.Add(11 * time.Hour)}

	// Busy 10:00-11:00. The 09:00-10:00 candidate ends exactly where the
	// booking starts; half-open intervals keep it available.
	busy := []Interval{{Start: d.Add(10 * time.Hour), End: d.Add(11 * time.Hour)}}

	slots := Slots(window, 60*time.Minute, busy)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Start.Equal(d.Add(9 * time.Hour)) {
		t.Fatalf("expected 09:00 slot, got %s", slots[0].Start.Format(time.RFC3339))
	}
}

func TestSlots_ExcludesCandidatePastWindowEnd(t *testing.T) {
	d := day(t)
	window := Interval{Start: d.Add(8 * time.Hour), End: d.Add(10*time.Hour + 30*time.Minute)}

	slots := Slots(window, 60*time.Minute, nil)
	// 08:00 and 09:00 fit; 10:00 would end at 11:00, past the window.
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
}

func TestSlots_BusyIntervalsUseOwnDuration(t *testing.T) {
	d := day(t)
	window := Interval{Start: d.Add(8 * time.Hour), End: d.Add(12 * time.Hour)}

	// A 90-minute booking at 09:00 blocks both the 09:00 and 10:00
	// one-hour candidates.
	busy := []Interval{{Start: d.Add(9 * time.Hour), End: d.Add(10*time.Hour + 30*time.Minute)}}

	slots := Slots(window, 60*time.Minute, busy)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(d.Add(8 * time.Hour)) || !slots[1].Start.Equal(d.Add(11 * time.Hour)) {
		t.Fatalf("expected 08:00 and 11:00, got %s and %s",
			slots[0].Start.Format(time.RFC3339), slots[1].Start.Format(time.RFC3339))
	}
}

func TestSlots_FractionalHourStep(t *testing.T) {
	d := day(t)
	window := Interval{Start: d.Add(8 * time.Hour), End: d.Add(10 * time.Hour)}

	slots := Slots(window, 45*time.Minute, nil)
	// Candidates step by the service duration: 08:00 and 08:45 fit,
	// 09:30 would end at 10:15.
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[1].Start.Equal(d.Add(8*time.Hour + 45*time.Minute)) {
		t.Fatalf("expected 08:45 second slot, got %s", slots[1].Start.Format(time.RFC3339))
	}
}

func TestSlots_Idempotent(t *testing.T) {
	d := day(t)
	window := DefaultWorkingWindow.ForDay(d, time.UTC)
	busy := []Interval{
		{Start: d.Add(10 * time.Hour), End: d.Add(11 * time.Hour)},
		{Start: d.Add(14 * time.Hour), End: d.Add(15*time.Hour + 30*time.Minute)},
	}

	first := Slots(window, 60*time.Minute, busy)
	second := Slots(window, 60*time.Minute, busy)
	if len(first) != len(second) {
		t.Fatalf("expected identical results, got %d and %d slots", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("slot %d differs between calls", i)
		}
	}
}

func TestSlots_NonPositiveDuration(t *testing.T) {
	d := day(t)
	window := DefaultWorkingWindow.ForDay(d, time.UTC)

	if got := Slots(window, 0, nil); got != nil {
		t.Fatalf("expected nil for zero duration, got %v", got)
	}
	if got := Slots(window, -30*time.Minute, nil); got != nil {
		t.Fatalf("expected nil for negative duration, got %v", got)
	}
}

func TestWorkingWindow_ForDay(t *testing.T) {
	d := time.Date(2026, 3, 12, 15, 42, 0, 0, time.UTC) // time-of-day is ignored
	win := DefaultWorkingWindow.ForDay(d, time.UTC)
	if win.Start.Hour() != 8 || win.End.Hour() != 18 {
		t.Fatalf("expected 08:00-18:00, got %s-%s", win.Start, win.End)
	}
	if win.Start.Day() != 12 || win.End.Day() != 12 {
		t.Fatalf("window left the calendar day: %s-%s", win.Start, win.End)
	}
}
