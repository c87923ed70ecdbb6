package policy

import (
	"testing"
	"time"
)

func TestWindow_Around(t *testing.T) {
	ref := time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)

	from, to := CreationBuffer(0).Around(ref)
	if !from.Equal(ref.Add(-time.Hour)) || !to.Equal(ref.Add(time.Hour)) {
		t.Fatalf("creation buffer: expected +/-1h, got %s..%s", from, to)
	}

	from, to = AssignmentWindow(0).Around(ref)
	if !from.Equal(ref.Add(-2*time.Hour)) || !to.Equal(ref.Add(2*time.Hour)) {
		t.Fatalf("assignment window: expected +/-2h, got %s..%s", from, to)
	}
}

func TestWindows_AreDistinctDefaults(t *testing.T) {
	if CreationBuffer(0).Buffer == AssignmentWindow(0).Buffer {
		t.Fatal("creation and assignment windows must stay distinct policies")
	}
}

func TestWindow_ConfiguredMinutes(t *testing.T) {
	w := AssignmentWindow(45)
	if w.Buffer != 45*time.Minute {
		t.Fatalf("expected 45m, got %s", w.Buffer)
	}
}
