package reference

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestGenerator_Format(t *testing.T) {
	g := NewGenerator(AppointmentPrefix)
	g.now = func() time.Time { return time.UnixMilli(1716825600123) }
	g.intn = func(n int) int {
		if n != 1000 {
			t.Fatalf("expected random range 1000, got %d", n)
		}
		return 47
	}

	if got := g.New(); got != "RDV-1716825600123-47" {
		t.Fatalf("unexpected reference %q", got)
	}
}

func TestGenerator_RandomSuffixRange(t *testing.T) {
	g := NewGenerator(WorkOrderPrefix)
	pattern := regexp.MustCompile(`^INT-\d{13,}-\d{1,3}$`)

	for i := 0; i < 200; i++ {
		ref := g.New()
		if !pattern.MatchString(ref) {
			t.Fatalf("reference %q does not match expected shape", ref)
		}
		suffix := ref[strings.LastIndex(ref, "-")+1:]
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 0 || n > 999 {
			t.Fatalf("suffix %q out of range", suffix)
		}
	}
}
