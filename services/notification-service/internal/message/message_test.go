package message

import (
	"strings"
	"testing"
	"time"
)

func sample() Appointment {
	return Appointment{
		Reference:    "RDV-1716825600123-47",
		CustomerName: "Jean Mercier",
		StartTime:    time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 9, 14, 11, 0, 0, 0, time.UTC),
	}
}

func TestConfirmedMentionsReferenceAndSlot(t *testing.T) {
	m := Confirmed(sample())

	if !strings.Contains(m.Subject, "RDV-1716825600123-47") {
		t.Fatalf("subject missing reference: %q", m.Subject)
	}
	if !strings.Contains(m.Body, "Hello Jean Mercier,") {
		t.Fatalf("body missing greeting: %q", m.Body)
	}
	if !strings.Contains(m.Body, "10:00") || !strings.Contains(m.Body, "11:00") {
		t.Fatalf("body missing slot times: %q", m.Body)
	}
}

func TestGreetingFallsBackWithoutName(t *testing.T) {
	a := sample()
	a.CustomerName = "  "
	m := Requested(a)

	if !strings.HasPrefix(m.Body, "Hello,") {
		t.Fatalf("expected anonymous greeting, got %q", m.Body)
	}
}

func TestSMSIsSingleLine(t *testing.T) {
	s := SMS(Cancelled(sample()))

	if strings.Contains(s, "\n") {
		t.Fatalf("sms text contains newline: %q", s)
	}
	if !strings.Contains(s, "cancelled") {
		t.Fatalf("sms text missing status: %q", s)
	}
}
