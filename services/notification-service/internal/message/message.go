// Package message builds the customer-facing text for appointment lifecycle
// notifications. Bodies are plain text; rendering stays here so senders only
// deal with transport.
package message

import (
	"fmt"
	"strings"
	"time"
)

type Appointment struct {
	Reference    string
	CustomerName string
	StartTime    time.Time
	EndTime      time.Time
}

type Message struct {
	Subject string
	Body    string
}

func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Hello,"
	}
	return fmt.Sprintf("Hello %s,", name)
}

func slot(a Appointment) string {
	return fmt.Sprintf("%s to %s",
		a.StartTime.UTC().Format("Mon 02 Jan 2006 15:04"),
		a.EndTime.UTC().Format("15:04 MST"))
}

func Requested(a Appointment) Message {
	return Message{
		Subject: fmt.Sprintf("Booking request received (%s)", a.Reference),
		Body: fmt.Sprintf("%s\n\nWe received your diagnostic booking request %s for %s. We will confirm it as soon as a technician is assigned.\n",
			greeting(a.CustomerName), a.Reference, slot(a)),
	}
}

func Confirmed(a Appointment) Message {
	return Message{
		Subject: fmt.Sprintf("Appointment confirmed (%s)", a.Reference),
		Body: fmt.Sprintf("%s\n\nYour diagnostic appointment %s is confirmed for %s. A technician will come to your address.\n",
			greeting(a.CustomerName), a.Reference, slot(a)),
	}
}

func Cancelled(a Appointment) Message {
	return Message{
		Subject: fmt.Sprintf("Appointment cancelled (%s)", a.Reference),
		Body: fmt.Sprintf("%s\n\nYour diagnostic appointment %s scheduled for %s has been cancelled. You can book a new slot at any time.\n",
			greeting(a.CustomerName), a.Reference, slot(a)),
	}
}

// SMS returns a compact single-line version of the message body.
func SMS(m Message) string {
	body := strings.ReplaceAll(strings.TrimSpace(m.Body), "\n\n", " ")
	body = strings.ReplaceAll(body, "\n", " ")
	return m.Subject + " - " + body
}
