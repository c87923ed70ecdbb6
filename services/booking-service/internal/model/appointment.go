package model

import "time"

// Appointment statuses. Only StatusRequested and StatusConfirmed occupy a slot
// or a technician; completed and cancelled appointments are historical.
const (
	StatusRequested = "requested"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// DefaultDurationMinutes applies when an appointment's service type (or its
// duration) is unknown.
const DefaultDurationMinutes = 60

type Appointment struct {
	ID                  string
	Reference           string
	ServiceID           string
	TechnicianID        string // empty means unassigned
	CustomerName        string
	CustomerEmail       string
	CustomerPhone       string
	VehicleMake         string
	VehicleModel        string
	VehicleRegistration string
	Address             string
	City                string
	PostalCode          string
	StartTime           time.Time
	DurationMinutes     int
	Status              string
	CancelledAt         *time.Time
	CancelReason        string
	CreatedAt           time.Time
}

// EndTime is the end of the appointment's occupied interval, using its own
// service duration (the interval is half-open: [StartTime, EndTime)).
func (a Appointment) EndTime() time.Time {
	mins := a.DurationMinutes
	if mins <= 0 {
		mins = DefaultDurationMinutes
	}
	return a.StartTime.Add(time.Duration(mins) * time.Minute)
}

// Active reports whether the appointment counts for slot and technician
// conflicts.
func (a Appointment) Active() bool {
	return a.Status == StatusRequested || a.Status == StatusConfirmed
}

type Technician struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Specialty string
	Available bool
}

type ServiceType struct {
	ID              string
	Name            string
	Description     string
	DurationMinutes int
	Price           float64
}
