package model

import "time"

// Work order statuses.
const (
	WorkOrderInProgress = "in_progress"
	WorkOrderCompleted  = "completed"
)

// WorkOrder is a diagnostic intervention carried out for a confirmed
// appointment. Start and end are derived from the appointment at creation.
type WorkOrder struct {
	ID              string
	Reference       string
	AppointmentID   string
	ServiceID       string
	TechnicianID    string
	StartedAt       time.Time
	EndedAt         time.Time
	Status          string
	DiagnosticCodes []string
	Findings        string
	Recommendations string
	CreatedAt       time.Time
}
