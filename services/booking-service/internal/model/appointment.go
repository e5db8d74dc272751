package model

import "time"

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

type Appointment struct {
	ID                 string
	BusinessID         string
	CustomerID         string
	Service            ServiceSnapshot
	Date               Date
	StartTime          TimeOfDay
	EndTime            TimeOfDay
	Status             Status
	ConfirmationCode   string
	Notes              string
	CancellationReason string
	CancelledAt        *time.Time
	ReminderSent       bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StartAt is the absolute start instant in loc.
func (a Appointment) StartAt(loc *time.Location) time.Time {
	return a.Date.At(a.StartTime, loc)
}

// Overlaps applies the half-open interval test on the same date:
// [a.Start, a.End) intersects [start, end).
func (a Appointment) Overlaps(start, end TimeOfDay) bool {
	return a.StartTime < end && a.EndTime > start
}

type Customer struct {
	ID                string
	Phone             string
	Name              string
	TotalAppointments int
	LastInteraction   time.Time
	CreatedAt         time.Time
}
