// Package storage persists businesses, customers, appointments and the
// conversation log. Postgres is the production store; Memory mirrors its
// rules for tests and local runs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/outbox"
)

// ErrDuplicateCode means the confirmation code is taken; callers pick a new one.
var ErrDuplicateCode = errors.New("storage: confirmation code already in use")

type Store interface {
	GetBusiness(ctx context.Context, id string) (model.Business, error)
	ListBusinessIDs(ctx context.Context) ([]string, error)
	UpsertBusiness(ctx context.Context, b model.Business) error

	UpsertCustomer(ctx context.Context, phone, name string, at time.Time) (model.Customer, error)
	GetCustomer(ctx context.Context, id string) (model.Customer, error)
	FindCustomerByPhone(ctx context.Context, phone string) (model.Customer, error)

	ConfirmedOn(ctx context.Context, businessID string, date model.Date) ([]model.Appointment, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	FindByConfirmationCode(ctx context.Context, code string) (model.Appointment, error)
	CustomerAppointments(ctx context.Context, customerID string, from model.Date) ([]model.Appointment, error)

	CreateAppointment(ctx context.Context, appt model.Appointment, evt outbox.Event) (model.Appointment, error)
	RescheduleAppointment(ctx context.Context, id string, date model.Date, start, end model.TimeOfDay, note string, evt outbox.Event) (model.Appointment, error)
	CancelAppointment(ctx context.Context, id, reason string, at time.Time, evt outbox.Event) (model.Appointment, error)
	CompleteAppointment(ctx context.Context, id string, evt outbox.Event) (model.Appointment, error)

	MarkNoShowBefore(ctx context.Context, businessID string, before model.Date) (int, error)
	DueReminders(ctx context.Context, businessID string, date model.Date) ([]model.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) (bool, error)
}

// appendNote joins an audit line onto existing notes.
func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
