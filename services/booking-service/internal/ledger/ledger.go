// Package ledger owns the appointment lifecycle: create, reschedule, cancel
// and the scheduled maintenance jobs.
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptchat/libs/events"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/storage"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	codeAttempts = 5
)

type Store interface {
	availability.Store
	GetCustomer(ctx context.Context, id string) (model.Customer, error)
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

// Notifier delivers customer messages. Go must not block; Send is synchronous.
type Notifier interface {
	Go(msg events.OutboundMessage)
	Send(ctx context.Context, msg events.OutboundMessage) error
}

type Ledger struct {
	store    Store
	avail    *availability.Engine
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	newCode  func() (string, error)
}

func New(store Store, notifier Notifier, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:    store,
		avail:    availability.NewEngine(store),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newCode:  ConfirmationCode,
	}
}

// WithClock replaces the wall clock, for tests and simulations.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Availability exposes the engine the ledger validates against.
func (l *Ledger) Availability() *availability.Engine { return l.avail }

// ConfirmationCode draws codeLength characters from an alphabet without
// look-alike glyphs (no I, O, 0, 1).
func ConfirmationCode() (string, error) {
	var sb strings.Builder
	size := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

type CreateRequest struct {
	CustomerID string
	BusinessID string
	Service    model.ServiceSnapshot
	Date       model.Date
	Time       model.TimeOfDay
	Notes      string
}

func (r CreateRequest) validate() error {
	switch {
	case r.CustomerID == "":
		return apperr.Validation("customer is required")
	case r.BusinessID == "":
		return apperr.Validation("business is required")
	case r.Service.Name == "" || r.Service.DurationMinutes <= 0:
		return apperr.Validation("a service with a positive duration is required")
	case r.Date.IsZero():
		return apperr.Validation("date is required")
	}
	return nil
}

// Create books a confirmed appointment. The availability check here filters
// stale suggestions; the store's write is what rules out double booking.
func (l *Ledger) Create(ctx context.Context, req CreateRequest) (model.Appointment, error) {
	if err := req.validate(); err != nil {
		return model.Appointment{}, err
	}
	biz, err := l.store.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return model.Appointment{}, err
	}
	customer, err := l.store.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := l.checkSlot(ctx, biz, req.Date, req.Time, req.Service.DurationMinutes, ""); err != nil {
		return model.Appointment{}, err
	}

	appt := model.Appointment{
		ID:         uuid.NewString(),
		BusinessID: biz.ID,
		CustomerID: customer.ID,
		Service:    req.Service,
		Date:       req.Date,
		StartTime:  req.Time,
		EndTime:    req.Time.Add(req.Service.DurationMinutes),
		Status:     model.StatusConfirmed,
		Notes:      strings.TrimSpace(req.Notes),
	}

	var created model.Appointment
	for attempt := 1; ; attempt++ {
		if appt.ConfirmationCode, err = l.newCode(); err != nil {
			return model.Appointment{}, apperr.Dependency("generate confirmation code", err)
		}
		created, err = l.store.CreateAppointment(ctx, appt, l.event(outbox.AppointmentCreated, appt, ""))
		if errors.Is(err, storage.ErrDuplicateCode) && attempt < codeAttempts {
			continue
		}
		break
	}
	if err != nil {
		return model.Appointment{}, storeError("create appointment", err)
	}

	l.logger.InfoContext(ctx, "appointment created",
		"appointment_id", created.ID, "business_id", biz.ID, "date", created.Date.String(), "start", created.StartTime.String())
	l.notifier.Go(events.OutboundMessage{
		Kind:          events.KindConfirmation,
		To:            customer.Phone,
		Body:          notify.Confirmation(created, biz),
		AppointmentID: created.ID,
		BusinessID:    biz.ID,
	})
	return created, nil
}

// Reschedule moves a confirmed appointment, appending an audit note.
func (l *Ledger) Reschedule(ctx context.Context, id string, newDate model.Date, newTime model.TimeOfDay, reason string) (model.Appointment, error) {
	appt, err := l.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status != model.StatusConfirmed {
		return model.Appointment{}, apperr.Policy("only confirmed appointments can be rescheduled")
	}
	biz, err := l.store.GetBusiness(ctx, appt.BusinessID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := l.checkSlot(ctx, biz, newDate, newTime, appt.Service.DurationMinutes, appt.ID); err != nil {
		return model.Appointment{}, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Customer request"
	}
	note := fmt.Sprintf("Rescheduled from %s %s. Reason: %s", appt.Date.Long(), appt.StartTime.Kitchen(), reason)
	end := newTime.Add(appt.Service.DurationMinutes)

	moved := appt
	moved.Date, moved.StartTime, moved.EndTime = newDate, newTime, end
	updated, err := l.store.RescheduleAppointment(ctx, id, newDate, newTime, end, note,
		l.event(outbox.AppointmentRescheduled, moved, reason))
	if err != nil {
		return model.Appointment{}, storeError("reschedule appointment", err)
	}

	l.logger.InfoContext(ctx, "appointment rescheduled",
		"appointment_id", id, "from", appt.Date.String()+" "+appt.StartTime.String(), "to", newDate.String()+" "+newTime.String())
	l.notifyCustomer(ctx, updated, events.KindReschedule, notify.Reschedule(updated, appt.Date, appt.StartTime))
	return updated, nil
}

// CancellationAllowed reports whether now+CancellationHours is no later than
// the appointment start. Equality is allowed.
func CancellationAllowed(biz model.Business, appt model.Appointment, now time.Time) bool {
	deadline := now.Add(time.Duration(biz.CancellationHours) * time.Hour)
	return !deadline.After(appt.StartAt(biz.Location()))
}

// CancellationWindow returns a policy error when appt can no longer be cancelled.
func CancellationWindow(biz model.Business, appt model.Appointment, now time.Time) error {
	if CancellationAllowed(biz, appt, now) {
		return nil
	}
	return apperr.Policy("appointments must be cancelled at least %d hours in advance", biz.CancellationHours)
}

func (l *Ledger) Cancel(ctx context.Context, id, reason string) (model.Appointment, error) {
	appt, err := l.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status != model.StatusConfirmed {
		return model.Appointment{}, apperr.Policy("only confirmed appointments can be cancelled")
	}
	biz, err := l.store.GetBusiness(ctx, appt.BusinessID)
	if err != nil {
		return model.Appointment{}, err
	}
	now := l.now()
	if err := CancellationWindow(biz, appt, now); err != nil {
		return model.Appointment{}, err
	}

	reason = strings.TrimSpace(reason)
	cancelled, err := l.store.CancelAppointment(ctx, id, reason, now, l.event(outbox.AppointmentCancelled, appt, reason))
	if err != nil {
		return model.Appointment{}, storeError("cancel appointment", err)
	}
	l.logger.InfoContext(ctx, "appointment cancelled", "appointment_id", id)
	l.notifyCustomer(ctx, cancelled, events.KindCancellation, notify.Cancellation(cancelled))
	return cancelled, nil
}

// Complete marks a confirmed appointment that has already started as
// completed. Terminal appointments are left as they are.
func (l *Ledger) Complete(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := l.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status.Terminal() {
		return model.Appointment{}, apperr.Policy("appointment is %s", appt.Status)
	}
	biz, err := l.store.GetBusiness(ctx, appt.BusinessID)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.StartAt(biz.Location()).After(l.now()) {
		return model.Appointment{}, apperr.Policy("appointment has not started yet")
	}

	done, err := l.store.CompleteAppointment(ctx, id, l.event(outbox.AppointmentCompleted, appt, ""))
	if err != nil {
		return model.Appointment{}, storeError("complete appointment", err)
	}
	l.logger.InfoContext(ctx, "appointment completed", "appointment_id", id)
	return done, nil
}

// Upcoming lists a customer's confirmed appointments that have not started.
func (l *Ledger) Upcoming(ctx context.Context, biz model.Business, customerID string) ([]model.Appointment, error) {
	now := l.now()
	loc := biz.Location()
	all, err := l.store.CustomerAppointments(ctx, customerID, model.Today(now, loc))
	if err != nil {
		return nil, apperr.Dependency("load appointments", err)
	}
	out := all[:0]
	for _, a := range all {
		if a.StartAt(loc).After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (model.Appointment, error) {
	return l.store.GetAppointment(ctx, id)
}

func (l *Ledger) FindByConfirmationCode(ctx context.Context, code string) (model.Appointment, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return model.Appointment{}, apperr.Validation("confirmation codes are %d characters", codeLength)
	}
	return l.store.FindByConfirmationCode(ctx, code)
}

// checkSlot applies date, hours and availability rules for a booking or move.
func (l *Ledger) checkSlot(ctx context.Context, biz model.Business, date model.Date, start model.TimeOfDay, duration int, excludeID string) error {
	now := l.now()
	loc := biz.Location()
	today := model.Today(now, loc)
	if date.Before(today) {
		return apperr.Policy("cannot book appointments in the past")
	}
	if date.After(today.AddDays(biz.AdvanceBookingDays)) {
		return apperr.Policy("appointments can be booked at most %d days in advance", biz.AdvanceBookingDays)
	}
	if date == today && !date.At(start, loc).After(now) {
		return apperr.Policy("that time has already passed today")
	}
	if err := availability.CheckWithinHours(biz, date, start, duration); err != nil {
		return err
	}
	res, err := l.avail.CheckAvailability(ctx, biz.ID, date, start, duration, excludeID)
	if err != nil {
		return err
	}
	if !res.Available {
		l.logger.InfoContext(ctx, "slot refused", "business_id", biz.ID,
			"date", date.String(), "start", start.String(), "result", res.Describe())
		return apperr.Conflict("time slot is not available")
	}
	return nil
}

func (l *Ledger) notifyCustomer(ctx context.Context, appt model.Appointment, kind, body string) {
	customer, err := l.store.GetCustomer(ctx, appt.CustomerID)
	if err != nil {
		l.logger.WarnContext(ctx, "notification skipped", "kind", kind, "appointment_id", appt.ID, "err", err)
		return
	}
	l.notifier.Go(events.OutboundMessage{
		Kind:          kind,
		To:            customer.Phone,
		Body:          body,
		AppointmentID: appt.ID,
		BusinessID:    appt.BusinessID,
	})
}

type appointmentEvent struct {
	AppointmentID    string    `json:"appointment_id"`
	BusinessID       string    `json:"business_id"`
	CustomerID       string    `json:"customer_id"`
	Service          string    `json:"service"`
	Date             string    `json:"date"`
	StartTime        string    `json:"start_time"`
	EndTime          string    `json:"end_time"`
	ConfirmationCode string    `json:"confirmation_code"`
	Reason           string    `json:"reason,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func (l *Ledger) event(eventType string, a model.Appointment, reason string) outbox.Event {
	payload, _ := json.Marshal(appointmentEvent{
		AppointmentID:    a.ID,
		BusinessID:       a.BusinessID,
		CustomerID:       a.CustomerID,
		Service:          a.Service.Name,
		Date:             a.Date.String(),
		StartTime:        a.StartTime.String(),
		EndTime:          a.EndTime.String(),
		ConfirmationCode: a.ConfirmationCode,
		Reason:           reason,
		OccurredAt:       l.now().UTC(),
	})
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     eventType,
		Payload:       payload,
	}
}

// storeError keeps taxonomy errors from the store and wraps the rest.
func storeError(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Dependency(op, err)
}
