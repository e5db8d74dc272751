// Package availability decides whether a time can be booked and enumerates
// free slots over a business's working hours.
package availability

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

// Store is the read side the engine needs.
type Store interface {
	GetBusiness(ctx context.Context, id string) (model.Business, error)
	ConfirmedOn(ctx context.Context, businessID string, date model.Date) ([]model.Appointment, error)
}

type Result struct {
	Available bool
	Conflicts []model.Appointment
}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// CheckAvailability reports conflicts for [start, start+duration) on date.
// It has no side effects.
func (e *Engine) CheckAvailability(ctx context.Context, businessID string, date model.Date, start model.TimeOfDay, duration int, excludeID string) (Result, error) {
	existing, err := e.store.ConfirmedOn(ctx, businessID, date)
	if err != nil {
		return Result{}, apperr.Dependency("load appointments", err)
	}
	conflicts := Conflicts(existing, start, duration, excludeID)
	return Result{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// AvailableSlots lists free start times for a service on date. A closed day
// or a day without hours yields an empty list, not an error.
func (e *Engine) AvailableSlots(ctx context.Context, businessID string, date model.Date, serviceDuration, bufferTime int) ([]Slot, error) {
	biz, err := e.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	hours, ok := biz.HoursOn(date)
	if !ok {
		return nil, nil
	}
	existing, err := e.store.ConfirmedOn(ctx, businessID, date)
	if err != nil {
		return nil, apperr.Dependency("load appointments", err)
	}
	return FreeSlots(hours, serviceDuration, bufferTime, existing), nil
}

// CheckWithinHours returns a policy violation when the business is closed on
// date or [start, start+duration) falls outside its hours.
func CheckWithinHours(biz model.Business, date model.Date, start model.TimeOfDay, duration int) error {
	hours, ok := biz.HoursOn(date)
	if !ok {
		return apperr.Policy("we're closed on %ss", date.Weekday())
	}
	if start < hours.Open || start.Add(duration) > hours.Close {
		return apperr.Policy("appointments must fit within business hours (%s - %s)", hours.Open.Kitchen(), hours.Close.Kitchen())
	}
	return nil
}

// Describe is a short human form of a conflict set, used in logs.
func (r Result) Describe() string {
	if r.Available {
		return "available"
	}
	return fmt.Sprintf("%d conflicting appointment(s)", len(r.Conflicts))
}
