package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/outbox"
)

// Memory is an in-process Store. A single mutex serializes writes, which
// gives the same no-overlap guarantee the Postgres exclusion constraint does.
type Memory struct {
	mu           sync.Mutex
	now          func() time.Time
	businesses   map[string]model.Business
	customers    map[string]model.Customer
	phones       map[string]string
	appointments map[string]model.Appointment
	events       []outbox.Event
}

func NewMemory() *Memory {
	return &Memory{
		now:          time.Now,
		businesses:   map[string]model.Business{},
		customers:    map[string]model.Customer{},
		phones:       map[string]string{},
		appointments: map[string]model.Appointment{},
	}
}

// WithClock overrides the timestamp source used for created/updated fields.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Events returns the outbox events recorded so far.
func (m *Memory) Events() []outbox.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

func (m *Memory) GetBusiness(_ context.Context, id string) (model.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.businesses[id]
	if !ok {
		return model.Business{}, apperr.NotFound("business %s not found", id)
	}
	return b, nil
}

func (m *Memory) ListBusinessIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.businesses))
	for id := range m.businesses {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) UpsertBusiness(_ context.Context, b model.Business) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.Services = slices.Clone(b.Services)
	m.businesses[b.ID] = b
	return nil
}

func (m *Memory) UpsertCustomer(_ context.Context, phone, name string, at time.Time) (model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.phones[phone]; ok {
		c := m.customers[id]
		c.LastInteraction = at
		if name != "" {
			c.Name = name
		}
		m.customers[id] = c
		return c, nil
	}
	c := model.Customer{
		ID:              uuid.NewString(),
		Phone:           phone,
		Name:            name,
		LastInteraction: at,
		CreatedAt:       m.now(),
	}
	m.customers[c.ID] = c
	m.phones[phone] = c.ID
	return c, nil
}

func (m *Memory) GetCustomer(_ context.Context, id string) (model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return model.Customer{}, apperr.NotFound("customer not found")
	}
	return c, nil
}

func (m *Memory) FindCustomerByPhone(_ context.Context, phone string) (model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.phones[phone]
	if !ok {
		return model.Customer{}, apperr.NotFound("customer not found")
	}
	return m.customers[id], nil
}

func (m *Memory) filter(keep func(model.Appointment) bool) []model.Appointment {
	var out []model.Appointment
	for _, a := range m.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.Appointment) int {
		if c := a.Date.Time().Compare(b.Date.Time()); c != 0 {
			return c
		}
		return int(a.StartTime - b.StartTime)
	})
	return out
}

func (m *Memory) ConfirmedOn(_ context.Context, businessID string, date model.Date) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(a model.Appointment) bool {
		return a.BusinessID == businessID && a.Date == date && a.Status == model.StatusConfirmed
	}), nil
}

func (m *Memory) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, apperr.NotFound("appointment not found")
	}
	return a, nil
}

func (m *Memory) FindByConfirmationCode(_ context.Context, code string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, a := range m.appointments {
		if a.ConfirmationCode == code {
			return a, nil
		}
	}
	return model.Appointment{}, apperr.NotFound("no appointment with code %s", code)
}

func (m *Memory) CustomerAppointments(_ context.Context, customerID string, from model.Date) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(a model.Appointment) bool {
		return a.CustomerID == customerID && a.Status == model.StatusConfirmed && !a.Date.Before(from)
	}), nil
}

// overlapsLocked applies the same predicate as the exclusion constraint.
func (m *Memory) overlapsLocked(businessID string, date model.Date, start, end model.TimeOfDay, excludeID string) bool {
	for _, a := range m.appointments {
		if a.ID == excludeID || a.BusinessID != businessID || a.Date != date || a.Status != model.StatusConfirmed {
			continue
		}
		if a.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (m *Memory) CreateAppointment(_ context.Context, appt model.Appointment, evt outbox.Event) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.ConfirmationCode == appt.ConfirmationCode {
			return model.Appointment{}, ErrDuplicateCode
		}
	}
	if m.overlapsLocked(appt.BusinessID, appt.Date, appt.StartTime, appt.EndTime, "") {
		return model.Appointment{}, apperr.Conflict("that time was just booked by someone else")
	}
	now := m.now()
	appt.Status = model.StatusConfirmed
	appt.CreatedAt = now
	appt.UpdatedAt = now
	m.appointments[appt.ID] = appt
	if c, ok := m.customers[appt.CustomerID]; ok {
		c.TotalAppointments++
		m.customers[c.ID] = c
	}
	m.events = append(m.events, evt)
	return appt, nil
}

func (m *Memory) confirmedLocked(id string) (model.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, apperr.NotFound("appointment not found")
	}
	if a.Status.Terminal() {
		return model.Appointment{}, apperr.Policy("appointment is %s", a.Status)
	}
	return a, nil
}

func (m *Memory) RescheduleAppointment(_ context.Context, id string, date model.Date, start, end model.TimeOfDay, note string, evt outbox.Event) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.confirmedLocked(id)
	if err != nil {
		return model.Appointment{}, err
	}
	if m.overlapsLocked(a.BusinessID, date, start, end, id) {
		return model.Appointment{}, apperr.Conflict("that time was just booked by someone else")
	}
	a.Date, a.StartTime, a.EndTime = date, start, end
	a.Notes = appendNote(a.Notes, note)
	a.ReminderSent = false
	a.UpdatedAt = m.now()
	m.appointments[id] = a
	m.events = append(m.events, evt)
	return a, nil
}

func (m *Memory) CancelAppointment(_ context.Context, id, reason string, at time.Time, evt outbox.Event) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.confirmedLocked(id)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.StatusCancelled
	a.CancellationReason = reason
	a.CancelledAt = &at
	a.UpdatedAt = m.now()
	m.appointments[id] = a
	m.events = append(m.events, evt)
	return a, nil
}

func (m *Memory) CompleteAppointment(_ context.Context, id string, evt outbox.Event) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.confirmedLocked(id)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.StatusCompleted
	a.UpdatedAt = m.now()
	m.appointments[id] = a
	m.events = append(m.events, evt)
	return a, nil
}

func (m *Memory) MarkNoShowBefore(_ context.Context, businessID string, before model.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for id, a := range m.appointments {
		if a.BusinessID == businessID && a.Status == model.StatusConfirmed && a.Date.Before(before) {
			a.Status = model.StatusNoShow
			a.UpdatedAt = m.now()
			m.appointments[id] = a
			n++
		}
	}
	return n, nil
}

func (m *Memory) DueReminders(_ context.Context, businessID string, date model.Date) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(a model.Appointment) bool {
		return a.BusinessID == businessID && a.Date == date && a.Status == model.StatusConfirmed && !a.ReminderSent
	}), nil
}

func (m *Memory) MarkReminderSent(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.ReminderSent || a.Status != model.StatusConfirmed {
		return false, nil
	}
	a.ReminderSent = true
	m.appointments[id] = a
	return true, nil
}

// MemoryLog is an in-process conversation log.
type MemoryLog struct {
	mu   sync.Mutex
	msgs map[string][]model.Message
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{msgs: map[string][]model.Message{}}
}

func (l *MemoryLog) Append(_ context.Context, phone string, msgs []model.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs[phone] = append(l.msgs[phone], msgs...)
	return nil
}

func (l *MemoryLog) Recent(_ context.Context, phone string, limit int) ([]model.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := l.msgs[phone]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return slices.Clone(all), nil
}
