package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/outbox"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) (*Memory, model.Customer) {
	t.Helper()
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.UpsertBusiness(ctx, DefaultBusiness("biz")))
	c, err := m.UpsertCustomer(ctx, "+254700000001", "Amina", time.Now())
	require.NoError(t, err)
	return m, c
}

func newAppt(customerID, code string, date model.Date, start model.TimeOfDay, minutes int) model.Appointment {
	return model.Appointment{
		ID:               uuid.NewString(),
		BusinessID:       "biz",
		CustomerID:       customerID,
		Service:          model.ServiceSnapshot{Name: "Haircut", DurationMinutes: minutes, Price: 500},
		Date:             date,
		StartTime:        start,
		EndTime:          start.Add(minutes),
		ConfirmationCode: code,
	}
}

var day = model.Date{Year: 2026, Month: time.November, Day: 2}

func TestMemoryRejectsOverlapButAllowsAdjacent(t *testing.T) {
	m, c := seedMemory(t)
	ctx := context.Background()

	_, err := m.CreateAppointment(ctx, newAppt(c.ID, "AAAAAA", day, model.NewTimeOfDay(10, 0), 30), outbox.Event{})
	require.NoError(t, err)

	_, err = m.CreateAppointment(ctx, newAppt(c.ID, "BBBBBB", day, model.NewTimeOfDay(10, 15), 30), outbox.Event{})
	require.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = m.CreateAppointment(ctx, newAppt(c.ID, "CCCCCC", day, model.NewTimeOfDay(10, 30), 30), outbox.Event{})
	require.NoError(t, err)

	got, err := m.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.TotalAppointments)
	require.Len(t, m.Events(), 2)
}

func TestMemoryDuplicateCode(t *testing.T) {
	m, c := seedMemory(t)
	ctx := context.Background()
	_, err := m.CreateAppointment(ctx, newAppt(c.ID, "AAAAAA", day, model.NewTimeOfDay(9, 0), 30), outbox.Event{})
	require.NoError(t, err)
	_, err = m.CreateAppointment(ctx, newAppt(c.ID, "AAAAAA", day, model.NewTimeOfDay(12, 0), 30), outbox.Event{})
	require.True(t, errors.Is(err, ErrDuplicateCode))
}

func TestMemoryConcurrentCreatesYieldOneWinner(t *testing.T) {
	m, c := seedMemory(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	codes := []string{"AAAAA2", "AAAAA3", "AAAAA4", "AAAAA5", "AAAAA6", "AAAAA7", "AAAAA8", "AAAAA9"}
	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_, err := m.CreateAppointment(ctx, newAppt(c.ID, code, day, model.NewTimeOfDay(14, 0), 60), outbox.Event{})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(code)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestMemoryRescheduleExcludesSelfAndCancelIsOneWay(t *testing.T) {
	m, c := seedMemory(t)
	ctx := context.Background()
	a, err := m.CreateAppointment(ctx, newAppt(c.ID, "AAAAAA", day, model.NewTimeOfDay(10, 0), 60), outbox.Event{})
	require.NoError(t, err)

	moved, err := m.RescheduleAppointment(ctx, a.ID, day, model.NewTimeOfDay(10, 30), model.NewTimeOfDay(11, 30), "Rescheduled", outbox.Event{})
	require.NoError(t, err)
	require.Equal(t, model.NewTimeOfDay(10, 30), moved.StartTime)
	require.Equal(t, "Rescheduled", moved.Notes)

	_, err = m.CancelAppointment(ctx, a.ID, "sick", time.Now(), outbox.Event{})
	require.NoError(t, err)

	_, err = m.CancelAppointment(ctx, a.ID, "again", time.Now(), outbox.Event{})
	require.True(t, apperr.Is(err, apperr.KindPolicy))

	_, err = m.RescheduleAppointment(ctx, "missing", day, 0, 30, "", outbox.Event{})
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMemoryCompleteFreesSlotAndIsOneWay(t *testing.T) {
	m, c := seedMemory(t)
	ctx := context.Background()
	a, err := m.CreateAppointment(ctx, newAppt(c.ID, "AAAAAA", day, model.NewTimeOfDay(10, 0), 60), outbox.Event{})
	require.NoError(t, err)

	done, err := m.CompleteAppointment(ctx, a.ID, outbox.Event{EventType: outbox.AppointmentCompleted, AggregateID: a.ID})
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, done.Status)
	require.Equal(t, outbox.AppointmentCompleted, m.Events()[len(m.Events())-1].EventType)

	confirmed, err := m.ConfirmedOn(ctx, "biz", day)
	require.NoError(t, err)
	require.Empty(t, confirmed)

	_, err = m.CompleteAppointment(ctx, a.ID, outbox.Event{})
	require.True(t, apperr.Is(err, apperr.KindPolicy))
	_, err = m.CancelAppointment(ctx, a.ID, "late", time.Now(), outbox.Event{})
	require.True(t, apperr.Is(err, apperr.KindPolicy))
}

func TestMemoryMaintenanceQueries(t *testing.T) {
	m, c := seedMemory(t)
	ctx := context.Background()
	yesterday := day.AddDays(-1)
	tomorrow := day.AddDays(1)

	past, err := m.CreateAppointment(ctx, newAppt(c.ID, "PAST22", yesterday, model.NewTimeOfDay(9, 0), 30), outbox.Event{})
	require.NoError(t, err)
	_, err = m.CreateAppointment(ctx, newAppt(c.ID, "NEXT22", tomorrow, model.NewTimeOfDay(9, 0), 30), outbox.Event{})
	require.NoError(t, err)

	n, err := m.MarkNoShowBefore(ctx, "biz", day)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = m.MarkNoShowBefore(ctx, "biz", day)
	require.NoError(t, err)
	require.Zero(t, n)

	got, err := m.GetAppointment(ctx, past.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusNoShow, got.Status)

	due, err := m.DueReminders(ctx, "biz", tomorrow)
	require.NoError(t, err)
	require.Len(t, due, 1)

	ok, err := m.MarkReminderSent(ctx, due[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = m.MarkReminderSent(ctx, due[0].ID)
	require.NoError(t, err)
	require.False(t, ok)

	upcoming, err := m.CustomerAppointments(ctx, c.ID, day)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)

	byCode, err := m.FindByConfirmationCode(ctx, "next22")
	require.NoError(t, err)
	require.Equal(t, tomorrow, byCode.Date)
}

func TestUpsertCustomerKeepsKnownName(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	first, err := m.UpsertCustomer(ctx, "+1", "Jo", time.Unix(100, 0))
	require.NoError(t, err)
	again, err := m.UpsertCustomer(ctx, "+1", "", time.Unix(200, 0))
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, "Jo", again.Name)
	require.Equal(t, time.Unix(200, 0), again.LastInteraction)
}

func TestMemoryLogRecentIsCapped(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()
	var msgs []model.Message
	for i := 0; i < 15; i++ {
		msgs = append(msgs, model.Message{Role: model.RoleUser, Content: string(rune('a' + i))})
	}
	require.NoError(t, l.Append(ctx, "+1", msgs))
	got, err := l.Recent(ctx, "+1", 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	require.Equal(t, "f", got[0].Content)
	require.Equal(t, "o", got[9].Content)
}

func TestParseBusinessFile(t *testing.T) {
	raw := []byte(`
id: shop
name: Shop
timezone: Africa/Nairobi
working_hours:
  monday: {open: "08:30", close: "12:00"}
  sunday: {closed: true}
services:
  - {name: Massage, duration: 60, price: 3000}
buffer_time_minutes: 0
faq:
  - {title: Parking, body: Behind the shop.}
`)
	b, faq, err := ParseBusinessFile(raw)
	require.NoError(t, err)
	require.Equal(t, "shop", b.ID)
	require.Zero(t, b.BufferTimeMinutes)
	require.Equal(t, 24, b.CancellationHours)
	require.Len(t, b.Services, 1)
	require.Len(t, faq, 1)

	mon, ok := b.HoursOn(model.Date{Year: 2026, Month: time.November, Day: 2})
	require.True(t, ok)
	require.Equal(t, model.NewTimeOfDay(8, 30), mon.Open)
	_, ok = b.HoursOn(model.Date{Year: 2026, Month: time.November, Day: 3})
	require.False(t, ok, "tuesday is absent and therefore has no hours")
}

func TestParseBusinessFileRejectsBadInput(t *testing.T) {
	_, _, err := ParseBusinessFile([]byte(`name: no id`))
	require.Error(t, err)
	_, _, err = ParseBusinessFile([]byte("id: x\nworking_hours:\n  funday: {open: \"09:00\", close: \"10:00\"}\n"))
	require.ErrorContains(t, err, "unknown weekday")
	_, _, err = ParseBusinessFile([]byte("id: x\ntimezone: Mars/Olympus\n"))
	require.Error(t, err)
}

func TestWeeklyHoursRoundTrip(t *testing.T) {
	b := DefaultBusiness("x")
	back, err := HoursFromModel(b.WorkingHours).Model()
	require.NoError(t, err)
	require.Equal(t, b.WorkingHours, back)
}
