package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	for in, want := range map[string]TimeOfDay{"09:00": 540, "9:30": 570, "23:59": 1439, " 00:00 ": 0} {
		got, err := ParseTimeOfDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "24:00", "10:60", "10", "10:0", "ten:00", "100:00"} {
		_, err := ParseTimeOfDay(in)
		assert.Error(t, err, in)
	}
}

func TestTimeOfDayFormats(t *testing.T) {
	assert.Equal(t, "09:05", NewTimeOfDay(9, 5).String())
	assert.Equal(t, "9:05 AM", NewTimeOfDay(9, 5).Kitchen())
	assert.Equal(t, "12:00 PM", NewTimeOfDay(12, 0).Kitchen())
	assert.Equal(t, "4:30 PM", NewTimeOfDay(16, 30).Kitchen())
}

func TestParseDateRejectsImpossibleDates(t *testing.T) {
	d, err := ParseDate("2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, Date{2026, time.October, 16}, d)
	assert.Equal(t, time.Friday, d.Weekday())
	assert.Equal(t, "October 16, 2026", d.Long())

	_, err = ParseDate("2026-02-30")
	assert.Error(t, err)
	_, err = ParseDate("16/10/2026")
	assert.Error(t, err)
}

func TestTodayUsesLocation(t *testing.T) {
	nairobi, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)
	// 22:30 UTC is already the next day in Nairobi (UTC+3).
	now := time.Date(2026, 10, 15, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, Date{2026, time.October, 16}, Today(now, nairobi))
	assert.Equal(t, Date{2026, time.October, 15}, Today(now, time.UTC))
}

func TestAppointmentOverlapsIsHalfOpen(t *testing.T) {
	a := Appointment{StartTime: NewTimeOfDay(10, 0), EndTime: NewTimeOfDay(11, 0)}
	assert.False(t, a.Overlaps(NewTimeOfDay(11, 0), NewTimeOfDay(12, 0)))
	assert.False(t, a.Overlaps(NewTimeOfDay(9, 0), NewTimeOfDay(10, 0)))
	assert.True(t, a.Overlaps(NewTimeOfDay(9, 0), NewTimeOfDay(10, 1)))
	assert.True(t, a.Overlaps(NewTimeOfDay(10, 59), NewTimeOfDay(12, 0)))
}

func TestBusinessHoursAndServices(t *testing.T) {
	b := Business{Services: []Service{{Name: "Facial", DurationMinutes: 60, Price: 2500}}}
	b.WorkingHours[time.Friday] = &DayHours{Open: NewTimeOfDay(9, 0), Close: NewTimeOfDay(17, 0)}
	b.WorkingHours[time.Sunday] = &DayHours{Open: NewTimeOfDay(10, 0), Close: NewTimeOfDay(16, 0), Closed: true}

	_, ok := b.HoursOn(Date{2026, time.October, 16})
	assert.True(t, ok)
	_, ok = b.HoursOn(Date{2026, time.October, 18})
	assert.False(t, ok, "closed sunday")
	_, ok = b.HoursOn(Date{2026, time.October, 17})
	assert.False(t, ok, "absent saturday")

	s, ok := b.ServiceByName("  facial ")
	assert.True(t, ok)
	assert.Equal(t, "Facial", s.Name)
	assert.Equal(t, time.UTC, b.Location())
}

func TestConversationStateAppendAndClone(t *testing.T) {
	s := NewConversationState("+254700000001")
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Append(RoleUser, string(rune('a'+i)), at, 3)
	}
	require.Len(t, s.RecentMessages, 3)
	assert.Equal(t, "c", s.RecentMessages[0].Content)

	d := Date{2026, time.October, 16}
	s.PendingBooking.Date = &d
	s.PendingSelection = &PendingSelection{Action: ActionCancel, AppointmentIDs: []string{"a1", "a2"}}

	c := s.Clone()
	c.PendingBooking.Date.Day = 17
	c.PendingSelection.AppointmentIDs[0] = "zz"
	c.RecentMessages[0].Content = "changed"

	assert.Equal(t, 16, s.PendingBooking.Date.Day)
	assert.Equal(t, "a1", s.PendingSelection.AppointmentIDs[0])
	assert.Equal(t, "c", s.RecentMessages[0].Content)
	assert.True(t, s.HasSideChannel())
}

func TestConversationStateJSON(t *testing.T) {
	d := Date{2026, time.October, 16}
	tm := NewTimeOfDay(10, 0)
	s := NewConversationState("+1")
	s.Step = StepBookingConfirm
	s.PendingBooking = PendingBooking{Service: &ServiceSnapshot{Name: "Facial", DurationMinutes: 60}, Date: &d, Time: &tm}

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"date":"2026-10-16"`)
	assert.Contains(t, string(raw), `"time":"10:00"`)
	assert.NotContains(t, string(raw), "pendingCancellation")

	var back ConversationState
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, *back.PendingBooking.Date)
	assert.Equal(t, tm, *back.PendingBooking.Time)
}
