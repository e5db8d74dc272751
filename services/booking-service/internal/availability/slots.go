package availability

import "github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"

// Slot is a free start time for a booking.
type Slot struct {
	Start     model.TimeOfDay `json:"start"`
	Formatted string          `json:"formatted"`
}

// Conflicts returns the confirmed appointments overlapping [start, start+duration),
// skipping excludeID. Intervals are half-open, so back-to-back bookings do not
// conflict.
func Conflicts(existing []model.Appointment, start model.TimeOfDay, duration int, excludeID string) []model.Appointment {
	end := start.Add(duration)
	var out []model.Appointment
	for _, a := range existing {
		if a.Status != model.StatusConfirmed {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if a.Overlaps(start, end) {
			out = append(out, a)
		}
	}
	return out
}

// FreeSlots walks candidate starts from open through close-duration inclusive,
// stepping by duration+buffer, and returns those with no conflict in ascending
// order.
func FreeSlots(hours model.DayHours, duration, buffer int, existing []model.Appointment) []Slot {
	if duration <= 0 || buffer < 0 {
		return nil
	}
	step := duration + buffer
	var slots []Slot
	for t := hours.Open; t.Add(duration) <= hours.Close; t = t.Add(step) {
		if len(Conflicts(existing, t, duration, "")) == 0 {
			slots = append(slots, Slot{Start: t, Formatted: t.Kitchen()})
		}
	}
	return slots
}
