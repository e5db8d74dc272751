package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

// WeeklyHours is the persisted form of Business.WorkingHours, keyed by
// lower-case weekday name. Missing days have no hours.
type WeeklyHours map[string]*model.DayHours

func weekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

func HoursFromModel(hours [7]*model.DayHours) WeeklyHours {
	out := WeeklyHours{}
	for d, h := range hours {
		if h != nil {
			c := *h
			out[weekdayKey(time.Weekday(d))] = &c
		}
	}
	return out
}

func (w WeeklyHours) Model() ([7]*model.DayHours, error) {
	var out [7]*model.DayHours
	for key, h := range w {
		d, ok := parseWeekday(key)
		if !ok {
			return out, fmt.Errorf("unknown weekday %q", key)
		}
		if h != nil {
			c := *h
			out[d] = &c
		}
	}
	return out, nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if weekdayKey(d) == s {
			return d, true
		}
	}
	return 0, false
}
