package classifier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

// Calendar resolves relative dates against the business's wall clock.
type Calendar struct {
	Location *time.Location
	Now      func() time.Time
}

func (c Calendar) Today() model.Date {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return model.Today(now(), loc)
}

type wireResult struct {
	Intent        string     `json:"intent"`
	Confidence    float64    `json:"confidence"`
	ExtractedInfo wireFields `json:"extracted_info"`
}

type wireFields struct {
	Service      *string `json:"service"`
	Date         *string `json:"date"`
	Time         *string `json:"time"`
	Requirements *string `json:"requirements"`
}

// Decode parses a model completion. Code fences are stripped and the span
// from the first '{' to the last '}' is decoded. The original message is
// consulted when the model left the date empty but the message itself is a
// bare date expression.
func Decode(raw, message string, cal Calendar) (Result, error) {
	cleaned := stripFences(raw)
	if first, last := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); first != -1 && last > first {
		cleaned = cleaned[first : last+1]
	}

	var w wireResult
	if err := json.Unmarshal([]byte(cleaned), &w); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	today := cal.Today()
	res := Result{
		Intent:     Intent(strings.TrimSpace(w.Intent)),
		Confidence: w.Confidence,
		Fields: Fields{
			Service:      clean(w.ExtractedInfo.Service),
			Requirements: clean(w.ExtractedInfo.Requirements),
		},
	}
	if d := clean(w.ExtractedInfo.Date); d != nil {
		res.Fields.Date = ptr(NormalizeDate(*d, today))
	}
	if t := clean(w.ExtractedInfo.Time); t != nil {
		res.Fields.Time = ptr(NormalizeTime(*t))
	}
	if res.Fields.Date == nil {
		if d, ok := ResolveDate(strings.TrimSpace(message), today); ok {
			res.Fields.Date = ptr(d.String())
		}
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		res.Confidence = 0
	}
	return res, nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// clean drops empty values and the placeholder strings models echo back from
// the prompt's schema.
func clean(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a", "service_name_or_null", "yyyy-mm-dd_or_null", "hh:mm_or_null", "any_special_notes":
		return nil
	}
	return &s
}

func ptr(s string) *string { return &s }

// NormalizeDate resolves s to YYYY-MM-DD when possible and returns it
// unchanged otherwise.
func NormalizeDate(s string, today model.Date) string {
	if d, ok := ResolveDate(s, today); ok {
		return d.String()
	}
	return strings.TrimSpace(s)
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ResolveDate understands ISO dates, "today", "tomorrow" and weekday names.
// A weekday name means its next occurrence after today.
func ResolveDate(s string, today model.Date) (model.Date, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "on ")
	s = strings.TrimPrefix(s, "next ")
	s = strings.TrimPrefix(s, "this ")
	switch s {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDays(1), true
	}
	if isoDate.MatchString(s) {
		d, err := model.ParseDate(s)
		return d, err == nil
	}
	if wd, ok := weekdayNames[s]; ok {
		delta := (int(wd) - int(today.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return today.AddDays(delta), true
	}
	return model.Date{}, false
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var (
	clock12 = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\.?$`)
	clock24 = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// NormalizeTime renders 12- and 24-hour clock strings as HH:MM and returns s
// unchanged when it is not a recognizable time.
func NormalizeTime(s string) string {
	if t, ok := ResolveTime(s); ok {
		return t.String()
	}
	return strings.TrimSpace(s)
}

func ResolveTime(s string) (model.TimeOfDay, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "at ")
	switch s {
	case "noon", "midday":
		return model.NewTimeOfDay(12, 0), true
	}
	if m := clock12.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return 0, false
		}
		hour %= 12
		if m[3] == "p" {
			hour += 12
		}
		return model.NewTimeOfDay(hour, minute), true
	}
	if clock24.MatchString(s) {
		t, err := model.ParseTimeOfDay(s)
		return t, err == nil
	}
	return 0, false
}
