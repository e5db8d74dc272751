package classifier

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

// Keyword is a local rule-based classifier used when no model provider is
// configured, and in tests.
type Keyword struct {
	services []string
	cal      Calendar
}

func NewKeyword(services []string, cal Calendar) *Keyword {
	sorted := append([]string(nil), services...)
	// Longest first so "Hair Coloring" wins over a shorter overlapping name.
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return &Keyword{services: sorted, cal: cal}
}

var (
	isoInText     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	clock12InText = regexp.MustCompile(`\b\d{1,2}(?::\d{2})?\s*[ap]\.?m\b\.?`)
	clock24InText = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	wordSplit     = regexp.MustCompile(`[^a-z0-9']+`)
)

var (
	cancelWords     = []string{"cancel"}
	rescheduleWords = []string{"reschedule", "re-schedule", "change my appointment", "move my appointment", "change my booking", "move my booking"}
	checkWords      = []string{"check my", "my appointments", "my appointment", "my booking", "upcoming", "status"}
	bookWords       = []string{"book", "appointment", "schedule", "reserve"}
)

func (k *Keyword) Classify(_ context.Context, text string, hint model.Step) (Result, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	fields := k.extract(lower)

	res := Result{Intent: IntentGeneral, Confidence: 0.5}
	switch {
	case containsAny(lower, cancelWords):
		res = Result{Intent: IntentCancel, Confidence: 0.9}
	case containsAny(lower, rescheduleWords):
		res = Result{Intent: IntentReschedule, Confidence: 0.9}
	case containsAny(lower, checkWords):
		res = Result{Intent: IntentCheck, Confidence: 0.85}
	case containsAny(lower, bookWords):
		res = Result{Intent: IntentBook, Confidence: 0.9}
	case fields.Service != nil:
		res = Result{Intent: IntentBook, Confidence: 0.8}
	case hint.InBooking() && (fields.Date != nil || fields.Time != nil):
		res = Result{Intent: IntentBook, Confidence: 0.75}
	case hint == model.StepBookingService && lower != "" && !strings.Contains(lower, "?"):
		// An unmatched answer to the service prompt is passed through so the
		// caller can name it as unknown.
		raw := strings.TrimSpace(text)
		fields.Service = &raw
		res = Result{Intent: IntentBook, Confidence: 0.6}
	}
	res.Fields = fields
	return res, nil
}

func (k *Keyword) extract(lower string) Fields {
	var f Fields
	for _, name := range k.services {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			s := name
			f.Service = &s
			break
		}
	}

	today := k.cal.Today()
	if m := isoInText.FindString(lower); m != "" {
		f.Date = ptr(NormalizeDate(m, today))
	} else if d, ok := ResolveDate(lower, today); ok {
		f.Date = ptr(d.String())
	} else {
		for _, w := range wordSplit.Split(lower, -1) {
			if w == "today" || w == "tomorrow" || isFullWeekday(w) {
				if d, ok := ResolveDate(w, today); ok {
					f.Date = ptr(d.String())
					break
				}
			}
		}
	}

	if m := clock12InText.FindString(lower); m != "" {
		f.Time = ptr(NormalizeTime(m))
	} else if m := clock24InText.FindString(lower); m != "" {
		f.Time = ptr(NormalizeTime(m))
	} else if strings.Contains(lower, "noon") {
		f.Time = ptr("12:00")
	}
	return f
}

func isFullWeekday(w string) bool {
	wd, ok := weekdayNames[w]
	return ok && strings.EqualFold(w, wd.String())
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
