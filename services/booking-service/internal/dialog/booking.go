package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/classifier"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/notify"
)

// book merges extracted fields into the pending booking. A field already
// accepted is never overwritten. Fields are validated in the order service,
// date, time and the first problem found is the reply.
func (m *Machine) book(ctx context.Context, state *model.ConversationState, turn Turn, f classifier.Fields) (string, error) {
	biz := turn.Business
	p := &state.PendingBooking

	if p.Service == nil && f.Service != nil {
		svc, ok := biz.ServiceByName(*f.Service)
		if !ok {
			state.Step = model.StepBookingService
			return fmt.Sprintf("I don't recognize that service. Our available services are: %s. Which one would you like?",
				strings.Join(biz.ServiceNames(), ", ")), nil
		}
		snap := svc.Snapshot()
		p.Service = &snap
	}
	if p.Notes == "" && f.Requirements != nil {
		p.Notes = *f.Requirements
	}
	if p.Date == nil && f.Date != nil {
		d, reply := m.acceptDate(biz, *f.Date)
		if reply != "" {
			state.Step = nextStep(*p)
			return reply, nil
		}
		p.Date = &d
	}

	if p.Service == nil {
		state.Step = model.StepBookingService
		return "I'd be happy to help you book an appointment.\n\nWhat service would you like to book?\n\n" +
			serviceBullets(biz) + "\n\nJust let me know which one interests you!", nil
	}
	if p.Date == nil {
		state.Step = model.StepBookingDate
		return fmt.Sprintf("Great choice! %s takes %d minutes and costs %s.\n\n"+
			"What date would you prefer? You can say things like \"tomorrow\", \"Monday\", or give me a specific date.",
			p.Service.Name, p.Service.DurationMinutes, notify.Price(p.Service.Price)), nil
	}
	if p.Time == nil {
		if f.Time != nil {
			t, v, err := m.acceptTime(ctx, biz, *p.Date, *f.Time, p.Service.DurationMinutes, "")
			if err != nil {
				return "", err
			}
			if v != nil {
				if v.dayFull {
					p.Date = nil
				}
				state.Step = nextStep(*p)
				return v.reply, nil
			}
			p.Time = &t
		} else {
			reply, full, err := m.timePrompt(ctx, biz, *p.Date, p.Service.DurationMinutes)
			if err != nil {
				return "", err
			}
			if full {
				p.Date = nil
			}
			state.Step = nextStep(*p)
			return reply, nil
		}
	}

	state.Step = model.StepBookingConfirm
	return m.complete(ctx, state, turn)
}

func nextStep(p model.PendingBooking) model.Step {
	switch {
	case p.Service == nil:
		return model.StepBookingService
	case p.Date == nil:
		return model.StepBookingDate
	case p.Time == nil:
		return model.StepBookingTime
	}
	return model.StepBookingConfirm
}

func (m *Machine) complete(ctx context.Context, state *model.ConversationState, turn Turn) (string, error) {
	biz := turn.Business
	p := &state.PendingBooking
	appt, err := m.ledger.Create(ctx, ledger.CreateRequest{
		CustomerID: turn.Customer.ID,
		BusinessID: biz.ID,
		Service:    *p.Service,
		Date:       *p.Date,
		Time:       *p.Time,
		Notes:      p.Notes,
	})
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindConflict:
			label := p.Time.Kitchen()
			p.Time = nil
			alt, full, aerr := m.alternatives(ctx, biz, *p.Date, p.Service.DurationMinutes)
			if aerr != nil {
				return "", aerr
			}
			if full {
				p.Date = nil
			}
			state.Step = nextStep(*p)
			return label + " was just taken." + alt, nil
		case apperr.KindPolicy, apperr.KindValidation:
			p.Time = nil
			state.Step = nextStep(*p)
			return fmt.Sprintf("I couldn't book that: %s. What time would you like instead?", apperr.Reason(err)), nil
		default:
			m.logger.ErrorContext(ctx, "create appointment failed", "error", err, "customer_id", turn.Customer.ID)
			return replyBookingFailed, nil
		}
	}

	state.PendingBooking = model.PendingBooking{}
	state.Step = model.StepCompleted
	return bookedReply(appt, biz), nil
}

// acceptDate returns the parsed date, or a reply naming why it was refused.
func (m *Machine) acceptDate(biz model.Business, raw string) (model.Date, string) {
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, "I didn't understand that date. Could you please specify a date like \"tomorrow\", \"Monday\", or YYYY-MM-DD?"
	}
	today := m.today(biz)
	if d.Before(today) {
		return model.Date{}, "I can't book appointments in the past. Could you choose today or a future date?"
	}
	if d.After(today.AddDays(biz.AdvanceBookingDays)) {
		return model.Date{}, fmt.Sprintf("I can only book appointments up to %d days in advance. Please choose an earlier date.", biz.AdvanceBookingDays)
	}
	if _, ok := biz.HoursOn(d); !ok {
		return model.Date{}, fmt.Sprintf("We're closed on %ss. Please choose another day.", d.Weekday())
	}
	return d, ""
}

// verdict explains why a requested time was refused. dayFull means no other
// time on that date is free either.
type verdict struct {
	reply   string
	dayFull bool
}

func (m *Machine) acceptTime(ctx context.Context, biz model.Business, date model.Date, raw string, duration int, excludeID string) (model.TimeOfDay, *verdict, error) {
	t, err := model.ParseTimeOfDay(raw)
	if err != nil {
		return 0, &verdict{reply: "I didn't understand that time. Please reply with a time like 10:00 AM or 14:30."}, nil
	}

	var problem string
	loc := biz.Location()
	switch {
	case date == m.today(biz) && !date.At(t, loc).After(m.now()):
		problem = t.Kitchen() + " has already passed today."
	case availability.CheckWithinHours(biz, date, t, duration) != nil:
		hours, _ := biz.HoursOn(date)
		problem = fmt.Sprintf("%s doesn't fit within our hours on %ss (%s - %s).",
			t.Kitchen(), date.Weekday(), hours.Open.Kitchen(), hours.Close.Kitchen())
	default:
		res, err := m.slots.CheckAvailability(ctx, biz.ID, date, t, duration, excludeID)
		if err != nil {
			return 0, nil, err
		}
		if res.Available {
			return t, nil, nil
		}
		problem = t.Kitchen() + " isn't available."
	}

	alt, full, err := m.alternatives(ctx, biz, date, duration)
	if err != nil {
		return 0, nil, err
	}
	return 0, &verdict{reply: problem + alt, dayFull: full}, nil
}

// alternatives suggests up to three free times on date.
func (m *Machine) alternatives(ctx context.Context, biz model.Business, date model.Date, duration int) (string, bool, error) {
	slots, err := m.openSlots(ctx, biz, date, duration)
	if err != nil {
		return "", false, err
	}
	if len(slots) == 0 {
		return fmt.Sprintf(" Unfortunately, %s is now fully booked. Could you choose another date?", monthDay(date)), true, nil
	}
	return fmt.Sprintf(" How about: %s?", slotList(slots, 3)), false, nil
}

func (m *Machine) timePrompt(ctx context.Context, biz model.Business, date model.Date, duration int) (string, bool, error) {
	slots, err := m.openSlots(ctx, biz, date, duration)
	if err != nil {
		return "", false, err
	}
	if len(slots) == 0 {
		return fmt.Sprintf("Unfortunately, %s is fully booked. Could you choose another date?", monthDay(date)), true, nil
	}
	return fmt.Sprintf("What time works best for you on %s?\n\nAvailable times: %s\n\nJust let me know your preferred time!",
		monthDay(date), slotList(slots, 6)), false, nil
}

// openSlots lists free times on date, dropping times already past today.
func (m *Machine) openSlots(ctx context.Context, biz model.Business, date model.Date, duration int) ([]availability.Slot, error) {
	slots, err := m.slots.AvailableSlots(ctx, biz.ID, date, duration, biz.BufferTimeMinutes)
	if err != nil {
		return nil, err
	}
	if date != m.today(biz) {
		return slots, nil
	}
	loc := biz.Location()
	now := m.now()
	out := slots[:0]
	for _, s := range slots {
		if date.At(s.Start, loc).After(now) {
			out = append(out, s)
		}
	}
	return out, nil
}
