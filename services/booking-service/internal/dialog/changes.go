package dialog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/classifier"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

const cancelReason = "Customer requested cancellation"

var (
	yesWords  = map[string]bool{"yes": true, "y": true, "confirm": true}
	noWords   = map[string]bool{"no": true, "n": true, "keep": true}
	stopWords = map[string]bool{"no": true, "n": true, "keep": true, "stop": true}
)

func normalize(text string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".!, ")
}

// startChange opens a cancel or reschedule flow over the customer's upcoming
// appointments. Several appointments produce a numbered list first.
func (m *Machine) startChange(ctx context.Context, state *model.ConversationState, turn Turn, action model.Action) (string, error) {
	appts, err := m.ledger.Upcoming(ctx, turn.Business, turn.Customer.ID)
	if err != nil {
		m.logger.ErrorContext(ctx, "load upcoming appointments failed", "error", err, "customer_id", turn.Customer.ID)
		return replyLookupFailed, nil
	}
	switch len(appts) {
	case 0:
		if action == model.ActionCancel {
			return "You don't have any upcoming appointments to cancel.", nil
		}
		return "You don't have any upcoming appointments to reschedule. Would you like to book a new appointment instead?", nil
	case 1:
		return m.open(state, turn.Business, action, appts[0]), nil
	}

	ids := make([]string, len(appts))
	for i, a := range appts {
		ids[i] = a.ID
	}
	state.ClearSideChannels()
	state.PendingSelection = &model.PendingSelection{Action: action, AppointmentIDs: ids}
	return fmt.Sprintf("You have multiple upcoming appointments:\n\n%s\n\nWhich one would you like to %s? Tell me the number.",
		numberedAppointments(appts), action), nil
}

// open starts the confirmation side-channel for one appointment. A
// cancellation inside the policy window is refused immediately.
func (m *Machine) open(state *model.ConversationState, biz model.Business, action model.Action, appt model.Appointment) string {
	state.ClearSideChannels()
	if action == model.ActionCancel {
		if !ledger.CancellationAllowed(biz, appt, m.now()) {
			return cancelBlocked(appt, biz)
		}
		state.PendingCancellation = &model.PendingCancellation{AppointmentID: appt.ID}
		return cancelPrompt(appt)
	}
	state.PendingReschedule = &model.PendingReschedule{AppointmentID: appt.ID}
	return reschedulePrompt(appt)
}

func (m *Machine) changeable(biz model.Business, appt model.Appointment) bool {
	return appt.Status == model.StatusConfirmed && appt.StartAt(biz.Location()).After(m.now())
}

// lookup loads a side-channel appointment. A missing or no longer changeable
// appointment closes every side-channel and yields the reply to send.
func (m *Machine) lookup(ctx context.Context, state *model.ConversationState, biz model.Business, id string) (model.Appointment, string) {
	appt, err := m.ledger.Get(ctx, id)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		state.ClearSideChannels()
		return appt, "I couldn't find that appointment anymore. Is there anything else I can help with?"
	case err != nil:
		m.logger.ErrorContext(ctx, "load appointment failed", "error", err, "appointment_id", id)
		return appt, replyLookupFailed
	case !m.changeable(biz, appt):
		state.ClearSideChannels()
		return appt, "That appointment can no longer be changed. Is there anything else I can help with?"
	}
	return appt, ""
}

func (m *Machine) handleSelection(ctx context.Context, state *model.ConversationState, turn Turn) (string, error) {
	sel := state.PendingSelection
	answer := normalize(turn.Text)
	if stopWords[answer] {
		state.PendingSelection = nil
		return replySelectionEnded, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(answer, "#"))
	if err != nil || n < 1 || n > len(sel.AppointmentIDs) {
		return fmt.Sprintf("Please reply with a number between 1 and %d, or \"no\" to stop.", len(sel.AppointmentIDs)), nil
	}
	appt, reply := m.lookup(ctx, state, turn.Business, sel.AppointmentIDs[n-1])
	if reply != "" {
		return reply, nil
	}
	return m.open(state, turn.Business, sel.Action, appt), nil
}

func (m *Machine) handleCancellation(ctx context.Context, state *model.ConversationState, turn Turn) (string, error) {
	id := state.PendingCancellation.AppointmentID
	answer := normalize(turn.Text)
	switch {
	case yesWords[answer]:
		appt, err := m.ledger.Cancel(ctx, id, cancelReason)
		if err != nil {
			switch apperr.KindOf(err) {
			case apperr.KindPolicy:
				state.PendingCancellation = nil
				return fmt.Sprintf("I'm sorry, that appointment can't be cancelled online: %s. Please call us directly.", apperr.Reason(err)), nil
			case apperr.KindNotFound:
				state.PendingCancellation = nil
				return "I couldn't find that appointment anymore. Is there anything else I can help with?", nil
			default:
				m.logger.ErrorContext(ctx, "cancel appointment failed", "error", err, "appointment_id", id)
				return replyLedgerFailed, nil
			}
		}
		state.PendingCancellation = nil
		return fmt.Sprintf("Your %s appointment on %s has been cancelled successfully.\n\n"+
			"We hope to see you again soon! Feel free to book another appointment anytime.",
			appt.Service.Name, appt.Date.Long()), nil
	case noWords[answer]:
		state.PendingCancellation = nil
		return replyKept, nil
	}

	appt, reply := m.lookup(ctx, state, turn.Business, id)
	if reply != "" {
		return reply, nil
	}
	return fmt.Sprintf("Please reply \"yes\" to cancel your %s appointment on %s, or \"no\" to keep it.",
		appt.Service.Name, when(appt)), nil
}

// handleReschedule collects a new date and time for the pending appointment,
// validated like a booking but ignoring the appointment's own slot, then asks
// for a final yes or no.
func (m *Machine) handleReschedule(ctx context.Context, state *model.ConversationState, turn Turn) (string, error) {
	biz := turn.Business
	pr := state.PendingReschedule
	appt, reply := m.lookup(ctx, state, biz, pr.AppointmentID)
	if reply != "" {
		return reply, nil
	}

	answer := normalize(turn.Text)
	if noWords[answer] {
		state.PendingReschedule = nil
		return fmt.Sprintf("No problem. Your %s appointment on %s is unchanged.", appt.Service.Name, when(appt)), nil
	}
	if yesWords[answer] {
		if pr.NewDate == nil || pr.NewTime == nil {
			return m.askMissing(ctx, biz, pr, appt)
		}
		return m.commitReschedule(ctx, state, biz, appt)
	}

	hint := model.StepBookingDate
	if pr.NewDate != nil {
		hint = model.StepBookingTime
	}
	res, err := m.classifier.Classify(ctx, turn.Text, hint)
	if err != nil {
		res = classifier.Fallback(classifier.ErrorConfidence)
	}
	f := res.Fields

	if pr.NewDate == nil && f.Date != nil {
		d, reply := m.acceptDate(biz, *f.Date)
		if reply != "" {
			return reply, nil
		}
		pr.NewDate = &d
	}
	if pr.NewTime == nil && f.Time != nil && pr.NewDate != nil {
		t, v, err := m.acceptTime(ctx, biz, *pr.NewDate, *f.Time, appt.Service.DurationMinutes, appt.ID)
		if err != nil {
			return "", err
		}
		if v != nil {
			if v.dayFull {
				pr.NewDate = nil
			}
			return v.reply, nil
		}
		pr.NewTime = &t
	}

	if pr.NewDate != nil && pr.NewTime != nil {
		return fmt.Sprintf("Move your %s appointment from %s to %s at %s?\n\nReply \"yes\" to confirm or \"no\" to keep your current time.",
			appt.Service.Name, when(appt), pr.NewDate.Long(), pr.NewTime.Kitchen()), nil
	}
	return m.askMissing(ctx, biz, pr, appt)
}

func (m *Machine) askMissing(ctx context.Context, biz model.Business, pr *model.PendingReschedule, appt model.Appointment) (string, error) {
	if pr.NewDate == nil {
		return fmt.Sprintf("What new date would you like for your %s appointment? You can say things like \"tomorrow\" or \"Friday\".",
			appt.Service.Name), nil
	}
	reply, full, err := m.timePrompt(ctx, biz, *pr.NewDate, appt.Service.DurationMinutes)
	if err != nil {
		return "", err
	}
	if full {
		pr.NewDate = nil
	}
	return reply, nil
}

func (m *Machine) commitReschedule(ctx context.Context, state *model.ConversationState, biz model.Business, appt model.Appointment) (string, error) {
	pr := state.PendingReschedule
	moved, err := m.ledger.Reschedule(ctx, appt.ID, *pr.NewDate, *pr.NewTime, "")
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindConflict:
			label := pr.NewTime.Kitchen()
			pr.NewTime = nil
			alt, full, aerr := m.alternatives(ctx, biz, *pr.NewDate, appt.Service.DurationMinutes)
			if aerr != nil {
				return "", aerr
			}
			if full {
				pr.NewDate = nil
			}
			return label + " was just taken." + alt, nil
		case apperr.KindPolicy, apperr.KindValidation:
			pr.NewDate, pr.NewTime = nil, nil
			return fmt.Sprintf("I couldn't move the appointment: %s. What new date and time would you prefer?", apperr.Reason(err)), nil
		case apperr.KindNotFound:
			state.PendingReschedule = nil
			return "I couldn't find that appointment anymore. Is there anything else I can help with?", nil
		default:
			m.logger.ErrorContext(ctx, "reschedule appointment failed", "error", err, "appointment_id", appt.ID)
			return replyLedgerFailed, nil
		}
	}
	state.PendingReschedule = nil
	return fmt.Sprintf("Done! Your %s appointment is now on %s.\n\nConfirmation Code: %s",
		moved.Service.Name, when(moved), moved.ConfirmationCode), nil
}
