package dialog

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/notify"
)

const (
	replyBookingFailed  = "I'm sorry, there was an issue creating your appointment. Please try again or contact us directly."
	replyLedgerFailed   = "I'm sorry, I couldn't complete that right now. Please try again in a moment."
	replyLookupFailed   = "I'm having trouble accessing your appointments. Please try again in a moment."
	replyKept           = "Great! Your appointment is still confirmed. See you soon!"
	replySelectionEnded = "No problem. Let me know if there's anything else I can help with."
)

// monthDay renders "November 3rd".
func monthDay(d model.Date) string {
	return fmt.Sprintf("%s %s", d.Month, ordinal(d.Day))
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

func slotList(slots []availability.Slot, n int) string {
	if len(slots) > n {
		slots = slots[:n]
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Formatted)
	}
	return strings.Join(out, ", ")
}

func serviceBullets(b model.Business) string {
	lines := make([]string, 0, len(b.Services))
	for _, s := range b.Services {
		lines = append(lines, "• "+s.Name)
	}
	return strings.Join(lines, "\n")
}

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func hoursList(b model.Business) string {
	lines := make([]string, 0, len(weekOrder))
	for _, wd := range weekOrder {
		h := b.WorkingHours[wd]
		if h == nil || h.Closed || h.Close <= h.Open {
			lines = append(lines, fmt.Sprintf("%s: Closed", wd))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s - %s", wd, h.Open.Kitchen(), h.Close.Kitchen()))
	}
	return strings.Join(lines, "\n")
}

func when(a model.Appointment) string {
	return fmt.Sprintf("%s at %s", a.Date.Long(), a.StartTime.Kitchen())
}

func numberedAppointments(appts []model.Appointment) string {
	lines := make([]string, 0, len(appts))
	for i, a := range appts {
		lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, a.Service.Name, when(a)))
	}
	return strings.Join(lines, "\n")
}

func bookedReply(a model.Appointment, b model.Business) string {
	var sb strings.Builder
	sb.WriteString("Perfect! Your appointment is confirmed!\n\n")
	sb.WriteString("Appointment Details:\n")
	fmt.Fprintf(&sb, "• Service: %s\n", a.Service.Name)
	fmt.Fprintf(&sb, "• Date: %s\n", a.Date.Long())
	fmt.Fprintf(&sb, "• Time: %s\n", a.StartTime.Kitchen())
	fmt.Fprintf(&sb, "• Duration: %d minutes\n", a.Service.DurationMinutes)
	fmt.Fprintf(&sb, "• Price: %s\n", notify.Price(a.Service.Price))
	fmt.Fprintf(&sb, "• Confirmation Code: %s\n\n", a.ConfirmationCode)
	fmt.Fprintf(&sb, "%s\nNeed to make changes? Just message me!\n\nSee you soon!", b.Name)
	return sb.String()
}

func cancelPrompt(a model.Appointment) string {
	return fmt.Sprintf("Are you sure you want to cancel your %s appointment on %s?\n\nReply \"yes\" to confirm or \"no\" to keep the appointment.",
		a.Service.Name, when(a))
}

func cancelBlocked(a model.Appointment, b model.Business) string {
	return fmt.Sprintf("I'm sorry, but your %s appointment on %s is within %d hours and cannot be cancelled online. Please call us directly.",
		a.Service.Name, when(a), b.CancellationHours)
}

func reschedulePrompt(a model.Appointment) string {
	return fmt.Sprintf("I can help you reschedule your %s appointment on %s.\n\nWhat new date and time would you prefer?",
		a.Service.Name, when(a))
}

func helpMenu(b model.Business) string {
	return fmt.Sprintf("Hello! I'm here to help you book appointments at %s. I can help you:\n\n"+
		"• Book new appointments\n• Reschedule existing appointments\n• Cancel appointments\n"+
		"• Check appointment details\n• Answer questions about our services\n\n"+
		"What would you like to do today?", b.Name)
}
