package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

// Price renders an amount the way the business quotes it.
func Price(p float64) string {
	return "KSH " + strconv.FormatFloat(p, 'f', -1, 64)
}

func Confirmation(a model.Appointment, b model.Business) string {
	address := b.Address
	if address == "" {
		address = "Address available upon request"
	}
	var sb strings.Builder
	sb.WriteString("Appointment Confirmed!\n\n")
	sb.WriteString("Details:\n")
	fmt.Fprintf(&sb, "- Service: %s\n", a.Service.Name)
	fmt.Fprintf(&sb, "- Date: %s\n", a.Date.Long())
	fmt.Fprintf(&sb, "- Time: %s\n", a.StartTime.Kitchen())
	fmt.Fprintf(&sb, "- Duration: %d minutes\n", a.Service.DurationMinutes)
	fmt.Fprintf(&sb, "- Price: %s\n", Price(a.Service.Price))
	fmt.Fprintf(&sb, "- Confirmation Code: %s\n\n", a.ConfirmationCode)
	fmt.Fprintf(&sb, "Location:\n%s\n%s\n\n", b.Name, address)
	fmt.Fprintf(&sb, "Need changes? Just message us. You can reschedule or cancel up to %d hours before your appointment.", b.CancellationHours)
	return sb.String()
}

func Reminder(a model.Appointment, b model.Business) string {
	return fmt.Sprintf("Appointment Reminder\n\nHi! Just a friendly reminder about your appointment tomorrow at %s.\n"+
		"- Service: %s\n- Duration: %d minutes\n- Location: %s\n- Code: %s\n\n"+
		"If you need to make any changes, please let us know as soon as possible.",
		a.StartTime.Kitchen(), a.Service.Name, a.Service.DurationMinutes, b.Name, a.ConfirmationCode)
}

func Cancellation(a model.Appointment) string {
	return fmt.Sprintf("Appointment Cancelled\n\nYour %s appointment on %s at %s has been cancelled. "+
		"Feel free to book another appointment anytime.",
		a.Service.Name, a.Date.Long(), a.StartTime.Kitchen())
}

func Reschedule(a model.Appointment, from model.Date, fromTime model.TimeOfDay) string {
	return fmt.Sprintf("Appointment Rescheduled\n\nYour %s appointment has moved from %s at %s to %s at %s.\nConfirmation Code: %s",
		a.Service.Name, from.Long(), fromTime.Kitchen(), a.Date.Long(), a.StartTime.Kitchen(), a.ConfirmationCode)
}
