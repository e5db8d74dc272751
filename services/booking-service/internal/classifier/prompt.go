package classifier

import (
	"fmt"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

const systemPrompt = "You classify WhatsApp messages sent to an appointment booking assistant. Reply with a single JSON object and nothing else."

func buildPrompt(text string, hint model.Step, today model.Date) string {
	return fmt.Sprintf(`Analyze this WhatsApp message and determine the customer's intent.

Message: %q

Previous context step: %s
Today's date: %s (%s)

Classify the intent as one of:
- book_appointment: Customer wants to book a new appointment
- reschedule_appointment: Customer wants to change existing appointment
- cancel_appointment: Customer wants to cancel existing appointment
- check_appointment: Customer wants to check their appointment status
- general_inquiry: General questions about services, hours, etc.

Also extract any mentioned:
- Service name
- Date preference (convert relative dates like "tomorrow" to actual dates)
- Time preference (24-hour HH:MM)
- Any specific requirements

Respond in JSON format:
{
  "intent": "intent_name",
  "confidence": 0.95,
  "extracted_info": {
    "service": "service_name_or_null",
    "date": "YYYY-MM-DD_or_null",
    "time": "HH:MM_or_null",
    "requirements": "any_special_notes"
  }
}`, text, hint, today.String(), today.Weekday())
}
