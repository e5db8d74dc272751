// Package events holds message contracts shared between services.
package events

import "time"

const TopicNotifyOutbound = "notify.outbound.v1"

// Kinds of outbound customer messages.
const (
	KindReply        = "reply"
	KindConfirmation = "confirmation"
	KindReminder     = "reminder"
	KindCancellation = "cancellation"
	KindReschedule   = "reschedule"
)

// OutboundMessage asks the notification service to deliver Body to To.
type OutboundMessage struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	To            string    `json:"to"`
	Body          string    `json:"body"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	BusinessID    string    `json:"business_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
