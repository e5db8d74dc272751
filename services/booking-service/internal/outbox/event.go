package outbox

// Event is the domain event envelope written to the outbox table in the same
// transaction as the state change it describes. EventType doubles as the
// Kafka topic / NATS subject.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AppointmentCreated     = "booking.appointment.created.v1"
	AppointmentRescheduled = "booking.appointment.rescheduled.v1"
	AppointmentCancelled   = "booking.appointment.cancelled.v1"
	AppointmentCompleted   = "booking.appointment.completed.v1"
)
