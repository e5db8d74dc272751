// Package dialog is the per-turn conversation state machine. It merges the
// classifier's intent and fields into the conversation state, validates them
// against the business rules and calls the ledger once a booking, move or
// cancellation is complete.
package dialog

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/classifier"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/knowledge"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

type Classifier interface {
	Classify(ctx context.Context, text string, hint model.Step) (classifier.Result, error)
}

type Ledger interface {
	Create(ctx context.Context, req ledger.CreateRequest) (model.Appointment, error)
	Reschedule(ctx context.Context, id string, newDate model.Date, newTime model.TimeOfDay, reason string) (model.Appointment, error)
	Cancel(ctx context.Context, id, reason string) (model.Appointment, error)
	Upcoming(ctx context.Context, biz model.Business, customerID string) ([]model.Appointment, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
}

type Slots interface {
	CheckAvailability(ctx context.Context, businessID string, date model.Date, start model.TimeOfDay, duration int, excludeID string) (availability.Result, error)
	AvailableSlots(ctx context.Context, businessID string, date model.Date, serviceDuration, bufferTime int) ([]availability.Slot, error)
}

type Machine struct {
	classifier Classifier
	ledger     Ledger
	slots      Slots
	knowledge  knowledge.Retriever
	logger     *slog.Logger
	now        func() time.Time
}

func New(c Classifier, l Ledger, slots Slots, kb knowledge.Retriever, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{classifier: c, ledger: l, slots: slots, knowledge: kb, logger: logger, now: time.Now}
}

// WithClock replaces the wall clock, for tests and simulations.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// Turn is one inbound customer message with the context it is handled in.
type Turn struct {
	Business model.Business
	Customer model.Customer
	Text     string
}

// Handle advances state by one customer message and returns the reply.
// Validation, policy and conflict outcomes become re-prompts. An error is
// returned only when the turn could not be handled at all; callers should then
// discard the changes made to state.
func (m *Machine) Handle(ctx context.Context, state *model.ConversationState, turn Turn) (string, error) {
	// Pending confirmations run before classification so a bare "yes" or
	// "no" is never read as a new intent.
	if state.HasSideChannel() {
		return m.resume(ctx, state, turn)
	}

	res, err := m.classifier.Classify(ctx, turn.Text, state.Step)
	if err != nil {
		m.logger.WarnContext(ctx, "classification failed", "error", err)
		res = classifier.Fallback(classifier.ErrorConfidence)
	}

	// Mid-booking answers such as "tomorrow" often carry no booking words;
	// fields, or a booking that only awaits a retry, keep the flow going.
	intent := res.Intent
	if intent == classifier.IntentGeneral && state.Step.InBooking() &&
		(!res.Fields.Empty() || state.Step == model.StepBookingConfirm) {
		intent = classifier.IntentBook
	}

	m.logger.DebugContext(ctx, "turn classified",
		"intent", string(intent), "confidence", res.Confidence, "step", string(state.Step))

	switch intent {
	case classifier.IntentBook:
		return m.book(ctx, state, turn, res.Fields)
	case classifier.IntentReschedule:
		return m.startChange(ctx, state, turn, model.ActionReschedule)
	case classifier.IntentCancel:
		return m.startChange(ctx, state, turn, model.ActionCancel)
	case classifier.IntentCheck:
		return m.check(ctx, turn)
	default:
		return m.inquiry(ctx, turn)
	}
}

// resume continues whichever cancel or reschedule exchange is open. A
// selection is resolved first since it leads into the other two.
func (m *Machine) resume(ctx context.Context, state *model.ConversationState, turn Turn) (string, error) {
	switch {
	case state.PendingSelection != nil:
		return m.handleSelection(ctx, state, turn)
	case state.PendingCancellation != nil:
		return m.handleCancellation(ctx, state, turn)
	default:
		return m.handleReschedule(ctx, state, turn)
	}
}

func (m *Machine) today(biz model.Business) model.Date {
	return model.Today(m.now(), biz.Location())
}
