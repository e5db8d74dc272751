// Package orchestrator runs one customer turn end to end: customer upsert,
// conversation memory, the dialog machine and the reply.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/apptchat/libs/otel"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/dialog"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/memory"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

// Apology is the reply for a turn that failed unexpectedly.
const Apology = "I apologize, but I'm experiencing some technical difficulties. Please try again in a moment, or contact us directly if the issue persists."

type Store interface {
	GetBusiness(ctx context.Context, id string) (model.Business, error)
	UpsertCustomer(ctx context.Context, phone, name string, at time.Time) (model.Customer, error)
}

type Memory interface {
	Load(ctx context.Context, phone string) (*model.ConversationState, memory.Source)
	Save(ctx context.Context, state *model.ConversationState, turn []model.Message) memory.SaveReport
	HistoryLimit() int
}

type Dialog interface {
	Handle(ctx context.Context, state *model.ConversationState, turn dialog.Turn) (string, error)
}

type Orchestrator struct {
	businessID string
	store      Store
	memory     Memory
	dialog     Dialog
	logger     *slog.Logger
	now        func() time.Time
	locks      *keyedLocks
	turns      metric.Int64Counter
}

func New(businessID string, store Store, mem Memory, d Dialog, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		businessID: businessID,
		store:      store,
		memory:     mem,
		dialog:     d,
		logger:     logger,
		now:        time.Now,
		locks:      newKeyedLocks(),
	}
	turns, err := otelx.Meter().Int64Counter("apptchat.turns",
		metric.WithDescription("Conversation turns handled, by outcome."))
	if err == nil {
		o.turns = turns
	}
	return o
}

// WithClock replaces the wall clock, for tests and simulations.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

func (o *Orchestrator) BusinessID() string { return o.businessID }

// CheckBusiness verifies the configured business exists. A missing business
// is a configuration error and should stop startup.
func (o *Orchestrator) CheckBusiness(ctx context.Context) (model.Business, error) {
	biz, err := o.store.GetBusiness(ctx, o.businessID)
	if err != nil {
		return model.Business{}, fmt.Errorf("business %q: %w", o.businessID, err)
	}
	return biz, nil
}

// HandleTurn processes one inbound message and returns the reply to send.
// Turns for the same phone run one at a time. Failures past input validation
// become the apology reply rather than an error, except a missing business.
func (o *Orchestrator) HandleTurn(ctx context.Context, phone, name, text string) (string, error) {
	phone = strings.TrimSpace(phone)
	text = strings.TrimSpace(text)
	if phone == "" {
		return "", apperr.Validation("phone is required")
	}
	if text == "" {
		return "", apperr.Validation("message is required")
	}

	ctx, span := otelx.Tracer().Start(ctx, "conversation.turn")
	defer span.End()
	span.SetAttributes(attribute.String("business.id", o.businessID))

	unlock, err := o.locks.Lock(ctx, phone)
	if err != nil {
		return "", err
	}
	defer unlock()

	customer, err := o.store.UpsertCustomer(ctx, phone, strings.TrimSpace(name), o.now())
	if err != nil {
		return o.fail(ctx, span, "upsert customer", err), nil
	}
	biz, err := o.store.GetBusiness(ctx, o.businessID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			o.count(ctx, "misconfigured")
			span.SetStatus(codes.Error, "business not found")
			return "", fmt.Errorf("business %q: %w", o.businessID, err)
		}
		return o.fail(ctx, span, "load business", err), nil
	}

	state, src := o.memory.Load(ctx, phone)
	span.SetAttributes(attribute.String("memory.source", string(src)))
	limit := o.memory.HistoryLimit()

	userMsg := model.Message{Role: model.RoleUser, Content: text, Timestamp: o.now()}
	working := state.Clone()
	working.Append(userMsg.Role, userMsg.Content, userMsg.Timestamp, limit)

	reply, err := o.dialog.Handle(ctx, working, dialog.Turn{Business: biz, Customer: customer, Text: text})
	if err != nil {
		// Nothing the dialog changed is kept, so the customer can retry
		// without repeating earlier answers.
		reply = o.fail(ctx, span, "dialog", err)
		working = state.Clone()
		working.Append(userMsg.Role, userMsg.Content, userMsg.Timestamp, limit)
	}

	botMsg := model.Message{Role: model.RoleAssistant, Content: reply, Timestamp: o.now()}
	working.Append(botMsg.Role, botMsg.Content, botMsg.Timestamp, limit)
	if report := o.memory.Save(ctx, working, []model.Message{userMsg, botMsg}); !report.OK() {
		span.SetAttributes(attribute.Bool("memory.degraded", true))
	}

	span.SetAttributes(
		attribute.String("dialog.step", string(working.Step)),
		attribute.Bool("dialog.side_channel", working.HasSideChannel()),
	)
	if err == nil {
		o.count(ctx, "ok")
	}
	return reply, nil
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, op string, err error) string {
	o.logger.ErrorContext(ctx, "turn failed", "op", op, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	o.count(ctx, "failed")
	return Apology
}

func (o *Orchestrator) count(ctx context.Context, outcome string) {
	if o.turns != nil {
		o.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
