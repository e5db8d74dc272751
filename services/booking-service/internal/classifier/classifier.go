// Package classifier turns a customer message into a structured intent plus
// any booking fields it mentions. Providers call a hosted model or apply local
// keyword rules; Bounded wraps any of them so a turn never fails on
// classification.
package classifier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

type Intent string

const (
	IntentBook       Intent = "book_appointment"
	IntentReschedule Intent = "reschedule_appointment"
	IntentCancel     Intent = "cancel_appointment"
	IntentCheck      Intent = "check_appointment"
	IntentGeneral    Intent = "general_inquiry"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentBook, IntentReschedule, IntentCancel, IntentCheck, IntentGeneral:
		return true
	}
	return false
}

// Fields are the optional slots extracted from a message. Date is normalized
// to YYYY-MM-DD and Time to HH:MM when they could be resolved; otherwise the
// raw text is kept so the caller can report it as unparseable.
type Fields struct {
	Service      *string
	Date         *string
	Time         *string
	Requirements *string
}

func (f Fields) Empty() bool {
	return f.Service == nil && f.Date == nil && f.Time == nil && f.Requirements == nil
}

type Result struct {
	Intent     Intent
	Confidence float64
	Fields     Fields
}

type Classifier interface {
	Classify(ctx context.Context, text string, hint model.Step) (Result, error)
}

// ErrMalformed marks a provider response that could not be decoded.
var ErrMalformed = errors.New("classifier: malformed response")

const (
	MalformedConfidence = 0.4
	ErrorConfidence     = 0.5
)

// Fallback is the low-confidence general inquiry used when classification
// fails.
func Fallback(confidence float64) Result {
	return Result{Intent: IntentGeneral, Confidence: confidence}
}

// Bounded applies a timeout to an inner classifier and never returns an
// error: malformed responses and failures degrade to Fallback.
type Bounded struct {
	inner   Classifier
	timeout time.Duration
	logger  *slog.Logger
}

func NewBounded(inner Classifier, timeout time.Duration, logger *slog.Logger) *Bounded {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Bounded{inner: inner, timeout: timeout, logger: logger}
}

func (b *Bounded) Classify(ctx context.Context, text string, hint model.Step) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := b.inner.Classify(ctx, text, hint)
	switch {
	case err == nil && res.Intent.Valid():
		return res, nil
	case err == nil:
		b.logger.Warn("classifier returned unknown intent", "intent", string(res.Intent))
		out := Fallback(MalformedConfidence)
		out.Fields = res.Fields
		return out, nil
	case errors.Is(err, ErrMalformed):
		b.logger.Warn("classifier response malformed", "error", err)
		return Fallback(MalformedConfidence), nil
	default:
		b.logger.Error("classifier failed", "error", err)
		return Fallback(ErrorConfidence), nil
	}
}
