package memory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	otelx "github.com/md-rashed-zaman/apptchat/libs/otel"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultHistoryLimit = 20
	DefaultColdLimit    = 10
)

// FastStore is the shared, TTL-bounded tier.
type FastStore interface {
	Load(ctx context.Context, phone string) (*model.ConversationState, bool, error)
	Save(ctx context.Context, state *model.ConversationState) error
	Delete(ctx context.Context, phone string) error
}

// ColdLog is the append-only per-customer message log.
type ColdLog interface {
	Append(ctx context.Context, phone string, msgs []model.Message) error
	Recent(ctx context.Context, phone string, limit int) ([]model.Message, error)
}

type Source string

const (
	SourceLocal Source = "local"
	SourceFast  Source = "fast"
	SourceCold  Source = "cold"
	SourceFresh Source = "fresh"
)

// SaveReport carries the outcome of the best-effort tiers. The local tier
// cannot fail.
type SaveReport struct {
	Fast error
	Cold error
}

func (r SaveReport) OK() bool { return r.Fast == nil && r.Cold == nil }

func (r SaveReport) Err() error { return errors.Join(r.Fast, r.Cold) }

type Tiered struct {
	local        *LocalCache
	fast         FastStore
	cold         ColdLog
	logger       *slog.Logger
	historyLimit int
	coldLimit    int
	now          func() time.Time

	loads    metric.Int64Counter
	failures metric.Int64Counter
}

type Options struct {
	HistoryLimit int
	ColdLimit    int
}

// NewTiered wires the tiers. fast and cold may be nil.
func NewTiered(local *LocalCache, fast FastStore, cold ColdLog, logger *slog.Logger, opts Options) *Tiered {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.ColdLimit <= 0 {
		opts.ColdLimit = DefaultColdLimit
	}
	meter := otelx.Meter()
	loads, _ := meter.Int64Counter("apptchat.memory.loads",
		metric.WithDescription("Conversation state loads by resolving tier"))
	failures, _ := meter.Int64Counter("apptchat.memory.tier_failures",
		metric.WithDescription("Best-effort memory tier operations that failed"))
	return &Tiered{
		local:        local,
		fast:         fast,
		cold:         cold,
		logger:       logger,
		historyLimit: opts.HistoryLimit,
		coldLimit:    opts.ColdLimit,
		now:          time.Now,
		loads:        loads,
		failures:     failures,
	}
}

func (t *Tiered) HistoryLimit() int { return t.historyLimit }

// Load resolves local, then fast, then a fresh state seeded from the cold
// log. It never fails; tier errors are logged and counted.
func (t *Tiered) Load(ctx context.Context, phone string) (*model.ConversationState, Source) {
	state, src := t.resolve(ctx, phone)
	if t.loads != nil {
		t.loads.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(src))))
	}
	if src != SourceLocal {
		t.local.Put(phone, state)
	}
	return state, src
}

func (t *Tiered) resolve(ctx context.Context, phone string) (*model.ConversationState, Source) {
	if state, ok := t.local.Get(phone); ok {
		return state, SourceLocal
	}
	if t.fast != nil {
		state, ok, err := t.fast.Load(ctx, phone)
		switch {
		case err != nil:
			t.degraded(ctx, "fast", "load", phone, err)
		case ok:
			return state, SourceFast
		}
	}

	state := model.NewConversationState(phone)
	state.UpdatedAt = t.now()
	if t.cold == nil {
		return state, SourceFresh
	}
	msgs, err := t.cold.Recent(ctx, phone, t.coldLimit)
	if err != nil {
		t.degraded(ctx, "cold", "load", phone, err)
		return state, SourceFresh
	}
	if len(msgs) == 0 {
		return state, SourceFresh
	}
	state.RecentMessages = msgs
	return state, SourceCold
}

// Save writes the local tier unconditionally and the others best-effort.
// turn holds the messages added this turn; they are appended to the cold log.
func (t *Tiered) Save(ctx context.Context, state *model.ConversationState, turn []model.Message) SaveReport {
	state.UpdatedAt = t.now()
	t.local.Put(state.CustomerPhone, state)

	var report SaveReport
	if t.fast != nil {
		if err := t.fast.Save(ctx, state); err != nil {
			report.Fast = err
			t.degraded(ctx, "fast", "save", state.CustomerPhone, err)
		}
	}
	if t.cold != nil && len(turn) > 0 {
		if err := t.cold.Append(ctx, state.CustomerPhone, turn); err != nil {
			report.Cold = err
			t.degraded(ctx, "cold", "save", state.CustomerPhone, err)
		}
	}
	return report
}

// Forget drops the local and fast copies. The cold log is append-only and
// is kept.
func (t *Tiered) Forget(ctx context.Context, phone string) error {
	t.local.Delete(phone)
	if t.fast == nil {
		return nil
	}
	return t.fast.Delete(ctx, phone)
}

func (t *Tiered) degraded(ctx context.Context, tier, op, phone string, err error) {
	t.logger.WarnContext(ctx, "memory tier degraded", "tier", tier, "op", op, "phone", phone, "err", err)
	if t.failures != nil {
		t.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier), attribute.String("op", op)))
	}
}
