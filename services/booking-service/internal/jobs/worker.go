// Package jobs runs the appointment maintenance jobs (tomorrow's reminders
// and the no-show sweep) for every business, on a ticker or once on demand.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	otelx "github.com/md-rashed-zaman/apptchat/libs/otel"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/ledger"
)

type Maintainer interface {
	SendTomorrowReminders(ctx context.Context, businessID string) (ledger.ReminderReport, error)
	UpdateAppointmentStatuses(ctx context.Context, businessID string) (ledger.StatusReport, error)
}

type Businesses interface {
	ListBusinessIDs(ctx context.Context) ([]string, error)
}

type Worker struct {
	ledger     Maintainer
	businesses Businesses
	logger     *slog.Logger
	interval   time.Duration
}

type WorkerConfig struct {
	Interval time.Duration
}

func NewWorker(l Maintainer, businesses Businesses, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{ledger: l, businesses: businesses, logger: logger, interval: cfg.Interval}
}

// Summary is the outcome of one pass over every business.
type Summary struct {
	Reminders []ledger.ReminderReport `json:"reminders"`
	Statuses  []ledger.StatusReport   `json:"statuses"`
}

// Run executes a pass immediately and then on every tick until ctx ends.
// Pass failures are logged; the loop keeps going.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("maintenance pass failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce runs both jobs for each business. A failing business does not stop
// the others; all failures are joined into the returned error.
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	ctx, span := otelx.Tracer().Start(ctx, "maintenance.run")
	defer span.End()

	ids, err := w.businesses.ListBusinessIDs(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list businesses")
		return Summary{}, fmt.Errorf("list businesses: %w", err)
	}
	span.SetAttributes(attribute.Int("businesses", len(ids)))

	var (
		sum  Summary
		errs []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		reminders, err := w.ledger.SendTomorrowReminders(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("reminders for %s: %w", id, err))
		} else {
			sum.Reminders = append(sum.Reminders, reminders)
		}
		statuses, err := w.ledger.UpdateAppointmentStatuses(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("statuses for %s: %w", id, err))
		} else {
			sum.Statuses = append(sum.Statuses, statuses)
		}
	}
	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "maintenance")
		return sum, err
	}
	return sum, nil
}
