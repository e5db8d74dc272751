package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptchat/libs/events"
	"golang.org/x/sync/semaphore"
)

// Dispatcher sends messages through a Channel. Async sends never block or fail
// the caller; at most maxInFlight of them run at once.
type Dispatcher struct {
	channel Channel
	logger  *slog.Logger
	timeout time.Duration
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewDispatcher(channel Channel, logger *slog.Logger, maxInFlight int64, timeout time.Duration) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = 16
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		channel: channel,
		logger:  logger,
		timeout: timeout,
		sem:     semaphore.NewWeighted(maxInFlight),
		now:     time.Now,
	}
}

// Send delivers msg synchronously, bounded by the dispatcher timeout.
func (d *Dispatcher) Send(ctx context.Context, msg events.OutboundMessage) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = d.now()
	}
	return d.channel.Send(ctx, msg)
}

// Go delivers msg in the background. Failures are logged and dropped.
func (d *Dispatcher) Go(msg events.OutboundMessage) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.logger.Warn("notification dropped", "kind", msg.Kind, "to", msg.To, "err", err)
			return
		}
		defer d.sem.Release(1)
		if err := d.Send(ctx, msg); err != nil {
			d.logger.Warn("notification failed", "kind", msg.Kind, "to", msg.To, "appointment_id", msg.AppointmentID, "err", err)
		}
	}()
}

// Drain waits for background sends, or for ctx.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
