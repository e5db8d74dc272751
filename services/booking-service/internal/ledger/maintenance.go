package ledger

import (
	"context"

	"github.com/md-rashed-zaman/apptchat/libs/events"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/notify"
)

type StatusReport struct {
	BusinessID    string     `json:"business_id"`
	CheckedBefore model.Date `json:"checked_before"`
	Updated       int        `json:"updated"`
}

// UpdateAppointmentStatuses marks every confirmed appointment dated before
// today (business zone) as no_show. The update is conditional on the
// confirmed status, so reruns change nothing.
func (l *Ledger) UpdateAppointmentStatuses(ctx context.Context, businessID string) (StatusReport, error) {
	biz, err := l.store.GetBusiness(ctx, businessID)
	if err != nil {
		return StatusReport{}, err
	}
	today := model.Today(l.now(), biz.Location())
	n, err := l.store.MarkNoShowBefore(ctx, biz.ID, today)
	if err != nil {
		return StatusReport{}, apperr.Dependency("mark no-shows", err)
	}
	if n > 0 {
		l.logger.InfoContext(ctx, "appointments marked no_show", "business_id", biz.ID, "count", n)
	}
	return StatusReport{BusinessID: biz.ID, CheckedBefore: today, Updated: n}, nil
}

type ReminderReport struct {
	BusinessID string     `json:"business_id"`
	Date       model.Date `json:"date"`
	Total      int        `json:"total"`
	Sent       int        `json:"sent"`
	Failed     int        `json:"failed"`
}

// SendTomorrowReminders sends one reminder per confirmed, unreminded
// appointment dated tomorrow. The flag is set only after a successful send,
// so a failed appointment is retried on the next run.
func (l *Ledger) SendTomorrowReminders(ctx context.Context, businessID string) (ReminderReport, error) {
	biz, err := l.store.GetBusiness(ctx, businessID)
	if err != nil {
		return ReminderReport{}, err
	}
	tomorrow := model.Today(l.now(), biz.Location()).AddDays(1)
	due, err := l.store.DueReminders(ctx, biz.ID, tomorrow)
	if err != nil {
		return ReminderReport{}, apperr.Dependency("load reminders", err)
	}

	report := ReminderReport{BusinessID: biz.ID, Date: tomorrow, Total: len(due)}
	for _, appt := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := l.remind(ctx, biz, appt); err != nil {
			report.Failed++
			l.logger.WarnContext(ctx, "reminder failed", "appointment_id", appt.ID, "err", err)
			continue
		}
		report.Sent++
	}
	l.logger.InfoContext(ctx, "reminders processed",
		"business_id", biz.ID, "total", report.Total, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

func (l *Ledger) remind(ctx context.Context, biz model.Business, appt model.Appointment) error {
	customer, err := l.store.GetCustomer(ctx, appt.CustomerID)
	if err != nil {
		return err
	}
	err = l.notifier.Send(ctx, events.OutboundMessage{
		ID:            appt.ID + ":reminder",
		Kind:          events.KindReminder,
		To:            customer.Phone,
		Body:          notify.Reminder(appt, biz),
		AppointmentID: appt.ID,
		BusinessID:    biz.ID,
	})
	if err != nil {
		return err
	}
	_, err = l.store.MarkReminderSent(ctx, appt.ID)
	return err
}
