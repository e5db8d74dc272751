package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptchat/libs/db"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/outbox"
)

const (
	overlapConstraint = "appointments_no_overlap"
	codeConstraint    = "appointments_confirmation_code_key"
)

const appointmentColumns = `id::text, business_id, customer_id::text, service_name, service_duration,
	service_price::float8, appointment_date, start_minute, end_minute, status, confirmation_code,
	notes, cancellation_reason, cancelled_at, reminder_sent, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a          model.Appointment
		date       time.Time
		start, end int
		status     string
	)
	err := row.Scan(&a.ID, &a.BusinessID, &a.CustomerID, &a.Service.Name, &a.Service.DurationMinutes,
		&a.Service.Price, &date, &start, &end, &status, &a.ConfirmationCode,
		&a.Notes, &a.CancellationReason, &a.CancelledAt, &a.ReminderSent, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = model.DateOf(date)
	a.StartTime = model.TimeOfDay(start)
	a.EndTime = model.TimeOfDay(end)
	a.Status = model.Status(status)
	return a, nil
}

func (p *Postgres) queryAppointments(ctx context.Context, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) {
		return scanAppointment(row)
	})
}

func (p *Postgres) ConfirmedOn(ctx context.Context, businessID string, date model.Date) ([]model.Appointment, error) {
	return p.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND appointment_date = $2 AND status = 'confirmed'
		ORDER BY start_minute
	`, businessID, date.Time())
}

func (p *Postgres) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, apperr.NotFound("appointment not found")
	}
	a, err := scanAppointment(p.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return model.Appointment{}, apperr.NotFound("appointment not found")
	}
	return a, err
}

func (p *Postgres) FindByConfirmationCode(ctx context.Context, code string) (model.Appointment, error) {
	a, err := scanAppointment(p.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments WHERE confirmation_code = upper($1)
	`, code))
	if db.IsNotFound(err) {
		return model.Appointment{}, apperr.NotFound("no appointment with code %s", code)
	}
	return a, err
}

// CustomerAppointments lists confirmed appointments dated from onwards, soonest first.
func (p *Postgres) CustomerAppointments(ctx context.Context, customerID string, from model.Date) ([]model.Appointment, error) {
	return p.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE customer_id = $1 AND status = 'confirmed' AND appointment_date >= $2
		ORDER BY appointment_date, start_minute
	`, customerID, from.Time())
}

// CreateAppointment inserts appt, bumps the customer's counter and records
// evt in one transaction. The exclusion constraint is the final arbiter of
// overlap.
func (p *Postgres) CreateAppointment(ctx context.Context, appt model.Appointment, evt outbox.Event) (model.Appointment, error) {
	var created model.Appointment
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		created, err = scanAppointment(tx.QueryRow(ctx, `
			INSERT INTO appointments (id, business_id, customer_id, service_name, service_duration, service_price,
				appointment_date, start_minute, end_minute, status, confirmation_code, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'confirmed', $10, $11)
			RETURNING `+appointmentColumns,
			appt.ID, appt.BusinessID, appt.CustomerID, appt.Service.Name, appt.Service.DurationMinutes, appt.Service.Price,
			appt.Date.Time(), int(appt.StartTime), int(appt.EndTime), appt.ConfirmationCode, appt.Notes))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE customers SET total_appointments = total_appointments + 1 WHERE id = $1
		`, appt.CustomerID); err != nil {
			return err
		}
		return p.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return model.Appointment{}, translateWriteError(err)
	}
	return created, nil
}

func (p *Postgres) RescheduleAppointment(ctx context.Context, id string, date model.Date, start, end model.TimeOfDay, note string, evt outbox.Event) (model.Appointment, error) {
	var updated model.Appointment
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		updated, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET appointment_date = $2,
				start_minute = $3,
				end_minute = $4,
				notes = CASE WHEN notes = '' THEN $5 ELSE notes || E'\n' || $5 END,
				reminder_sent = false,
				updated_at = now()
			WHERE id = $1 AND status = 'confirmed'
			RETURNING `+appointmentColumns, id, date.Time(), int(start), int(end), note))
		if err != nil {
			return err
		}
		return p.outbox.Insert(ctx, tx, evt)
	})
	if db.IsNotFound(err) {
		return model.Appointment{}, p.explainMissing(ctx, id)
	}
	if err != nil {
		return model.Appointment{}, translateWriteError(err)
	}
	return updated, nil
}

func (p *Postgres) CancelAppointment(ctx context.Context, id, reason string, at time.Time, evt outbox.Event) (model.Appointment, error) {
	var cancelled model.Appointment
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		cancelled, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = 'cancelled',
				cancellation_reason = $2,
				cancelled_at = $3,
				updated_at = now()
			WHERE id = $1 AND status = 'confirmed'
			RETURNING `+appointmentColumns, id, reason, at))
		if err != nil {
			return err
		}
		return p.outbox.Insert(ctx, tx, evt)
	})
	if db.IsNotFound(err) {
		return model.Appointment{}, p.explainMissing(ctx, id)
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("cancel appointment: %w", err)
	}
	return cancelled, nil
}

func (p *Postgres) CompleteAppointment(ctx context.Context, id string, evt outbox.Event) (model.Appointment, error) {
	var done model.Appointment
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		done, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = 'completed', updated_at = now()
			WHERE id = $1 AND status = 'confirmed'
			RETURNING `+appointmentColumns, id))
		if err != nil {
			return err
		}
		return p.outbox.Insert(ctx, tx, evt)
	})
	if db.IsNotFound(err) {
		return model.Appointment{}, p.explainMissing(ctx, id)
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("complete appointment: %w", err)
	}
	return done, nil
}

// explainMissing distinguishes an unknown id from a row that left the
// confirmed state after the caller read it.
func (p *Postgres) explainMissing(ctx context.Context, id string) error {
	a, err := p.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	return apperr.Policy("appointment is %s", a.Status)
}

// MarkNoShowBefore moves confirmed appointments dated before the given day
// to no_show. Rows already moved are untouched, so reruns are no-ops.
func (p *Postgres) MarkNoShowBefore(ctx context.Context, businessID string, before model.Date) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE appointments
		SET status = 'no_show', updated_at = now()
		WHERE business_id = $1 AND status = 'confirmed' AND appointment_date < $2
	`, businessID, before.Time())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) DueReminders(ctx context.Context, businessID string, date model.Date) ([]model.Appointment, error) {
	return p.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND appointment_date = $2 AND status = 'confirmed' AND reminder_sent = false
		ORDER BY start_minute
	`, businessID, date.Time())
}

// MarkReminderSent reports false when another run already marked the row.
func (p *Postgres) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true, updated_at = now()
		WHERE id = $1 AND reminder_sent = false AND status = 'confirmed'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func translateWriteError(err error) error {
	switch {
	case db.HasCode(err, db.CodeExclusionViolation) && db.ConstraintName(err) == overlapConstraint:
		return apperr.Conflict("that time was just booked by someone else")
	case db.HasCode(err, db.CodeUniqueViolation) && db.ConstraintName(err) == codeConstraint:
		return ErrDuplicateCode
	}
	return err
}
