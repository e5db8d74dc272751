package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptchat/libs/db"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/outbox"
)

type Postgres struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool, outbox: outbox.NewRepository(pool)}
}

func (p *Postgres) GetBusiness(ctx context.Context, id string) (model.Business, error) {
	var (
		b        model.Business
		hoursRaw []byte
		svcRaw   []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, timezone, address, working_hours, services,
			buffer_time_minutes, advance_booking_days, cancellation_hours
		FROM businesses
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Timezone, &b.Address, &hoursRaw, &svcRaw,
		&b.BufferTimeMinutes, &b.AdvanceBookingDays, &b.CancellationHours)
	if db.IsNotFound(err) {
		return model.Business{}, apperr.NotFound("business %s not found", id)
	}
	if err != nil {
		return model.Business{}, fmt.Errorf("get business: %w", err)
	}

	var hours WeeklyHours
	if err := json.Unmarshal(hoursRaw, &hours); err != nil {
		return model.Business{}, fmt.Errorf("decode working hours: %w", err)
	}
	if b.WorkingHours, err = hours.Model(); err != nil {
		return model.Business{}, err
	}
	if err := json.Unmarshal(svcRaw, &b.Services); err != nil {
		return model.Business{}, fmt.Errorf("decode services: %w", err)
	}
	return b, nil
}

func (p *Postgres) ListBusinessIDs(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM businesses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *Postgres) UpsertBusiness(ctx context.Context, b model.Business) error {
	hours, err := json.Marshal(HoursFromModel(b.WorkingHours))
	if err != nil {
		return err
	}
	services := b.Services
	if services == nil {
		services = []model.Service{}
	}
	svc, err := json.Marshal(services)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO businesses (id, name, timezone, address, working_hours, services,
			buffer_time_minutes, advance_booking_days, cancellation_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			address = EXCLUDED.address,
			working_hours = EXCLUDED.working_hours,
			services = EXCLUDED.services,
			buffer_time_minutes = EXCLUDED.buffer_time_minutes,
			advance_booking_days = EXCLUDED.advance_booking_days,
			cancellation_hours = EXCLUDED.cancellation_hours,
			updated_at = now()
	`, b.ID, b.Name, b.Timezone, b.Address, hours, svc,
		b.BufferTimeMinutes, b.AdvanceBookingDays, b.CancellationHours)
	return err
}

const customerColumns = `id::text, phone, name, total_appointments, last_interaction, created_at`

func scanCustomer(row pgx.Row) (model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.TotalAppointments, &c.LastInteraction, &c.CreatedAt)
	return c, err
}

// UpsertCustomer creates the customer on first contact and touches
// last_interaction afterwards. A blank name never overwrites a known one.
func (p *Postgres) UpsertCustomer(ctx context.Context, phone, name string, at time.Time) (model.Customer, error) {
	c, err := scanCustomer(p.pool.QueryRow(ctx, `
		INSERT INTO customers (phone, name, last_interaction)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET
			last_interaction = EXCLUDED.last_interaction,
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE customers.name END
		RETURNING `+customerColumns, phone, name, at))
	if err != nil {
		return model.Customer{}, fmt.Errorf("upsert customer: %w", err)
	}
	return c, nil
}

func (p *Postgres) GetCustomer(ctx context.Context, id string) (model.Customer, error) {
	c, err := scanCustomer(p.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return model.Customer{}, apperr.NotFound("customer not found")
	}
	return c, err
}

func (p *Postgres) FindCustomerByPhone(ctx context.Context, phone string) (model.Customer, error) {
	c, err := scanCustomer(p.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone))
	if db.IsNotFound(err) {
		return model.Customer{}, apperr.NotFound("customer not found")
	}
	return c, err
}
