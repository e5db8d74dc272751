package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"gopkg.in/yaml.v3"
)

// BusinessFile is the YAML seed describing the active business.
type BusinessFile struct {
	ID                 string          `yaml:"id"`
	Name               string          `yaml:"name"`
	Timezone           string          `yaml:"timezone"`
	Address            string          `yaml:"address"`
	WorkingHours       WeeklyHours     `yaml:"working_hours"`
	Services           []model.Service `yaml:"services"`
	BufferTimeMinutes  *int            `yaml:"buffer_time_minutes"`
	AdvanceBookingDays *int            `yaml:"advance_booking_days"`
	CancellationHours  *int            `yaml:"cancellation_hours"`
	FAQ                []model.FAQ     `yaml:"faq"`
}

// DefaultBusiness is used when no seed file is configured.
func DefaultBusiness(id string) model.Business {
	weekday := &model.DayHours{Open: model.NewTimeOfDay(9, 0), Close: model.NewTimeOfDay(17, 0)}
	var hours [7]*model.DayHours
	for d := time.Monday; d <= time.Friday; d++ {
		h := *weekday
		hours[d] = &h
	}
	hours[time.Saturday] = &model.DayHours{Open: model.NewTimeOfDay(10, 0), Close: model.NewTimeOfDay(16, 0)}
	hours[time.Sunday] = &model.DayHours{Closed: true}
	return model.Business{
		ID:           id,
		Name:         "Demo Salon",
		Timezone:     "Africa/Nairobi",
		WorkingHours: hours,
		Services: []model.Service{
			{Name: "Haircut", DurationMinutes: 30, Price: 500},
			{Name: "Hair Coloring", DurationMinutes: 90, Price: 2500},
			{Name: "Manicure", DurationMinutes: 45, Price: 800},
		},
		BufferTimeMinutes:  15,
		AdvanceBookingDays: 30,
		CancellationHours:  24,
	}
}

// LoadBusinessFile reads a YAML seed. Omitted policy fields keep the defaults.
func LoadBusinessFile(path string) (model.Business, []model.FAQ, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Business{}, nil, err
	}
	return ParseBusinessFile(raw)
}

func ParseBusinessFile(raw []byte) (model.Business, []model.FAQ, error) {
	var f BusinessFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return model.Business{}, nil, fmt.Errorf("parse business file: %w", err)
	}
	if f.ID == "" {
		return model.Business{}, nil, fmt.Errorf("business file: id is required")
	}

	b := DefaultBusiness(f.ID)
	if f.Name != "" {
		b.Name = f.Name
	}
	if f.Timezone != "" {
		if _, err := time.LoadLocation(f.Timezone); err != nil {
			return model.Business{}, nil, fmt.Errorf("business file: timezone: %w", err)
		}
		b.Timezone = f.Timezone
	}
	b.Address = f.Address
	if f.WorkingHours != nil {
		hours, err := f.WorkingHours.Model()
		if err != nil {
			return model.Business{}, nil, fmt.Errorf("business file: %w", err)
		}
		b.WorkingHours = hours
	}
	if len(f.Services) > 0 {
		for _, s := range f.Services {
			if s.Name == "" || s.DurationMinutes <= 0 {
				return model.Business{}, nil, fmt.Errorf("business file: service %q needs a name and positive duration", s.Name)
			}
		}
		b.Services = f.Services
	}
	if f.BufferTimeMinutes != nil {
		b.BufferTimeMinutes = *f.BufferTimeMinutes
	}
	if f.AdvanceBookingDays != nil {
		b.AdvanceBookingDays = *f.AdvanceBookingDays
	}
	if f.CancellationHours != nil {
		b.CancellationHours = *f.CancellationHours
	}
	return b, f.FAQ, nil
}

// ReplaceFAQ swaps a business's knowledge snippets.
func (p *Postgres) ReplaceFAQ(ctx context.Context, businessID string, entries []model.FAQ) error {
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM faq_chunks WHERE business_id = $1`, businessID); err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := tx.Exec(ctx, `
				INSERT INTO faq_chunks (business_id, title, body) VALUES ($1, $2, $3)
			`, businessID, e.Title, e.Body); err != nil {
				return err
			}
		}
		return nil
	})
}
