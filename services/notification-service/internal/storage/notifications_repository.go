// Package storage records delivery attempts.
package storage

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/apptchat/libs/db"
)

//go:embed schema.sql
var schema string

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, pool *db.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Notification struct {
	MessageID     string
	Kind          string
	AppointmentID string
	BusinessID    string
	Recipient     string
	Body          string
	ProviderID    string
	Status        string
	ErrorReason   string
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	db execer
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications (message_id, kind, appointment_id, business_id, recipient, body, provider_id, status, error_reason)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''))
	`, n.MessageID, n.Kind, n.AppointmentID, n.BusinessID, n.Recipient, n.Body, n.ProviderID, n.Status, n.ErrorReason)
	return err
}
