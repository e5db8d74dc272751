package storage

import (
	"context"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptchat/libs/db"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

// ConversationLogRepository is the append-only per-customer message log.
type ConversationLogRepository struct {
	pool *db.Pool
}

func NewConversationLogRepository(pool *db.Pool) *ConversationLogRepository {
	return &ConversationLogRepository{pool: pool}
}

func (r *ConversationLogRepository) Append(ctx context.Context, phone string, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, []any{phone, string(m.Role), m.Content, m.Timestamp})
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"conversation_messages"},
		[]string{"phone", "role", "content", "created_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Recent returns up to limit messages, oldest first.
func (r *ConversationLogRepository) Recent(ctx context.Context, phone string, limit int) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role, content, created_at
		FROM conversation_messages
		WHERE phone = $1
		ORDER BY id DESC
		LIMIT $2
	`, phone, limit)
	if err != nil {
		return nil, err
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Message, error) {
		var (
			m    model.Message
			role string
		)
		err := row.Scan(&role, &m.Content, &m.Timestamp)
		m.Role = model.Role(role)
		return m, err
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}
