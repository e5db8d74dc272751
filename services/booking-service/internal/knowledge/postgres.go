package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres ranks faq_chunks with full-text search.
type Postgres struct {
	db querier
}

func NewPostgres(db querier) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Retrieve(ctx context.Context, businessID, query string, k int) ([]Snippet, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := p.db.Query(ctx, `
		SELECT title, body, ts_rank(tsv, q) AS score
		FROM faq_chunks, plainto_tsquery('english', $2) AS q
		WHERE business_id = $1 AND tsv @@ q
		ORDER BY score DESC, id
		LIMIT $3
	`, businessID, query, k)
	if err != nil {
		return nil, fmt.Errorf("faq search: %w", err)
	}
	snippets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Snippet, error) {
		var (
			s     Snippet
			score float32
		)
		err := row.Scan(&s.Title, &s.Body, &score)
		s.Score = float64(score)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("faq search: %w", err)
	}
	return snippets, nil
}
