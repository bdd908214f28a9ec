package repository

import (
	"context"
	"time"

	"kassandra/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// SignalRepository stores scored sentiment events. Events are keyed by
// (ticker, source, item id) so re-fetching a feed re-scores in place
// instead of duplicating rows.
type SignalRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSignalRepository(pool PgxPool, tracer trace.Tracer) *SignalRepository {
	return &SignalRepository{pool: pool, tracer: tracer}
}

type StoredEvent struct {
	ItemID string
	Event  domain.SignalEvent
}

func (r *SignalRepository) UpsertEvents(ctx context.Context, ticker string, events []StoredEvent) error {
	if len(events) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "signal-repo.upsert-events")
	defer span.End()

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(
			`INSERT INTO signal_events (ticker, source, source_item_id, event_date, score, weight, title)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (ticker, source, source_item_id) DO UPDATE SET
			     event_date = EXCLUDED.event_date,
			     score = EXCLUDED.score,
			     weight = EXCLUDED.weight,
			     title = EXCLUDED.title`,
			ticker, e.Event.Source, e.ItemID, e.Event.Date.UTC(), e.Event.Score, e.Event.Weight, e.Event.Title,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetEvents returns scored events for one source in [from, to], oldest first.
func (r *SignalRepository) GetEvents(ctx context.Context, ticker, source string, from, to time.Time) ([]domain.SignalEvent, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.get-events")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT event_date, score, weight, source, title
		 FROM signal_events
		 WHERE ticker = $1 AND source = $2 AND event_date >= $3 AND event_date <= $4
		 ORDER BY event_date ASC`,
		ticker, source, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SignalEvent
	for rows.Next() {
		var e domain.SignalEvent
		if err := rows.Scan(&e.Date, &e.Score, &e.Weight, &e.Source, &e.Title); err != nil {
			return nil, err
		}
		e.Date = e.Date.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
