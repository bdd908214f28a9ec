package repository

import (
	"context"
	"time"

	"kassandra/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BarRepository stores daily OHLCV bars keyed by (ticker, session date).
type BarRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewBarRepository(pool PgxPool, tracer trace.Tracer) *BarRepository {
	return &BarRepository{pool: pool, tracer: tracer}
}

func (r *BarRepository) UpsertBars(ctx context.Context, ticker string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "bar-repo.upsert-bars")
	defer span.End()

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(
			`INSERT INTO daily_bars (ticker, session_date, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (ticker, session_date) DO UPDATE SET
			     open = EXCLUDED.open,
			     high = EXCLUDED.high,
			     low = EXCLUDED.low,
			     close = EXCLUDED.close,
			     volume = EXCLUDED.volume`,
			ticker, b.Date.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetBarsInRange returns bars for the ticker in [from, to], oldest first.
func (r *BarRepository) GetBarsInRange(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error) {
	_, span := r.tracer.Start(ctx, "bar-repo.get-bars-in-range")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT session_date, open, high, low, close, volume
		 FROM daily_bars
		 WHERE ticker = $1 AND session_date >= $2 AND session_date <= $3
		 ORDER BY session_date ASC`,
		ticker, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Date = b.Date.UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LatestSession returns the most recent stored session date for the ticker,
// or the zero time when none exist.
func (r *BarRepository) LatestSession(ctx context.Context, ticker string) (time.Time, error) {
	_, span := r.tracer.Start(ctx, "bar-repo.latest-session")
	defer span.End()

	var latest time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(session_date), 'epoch'::timestamptz) FROM daily_bars WHERE ticker = $1`,
		ticker,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	if latest.Unix() == 0 {
		return time.Time{}, nil
	}
	return latest.UTC(), nil
}
