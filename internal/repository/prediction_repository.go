package repository

import (
	"context"
	"errors"
	"time"

	"kassandra/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// PredictionRepository logs test-partition predictions and the live
// next-day calls, one row per (ticker, session date, model version).
type PredictionRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPredictionRepository(pool PgxPool, tracer trace.Tracer) *PredictionRepository {
	return &PredictionRepository{pool: pool, tracer: tracer}
}

func (r *PredictionRepository) UpsertLog(ctx context.Context, ticker string, modelVersion int, records []domain.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "prediction-repo.upsert-log")
	defer span.End()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO prediction_log (ticker, session_date, model_version, actual, predicted)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (ticker, session_date, model_version) DO UPDATE SET
			     actual = EXCLUDED.actual,
			     predicted = EXCLUDED.predicted`,
			ticker, rec.Date.UTC(), modelVersion, rec.Actual, rec.Predicted,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertNextDay stores tomorrow's call. Actual stays null until the session
// closes and a later run backfills it.
func (r *PredictionRepository) UpsertNextDay(ctx context.Context, ticker string, modelVersion int, date time.Time, predicted float64) error {
	_, span := r.tracer.Start(ctx, "prediction-repo.upsert-next-day")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO prediction_log (ticker, session_date, model_version, actual, predicted)
		 VALUES ($1, $2, $3, NULL, $4)
		 ON CONFLICT (ticker, session_date, model_version) DO UPDATE SET
		     predicted = EXCLUDED.predicted`,
		ticker, date.UTC(), modelVersion, predicted,
	)
	return err
}

// Latest returns the most recent logged prediction for the ticker, or nil
// when the log is empty.
func (r *PredictionRepository) Latest(ctx context.Context, ticker string) (*domain.PredictionRecord, int, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.latest")
	defer span.End()

	var (
		rec     domain.PredictionRecord
		version int
		actual  *float64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT session_date, model_version, actual, predicted
		 FROM prediction_log
		 WHERE ticker = $1
		 ORDER BY session_date DESC, model_version DESC
		 LIMIT 1`,
		ticker,
	).Scan(&rec.Date, &version, &actual, &rec.Predicted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	if actual != nil {
		rec.Actual = *actual
	}
	rec.Date = rec.Date.UTC()
	return &rec, version, nil
}

// ListRange returns logged predictions in [from, to], oldest first.
func (r *PredictionRepository) ListRange(ctx context.Context, ticker string, from, to time.Time) ([]domain.PredictionRecord, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.list-range")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT session_date, actual, predicted
		 FROM prediction_log
		 WHERE ticker = $1 AND session_date >= $2 AND session_date <= $3
		 ORDER BY session_date ASC`,
		ticker, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PredictionRecord
	for rows.Next() {
		var (
			rec    domain.PredictionRecord
			actual *float64
		)
		if err := rows.Scan(&rec.Date, &actual, &rec.Predicted); err != nil {
			return nil, err
		}
		if actual != nil {
			rec.Actual = *actual
		}
		rec.Date = rec.Date.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
