package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kassandra/internal/fusion"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// FeatureRepository persists fused feature rows as JSONB documents, one per
// (ticker, session date). The pending row is stored with a null target so a
// later run can serve next-day inference without refusing the whole table.
type FeatureRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewFeatureRepository(pool PgxPool, tracer trace.Tracer) *FeatureRepository {
	return &FeatureRepository{pool: pool, tracer: tracer}
}

func (r *FeatureRepository) UpsertTable(ctx context.Context, ticker string, table *fusion.Table) error {
	if table == nil || len(table.Rows) == 0 {
		return fmt.Errorf("refusing to persist an empty feature table")
	}

	_, span := r.tracer.Start(ctx, "feature-repo.upsert-table")
	defer span.End()

	batch := &pgx.Batch{}
	queue := func(row fusion.Row, target any) error {
		doc := make(map[string]float64, len(table.Columns))
		for i, col := range table.Columns {
			doc[col] = row.Values[i]
		}
		blob, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO fused_features (ticker, session_date, features, target)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (ticker, session_date) DO UPDATE SET
			     features = EXCLUDED.features,
			     target = EXCLUDED.target`,
			ticker, row.Date.UTC(), blob, target,
		)
		return nil
	}

	for _, row := range table.Rows {
		if err := queue(row, row.Target); err != nil {
			return err
		}
	}
	if table.Pending != nil {
		if err := queue(*table.Pending, nil); err != nil {
			return err
		}
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	count := len(table.Rows)
	if table.Pending != nil {
		count++
	}
	for i := 0; i < count; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// FeatureDoc is one persisted fused row read back from storage.
type FeatureDoc struct {
	Date     time.Time
	Features map[string]float64
	Target   *float64
}

func (r *FeatureRepository) GetRange(ctx context.Context, ticker string, from, to time.Time) ([]FeatureDoc, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.get-range")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT session_date, features, target
		 FROM fused_features
		 WHERE ticker = $1 AND session_date >= $2 AND session_date <= $3
		 ORDER BY session_date ASC`,
		ticker, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []FeatureDoc
	for rows.Next() {
		var (
			doc  FeatureDoc
			blob []byte
		)
		if err := rows.Scan(&doc.Date, &blob, &doc.Target); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blob, &doc.Features); err != nil {
			return nil, fmt.Errorf("decode feature document for %s: %w", doc.Date.Format("2006-01-02"), err)
		}
		doc.Date = doc.Date.UTC()
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
