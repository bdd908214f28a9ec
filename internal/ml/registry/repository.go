package registry

import (
	"context"
	"errors"

	"kassandra/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository stores trained ensemble artifacts, one row per (model key,
// version). The artifact blob is the serialized predictor envelope;
// hyperparams and metrics ride along as JSON for later comparison.
type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) NextVersion(ctx context.Context, modelKey string) (int, error) {
	_, span := r.tracer.Start(ctx, "model-registry.next-version")
	defer span.End()

	var version int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM model_versions WHERE model_key = $1`, modelKey).Scan(&version)
	return version, err
}

func (r *Repository) Insert(ctx context.Context, model domain.ModelVersion) (*domain.ModelVersion, error) {
	_, span := r.tracer.Start(ctx, "model-registry.insert")
	defer span.End()

	if model.ModelKey == "" || model.Version <= 0 {
		return nil, errors.New("invalid model version payload")
	}
	if len(model.ArtifactBlob) == 0 {
		return nil, errors.New("refusing to register an empty artifact")
	}
	var out domain.ModelVersion
	err := r.pool.QueryRow(ctx, `
INSERT INTO model_versions (
    model_key, version, ticker,
    trained_from, trained_to,
    hyperparams_json, metrics_json,
    artifact_format, artifact_blob
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, model_key, version, ticker,
          trained_from, trained_to,
          hyperparams_json, metrics_json,
          artifact_format, artifact_blob, created_at`,
		model.ModelKey,
		model.Version,
		model.Ticker,
		model.TrainedFrom.UTC(),
		model.TrainedTo.UTC(),
		fallbackJSON(model.HyperparamsJSON),
		fallbackJSON(model.MetricsJSON),
		model.ArtifactFormat,
		model.ArtifactBlob,
	).Scan(
		&out.ID,
		&out.ModelKey,
		&out.Version,
		&out.Ticker,
		&out.TrainedFrom,
		&out.TrainedTo,
		&out.HyperparamsJSON,
		&out.MetricsJSON,
		&out.ArtifactFormat,
		&out.ArtifactBlob,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	normalizeModelTimes(&out)
	return &out, nil
}

// GetLatest returns the highest version for the key, or nil when the
// registry has never seen it.
func (r *Repository) GetLatest(ctx context.Context, modelKey string) (*domain.ModelVersion, error) {
	_, span := r.tracer.Start(ctx, "model-registry.get-latest")
	defer span.End()

	var out domain.ModelVersion
	err := r.pool.QueryRow(ctx, `
SELECT id, model_key, version, ticker,
       trained_from, trained_to,
       hyperparams_json, metrics_json,
       artifact_format, artifact_blob, created_at
FROM model_versions
WHERE model_key = $1
ORDER BY version DESC
LIMIT 1`, modelKey).Scan(
		&out.ID,
		&out.ModelKey,
		&out.Version,
		&out.Ticker,
		&out.TrainedFrom,
		&out.TrainedTo,
		&out.HyperparamsJSON,
		&out.MetricsJSON,
		&out.ArtifactFormat,
		&out.ArtifactBlob,
		&out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	normalizeModelTimes(&out)
	return &out, nil
}

// ListVersions returns recent versions for the key, newest first, without
// artifact blobs.
func (r *Repository) ListVersions(ctx context.Context, modelKey string, limit int) ([]domain.ModelVersion, error) {
	_, span := r.tracer.Start(ctx, "model-registry.list-versions")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, model_key, version, ticker,
       trained_from, trained_to,
       hyperparams_json, metrics_json,
       artifact_format, created_at
FROM model_versions
WHERE model_key = $1
ORDER BY version DESC
LIMIT $2`, modelKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ModelVersion
	for rows.Next() {
		var m domain.ModelVersion
		if err := rows.Scan(
			&m.ID,
			&m.ModelKey,
			&m.Version,
			&m.Ticker,
			&m.TrainedFrom,
			&m.TrainedTo,
			&m.HyperparamsJSON,
			&m.MetricsJSON,
			&m.ArtifactFormat,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		normalizeModelTimes(&m)
		out = append(out, m)
	}
	return out, rows.Err()
}

func normalizeModelTimes(model *domain.ModelVersion) {
	model.TrainedFrom = model.TrainedFrom.UTC()
	model.TrainedTo = model.TrainedTo.UTC()
	model.CreatedAt = model.CreatedAt.UTC()
}

func fallbackJSON(v string) string {
	if v == "" {
		return "{}"
	}
	return v
}
