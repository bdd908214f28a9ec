package handler

import (
	"context"
	"time"

	"kassandra/internal/cache"
	"kassandra/internal/domain"
	"kassandra/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type PipelineRunner interface {
	Run(ctx context.Context, now time.Time) (*service.RunReport, error)
}

type PredictionReader interface {
	Latest(ctx context.Context, ticker string) (*domain.PredictionRecord, int, error)
	ListRange(ctx context.Context, ticker string, from, to time.Time) ([]domain.PredictionRecord, error)
}

type ModelReader interface {
	GetLatest(ctx context.Context, modelKey string) (*domain.ModelVersion, error)
	ListVersions(ctx context.Context, modelKey string, limit int) ([]domain.ModelVersion, error)
}

type Handler struct {
	tracer   trace.Tracer
	ticker   string
	apiKey   string
	pipeline PipelineRunner
	preds    PredictionReader
	models   ModelReader

	getSnapshot func(ctx context.Context, ticker string) (*cache.Snapshot, error)
}

func New(tracer trace.Tracer, ticker, apiKey string, pipeline PipelineRunner, preds PredictionReader, models ModelReader) *Handler {
	return &Handler{
		tracer:      tracer,
		ticker:      ticker,
		apiKey:      apiKey,
		pipeline:    pipeline,
		preds:       preds,
		models:      models,
		getSnapshot: cache.GetSnapshot,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/report", h.GetReport)
	r.GET("/api/predictions/latest", h.GetLatestPrediction)
	r.GET("/api/predictions", h.GetPredictionLog)
	r.GET("/api/models", h.ListModels)
	r.GET("/api/models/latest", h.GetLatestModel)
	r.POST("/api/predict", h.Predict)
	r.POST("/api/pipeline/run", APIKeyAuth(h.apiKey), h.RunPipeline)
}
