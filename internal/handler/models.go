package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"kassandra/internal/domain"
	"kassandra/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// modelSummary is the registry row without the artifact blob.
type modelSummary struct {
	ModelKey       string          `json:"model_key"`
	Version        int             `json:"version"`
	Ticker         string          `json:"ticker"`
	TrainedFrom    string          `json:"trained_from"`
	TrainedTo      string          `json:"trained_to"`
	Hyperparams    json.RawMessage `json:"hyperparams"`
	Metrics        json.RawMessage `json:"metrics"`
	ArtifactFormat string          `json:"artifact_format"`
	ArtifactBytes  int             `json:"artifact_bytes"`
	CreatedAt      string          `json:"created_at"`
}

func summarize(m domain.ModelVersion) modelSummary {
	return modelSummary{
		ModelKey:       m.ModelKey,
		Version:        m.Version,
		Ticker:         m.Ticker,
		TrainedFrom:    m.TrainedFrom.Format("2006-01-02"),
		TrainedTo:      m.TrainedTo.Format("2006-01-02"),
		Hyperparams:    rawOrNull(m.HyperparamsJSON),
		Metrics:        rawOrNull(m.MetricsJSON),
		ArtifactFormat: m.ArtifactFormat,
		ArtifactBytes:  len(m.ArtifactBlob),
		CreatedAt:      m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func rawOrNull(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}

func (h *Handler) modelKey(c *gin.Context) string {
	return service.ModelKeyFor(c.DefaultQuery("ticker", h.ticker))
}

// ListModels godoc
// @Summary      List trained model versions
// @Description  Returns registry metadata for trained ensembles, newest first, without artifact payloads
// @Tags         models
// @Produce      json
// @Param        ticker  query  string  false  "Ticker symbol (defaults to the configured ticker)"
// @Param        limit   query  int     false  "Maximum versions to return (default 20)"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/models [get]
func (h *Handler) ListModels(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-models")
	defer span.End()

	key := h.modelKey(c)
	span.SetAttributes(attribute.String("model_key", key))

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	versions, err := h.models.ListVersions(ctx, key, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summaries := make([]modelSummary, 0, len(versions))
	for _, m := range versions {
		summaries = append(summaries, summarize(m))
	}

	c.JSON(http.StatusOK, gin.H{
		"model_key": key,
		"count":     len(summaries),
		"versions":  summaries,
	})
}

// GetLatestModel godoc
// @Summary      Latest trained model
// @Description  Returns registry metadata for the most recent ensemble version
// @Tags         models
// @Produce      json
// @Param        ticker  query  string  false  "Ticker symbol (defaults to the configured ticker)"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/models/latest [get]
func (h *Handler) GetLatestModel(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-model")
	defer span.End()

	key := h.modelKey(c)
	span.SetAttributes(attribute.String("model_key", key))

	latest, err := h.models.GetLatest(ctx, key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no trained models registered for " + key})
		return
	}

	c.JSON(http.StatusOK, summarize(*latest))
}
