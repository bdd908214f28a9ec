package handler

import (
	"net/http"

	"kassandra/internal/ml/ensemble"
	"kassandra/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type predictRequest struct {
	Ticker   string             `json:"ticker"`
	Features map[string]float64 `json:"features" binding:"required"`
}

// Predict godoc
// @Summary      Score one feature row
// @Description  Loads the latest registered ensemble and predicts the next close for a single feature vector
// @Tags         predictions
// @Accept       json
// @Produce      json
// @Param        request  body  predictRequest  true  "Named feature values, keyed by feature column"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/predict [post]
func (h *Handler) Predict(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.predict")
	defer span.End()

	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	ticker := req.Ticker
	if ticker == "" {
		ticker = h.ticker
	}
	key := service.ModelKeyFor(ticker)
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

	predictor, err := ensemble.UnmarshalBinary(latest.ArtifactBlob)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored artifact is unreadable: " + err.Error()})
		return
	}

	names := predictor.FeatureNames()
	sample := make([]float64, len(names))
	var missing []string
	for i, name := range names {
		v, ok := req.Features[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		sample[i] = v
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing features", "missing": missing})
		return
	}

	predicted, err := predictor.PredictOne(sample)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker":        ticker,
		"model_version": latest.Version,
		"predicted":     predicted,
	})
}
