package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// RunPipeline godoc
// @Summary      Run the prediction pipeline
// @Description  Ingests market data and sentiment signals, retrains the ensemble and returns the run report
// @Tags         pipeline
// @Produce      json
// @Success      200  {object}  service.RunReport
// @Failure      500  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/pipeline/run [post]
func (h *Handler) RunPipeline(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-pipeline")
	defer span.End()

	span.SetAttributes(attribute.String("ticker", h.ticker))

	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline not configured"})
		return
	}

	report, err := h.pipeline.Run(ctx, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetReport godoc
// @Summary      Latest evaluation report
// @Description  Returns the cached report of the most recent pipeline run, including test metrics and the next-day call
// @Tags         pipeline
// @Produce      json
// @Success      200  {object}  cache.Snapshot
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/report [get]
func (h *Handler) GetReport(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-report")
	defer span.End()

	ticker := c.DefaultQuery("ticker", h.ticker)
	span.SetAttributes(attribute.String("ticker", ticker))

	snap, err := h.getSnapshot(ctx, ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report available, run the pipeline first"})
		return
	}

	c.JSON(http.StatusOK, snap)
}
