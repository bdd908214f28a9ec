package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetLatestPrediction godoc
// @Summary      Latest prediction
// @Description  Returns the most recent logged prediction for the ticker
// @Tags         predictions
// @Produce      json
// @Param        ticker  query  string  false  "Ticker symbol (defaults to the configured ticker)"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/predictions/latest [get]
func (h *Handler) GetLatestPrediction(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-prediction")
	defer span.End()

	ticker := c.DefaultQuery("ticker", h.ticker)
	span.SetAttributes(attribute.String("ticker", ticker))

	rec, version, err := h.preds.Latest(ctx, ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no predictions logged for " + ticker})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker":        ticker,
		"model_version": version,
		"prediction":    rec,
	})
}

// GetPredictionLog godoc
// @Summary      Prediction log
// @Description  Returns logged predictions for the ticker within a date range
// @Tags         predictions
// @Produce      json
// @Param        ticker  query  string  false  "Ticker symbol (defaults to the configured ticker)"
// @Param        from    query  string  false  "Start date (YYYY-MM-DD), defaults to 30 days ago"
// @Param        to      query  string  false  "End date (YYYY-MM-DD), defaults to today"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/predictions [get]
func (h *Handler) GetPredictionLog(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-prediction-log")
	defer span.End()

	ticker := c.DefaultQuery("ticker", h.ticker)
	span.SetAttributes(attribute.String("ticker", ticker))

	now := time.Now().UTC()
	from, err := parseDateQuery(c, "from", now.AddDate(0, 0, -30))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, expected YYYY-MM-DD"})
		return
	}
	to, err := parseDateQuery(c, "to", now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, expected YYYY-MM-DD"})
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to date is before from date"})
		return
	}

	records, err := h.preds.ListRange(ctx, ticker, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker":      ticker,
		"count":       len(records),
		"predictions": records,
	})
}

func parseDateQuery(c *gin.Context, name string, fallback time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}
