package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kassandra/internal/cache"
	"kassandra/internal/domain"
	"kassandra/internal/ml/dataset"
	"kassandra/internal/ml/ensemble"
	"kassandra/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type stubRunner struct {
	report *service.RunReport
	err    error
	calls  int
}

func (s *stubRunner) Run(ctx context.Context, now time.Time) (*service.RunReport, error) {
	s.calls++
	return s.report, s.err
}

type stubPredictions struct {
	latest     *domain.PredictionRecord
	version    int
	records    []domain.PredictionRecord
	latestErr  error
	listErr    error
	listedFrom time.Time
	listedTo   time.Time
}

func (s *stubPredictions) Latest(ctx context.Context, ticker string) (*domain.PredictionRecord, int, error) {
	return s.latest, s.version, s.latestErr
}

func (s *stubPredictions) ListRange(ctx context.Context, ticker string, from, to time.Time) ([]domain.PredictionRecord, error) {
	s.listedFrom, s.listedTo = from, to
	return s.records, s.listErr
}

type stubModels struct {
	latest   *domain.ModelVersion
	versions []domain.ModelVersion
	err      error
}

func (s *stubModels) GetLatest(ctx context.Context, modelKey string) (*domain.ModelVersion, error) {
	return s.latest, s.err
}

func (s *stubModels) ListVersions(ctx context.Context, modelKey string, limit int) ([]domain.ModelVersion, error) {
	if limit < len(s.versions) {
		return s.versions[:limit], s.err
	}
	return s.versions, s.err
}

func newTestHandler(runner PipelineRunner, preds PredictionReader) *Handler {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	return New(tracer, "AAPL", "", runner, preds, &stubModels{})
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRunPipeline(t *testing.T) {
	runner := &stubRunner{report: &service.RunReport{Ticker: "AAPL", ModelVersion: 3, Sessions: 140}}
	h := newTestHandler(runner, &stubPredictions{})

	w := serve(h, "POST", "/api/pipeline/run")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if runner.calls != 1 {
		t.Errorf("expected 1 pipeline run, got %d", runner.calls)
	}

	var report service.RunReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.ModelVersion != 3 || report.Sessions != 140 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestRunPipelineError(t *testing.T) {
	runner := &stubRunner{err: errors.New("feed unavailable")}
	h := newTestHandler(runner, &stubPredictions{})

	w := serve(h, "POST", "/api/pipeline/run")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
}

func TestRunPipelineNotConfigured(t *testing.T) {
	h := newTestHandler(nil, &stubPredictions{})

	w := serve(h, "POST", "/api/pipeline/run")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
}

func TestRunPipelineRequiresAPIKey(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	runner := &stubRunner{report: &service.RunReport{}}
	h := New(tracer, "AAPL", "secret", runner, &stubPredictions{}, &stubModels{})

	w := serve(h, "POST", "/api/pipeline/run")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without key, got %d", w.Code)
	}
	if runner.calls != 0 {
		t.Errorf("pipeline ran without auth")
	}
}

func TestGetLatestPrediction(t *testing.T) {
	date := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	preds := &stubPredictions{
		latest:  &domain.PredictionRecord{Date: date, Predicted: 188.5, Actual: 187.2},
		version: 4,
	}
	h := newTestHandler(&stubRunner{}, preds)

	w := serve(h, "GET", "/api/predictions/latest")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Ticker       string                  `json:"ticker"`
		ModelVersion int                     `json:"model_version"`
		Prediction   domain.PredictionRecord `json:"prediction"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Ticker != "AAPL" || resp.ModelVersion != 4 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Prediction.Predicted != 188.5 {
		t.Errorf("expected predicted 188.5, got %f", resp.Prediction.Predicted)
	}
}

func TestGetLatestPredictionNotFound(t *testing.T) {
	h := newTestHandler(&stubRunner{}, &stubPredictions{})

	w := serve(h, "GET", "/api/predictions/latest")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestGetPredictionLog(t *testing.T) {
	preds := &stubPredictions{
		records: []domain.PredictionRecord{
			{Date: time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC), Predicted: 186.0},
			{Date: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), Predicted: 188.5},
		},
	}
	h := newTestHandler(&stubRunner{}, preds)

	w := serve(h, "GET", "/api/predictions?from=2024-06-01&to=2024-06-30")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count       int                      `json:"count"`
		Predictions []domain.PredictionRecord `json:"predictions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 predictions, got %d", resp.Count)
	}
	if got := preds.listedFrom.Format("2006-01-02"); got != "2024-06-01" {
		t.Errorf("expected from 2024-06-01, got %s", got)
	}
}

func TestGetPredictionLogBadDates(t *testing.T) {
	h := newTestHandler(&stubRunner{}, &stubPredictions{})

	w := serve(h, "GET", "/api/predictions?from=june-first")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed date, got %d", w.Code)
	}

	w = serve(h, "GET", "/api/predictions?from=2024-06-30&to=2024-06-01")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for inverted range, got %d", w.Code)
	}
}

func TestListModels(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	models := &stubModels{
		versions: []domain.ModelVersion{
			{ModelKey: "close-ensemble:AAPL", Version: 2, Ticker: "AAPL", MetricsJSON: `{"test":{"rmse":1.2}}`, ArtifactBlob: []byte("blob")},
			{ModelKey: "close-ensemble:AAPL", Version: 1, Ticker: "AAPL"},
		},
	}
	h := New(tracer, "AAPL", "", &stubRunner{}, &stubPredictions{}, models)

	w := serve(h, "GET", "/api/models")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ModelKey string         `json:"model_key"`
		Count    int            `json:"count"`
		Versions []modelSummary `json:"versions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ModelKey != "close-ensemble:AAPL" || resp.Count != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Versions[0].ArtifactBytes != 4 {
		t.Errorf("expected artifact size 4 bytes, got %d", resp.Versions[0].ArtifactBytes)
	}
	if string(resp.Versions[0].Metrics) == "null" {
		t.Error("expected metrics json to pass through")
	}
}

func TestGetLatestModelNotFound(t *testing.T) {
	h := newTestHandler(&stubRunner{}, &stubPredictions{})

	w := serve(h, "GET", "/api/models/latest")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func trainedArtifact(t *testing.T) ([]byte, []string) {
	t.Helper()

	names := []string{"f0", "f1"}
	split := &dataset.Split{}
	for i := 0; i < 40; i++ {
		row := []float64{float64(i), float64(i % 5)}
		y := 2*row[0] + row[1]
		if i < 32 {
			split.XTrain = append(split.XTrain, row)
			split.YTrain = append(split.YTrain, y)
		} else {
			split.XTest = append(split.XTest, row)
			split.YTest = append(split.YTest, y)
		}
	}

	opts := ensemble.DefaultTrainOptions()
	opts.Forest.Trees = 10
	opts.Boost.Rounds = 20
	opts.XBoost.Rounds = 20

	p := ensemble.New()
	if err := p.Train(split, names, opts); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	blob, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return blob, names
}

func TestPredict(t *testing.T) {
	blob, names := trainedArtifact(t)
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	models := &stubModels{latest: &domain.ModelVersion{Version: 5, ArtifactBlob: blob}}
	h := New(tracer, "AAPL", "", &stubRunner{}, &stubPredictions{}, models)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)

	body := `{"features":{"` + names[0] + `":10,"` + names[1] + `":2}}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ModelVersion int     `json:"model_version"`
		Predicted    float64 `json:"predicted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ModelVersion != 5 {
		t.Errorf("expected model version 5, got %d", resp.ModelVersion)
	}
	if resp.Predicted < 10 || resp.Predicted > 35 {
		t.Errorf("prediction %f far outside the trained target range", resp.Predicted)
	}
}

func TestPredictMissingFeatures(t *testing.T) {
	blob, _ := trainedArtifact(t)
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	models := &stubModels{latest: &domain.ModelVersion{Version: 1, ArtifactBlob: blob}}
	h := New(tracer, "AAPL", "", &stubRunner{}, &stubPredictions{}, models)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/predict", strings.NewReader(`{"features":{"f0":10}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing features, got %d", w.Code)
	}
}

func TestPredictNoModel(t *testing.T) {
	h := newTestHandler(&stubRunner{}, &stubPredictions{})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/predict", strings.NewReader(`{"features":{"f0":1}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestGetReport(t *testing.T) {
	h := newTestHandler(&stubRunner{}, &stubPredictions{})
	h.getSnapshot = func(ctx context.Context, ticker string) (*cache.Snapshot, error) {
		return &cache.Snapshot{Ticker: ticker, ModelVersion: 2, NextClose: 190.1}, nil
	}

	w := serve(h, "GET", "/api/report")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap cache.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.Ticker != "AAPL" || snap.ModelVersion != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestGetReportMissing(t *testing.T) {
	h := newTestHandler(&stubRunner{}, &stubPredictions{})
	h.getSnapshot = func(ctx context.Context, ticker string) (*cache.Snapshot, error) {
		return nil, nil
	}

	w := serve(h, "GET", "/api/report")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}
