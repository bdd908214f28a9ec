package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"kassandra/internal/aggregate"
	"kassandra/internal/artifact"
	"kassandra/internal/cache"
	"kassandra/internal/domain"
	"kassandra/internal/fusion"
	"kassandra/internal/ml/anomaly"
	"kassandra/internal/ml/dataset"
	"kassandra/internal/ml/ensemble"
	"kassandra/internal/ml/models/direction"
	"kassandra/internal/provider"
	"kassandra/internal/repository"
	"kassandra/internal/sentiment"

	"go.opentelemetry.io/otel/trace"
)

type BarProvider interface {
	FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error)
}

type NewsProvider interface {
	FetchFeed(ctx context.Context, feedURL string, keywords []string, maxItems int) ([]provider.ContentItem, error)
}

type SocialProvider interface {
	Search(ctx context.Context, subreddit, query string, limit int) ([]provider.ContentItem, error)
}

type InterestProvider interface {
	FetchInterest(ctx context.Context, article string, from, to time.Time) ([]domain.InterestPoint, error)
}

type BarStore interface {
	UpsertBars(ctx context.Context, ticker string, bars []domain.Bar) error
	GetBarsInRange(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error)
}

type SignalStore interface {
	UpsertEvents(ctx context.Context, ticker string, events []repository.StoredEvent) error
	GetEvents(ctx context.Context, ticker, source string, from, to time.Time) ([]domain.SignalEvent, error)
}

type FeatureStore interface {
	UpsertTable(ctx context.Context, ticker string, table *fusion.Table) error
}

type PredictionStore interface {
	UpsertLog(ctx context.Context, ticker string, modelVersion int, records []domain.PredictionRecord) error
	UpsertNextDay(ctx context.Context, ticker string, modelVersion int, date time.Time, predicted float64) error
}

type ModelRegistry interface {
	NextVersion(ctx context.Context, modelKey string) (int, error)
	Insert(ctx context.Context, model domain.ModelVersion) (*domain.ModelVersion, error)
}

// PipelineConfig fixes one run of the daily pipeline.
type PipelineConfig struct {
	Ticker           string
	Keywords         []string
	NewsFeeds        []string
	Subreddits       []string
	WikipediaArticle string
	HistoryDays      int
	TestFraction     float64
	ArtifactDir      string
	ModelKey         string
}

// RunReport is what one completed pipeline run hands back to callers.
type RunReport struct {
	Ticker        string                     `json:"ticker"`
	ModelVersion  int                        `json:"model_version"`
	Sessions      int                        `json:"sessions"`
	Events        int                        `json:"events"`
	Report        domain.EvalReport          `json:"report"`
	Flags         []anomaly.Flag             `json:"anomalies,omitempty"`
	NextDate      time.Time                  `json:"next_date"`
	NextClose     float64                    `json:"next_close"`
	NextDirection domain.PredictionDirection `json:"next_direction"`
}

// PipelineService runs the whole chain: fetch, score, aggregate, fuse,
// split, train, evaluate, persist, serve the next-day call.
type PipelineService struct {
	tracer trace.Tracer
	cfg    PipelineConfig

	bars     BarProvider
	news     NewsProvider
	social   SocialProvider
	interest InterestProvider
	scorer   sentiment.Scorer

	barStore   BarStore
	signals    SignalStore
	features   FeatureStore
	preds      PredictionStore
	registry   ModelRegistry
	detector   *anomaly.Detector
	fuseEngine *fusion.Engine

	writeFeatureCSV func(path string, table *fusion.Table) error
	writeLogCSV     func(path string, records []domain.PredictionRecord) error
	putSnapshot     func(ctx context.Context, snap cache.Snapshot) error
}

// ModelKeyFor is the registry key for a ticker's close-prediction ensemble.
func ModelKeyFor(ticker string) string {
	return "close-ensemble:" + ticker
}

func NewPipelineService(
	tracer trace.Tracer,
	cfg PipelineConfig,
	bars BarProvider,
	news NewsProvider,
	social SocialProvider,
	interest InterestProvider,
	scorer sentiment.Scorer,
	barStore BarStore,
	signals SignalStore,
	features FeatureStore,
	preds PredictionStore,
	registry ModelRegistry,
) *PipelineService {
	if cfg.ModelKey == "" {
		cfg.ModelKey = ModelKeyFor(cfg.Ticker)
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 730
	}
	return &PipelineService{
		tracer:          tracer,
		cfg:             cfg,
		bars:            bars,
		news:            news,
		social:          social,
		interest:        interest,
		scorer:          scorer,
		barStore:        barStore,
		signals:         signals,
		features:        features,
		preds:           preds,
		registry:        registry,
		detector:        anomaly.New(anomaly.DefaultConfig()),
		fuseEngine:      fusion.NewEngine(fusion.DefaultConfig()),
		writeFeatureCSV: artifact.WriteFeatureTable,
		writeLogCSV:     artifact.WritePredictionLog,
		putSnapshot:     cache.PutSnapshot,
	}
}

// Run executes one full pipeline pass ending at now.
func (s *PipelineService) Run(ctx context.Context, now time.Time) (*RunReport, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	to := now.UTC()
	from := to.AddDate(0, 0, -s.cfg.HistoryDays)

	bars, err := s.loadBars(ctx, from, to)
	if err != nil {
		return nil, err
	}
	log.Printf("Pipeline %s: %d trading sessions %s..%s", s.cfg.Ticker, len(bars),
		bars[0].Date.Format("2006-01-02"), bars[len(bars)-1].Date.Format("2006-01-02"))

	newsEvents := s.collectNews(ctx)
	redditEvents := s.collectSocial(ctx)
	s.persistEvents(ctx, newsEvents, redditEvents)

	// The store accumulates history past what live feeds expose, so prefer the
	// persisted window once the fresh events are upserted into it.
	newsEvents = s.storedOrLive(ctx, "news", newsEvents, from, to)
	redditEvents = s.storedOrLive(ctx, "reddit", redditEvents, from, to)

	signalTables := s.buildSignalTables(ctx, newsEvents, redditEvents, from, to)

	table, err := s.fuseEngine.Fuse(bars, signalTables...)
	if err != nil {
		return nil, fmt.Errorf("fuse features: %w", err)
	}
	if s.features != nil {
		if err := s.features.UpsertTable(ctx, s.cfg.Ticker, table); err != nil {
			log.Printf("persist feature table: %v", err)
		}
	}
	if s.cfg.ArtifactDir != "" {
		path := filepath.Join(s.cfg.ArtifactDir, s.cfg.Ticker+"_features.csv")
		if err := s.writeFeatureCSV(path, table); err != nil {
			log.Printf("write feature csv: %v", err)
		}
	}

	split, err := dataset.ChronologicalSplit(table, s.cfg.TestFraction)
	if err != nil {
		return nil, err
	}

	predictor := ensemble.New()
	if err := predictor.Train(split, table.FeatureColumns(), ensemble.DefaultTrainOptions()); err != nil {
		return nil, err
	}
	report, err := predictor.Evaluate(split)
	if err != nil {
		return nil, err
	}

	testPred, err := predictor.Predict(split.XTest)
	if err != nil {
		return nil, err
	}
	records := make([]domain.PredictionRecord, len(split.TestRows))
	for i, row := range split.TestRows {
		records[i] = domain.PredictionRecord{Date: row.Date, Actual: row.Target, Predicted: testPred[i]}
	}

	version, err := s.register(ctx, predictor, report, bars)
	if err != nil {
		return nil, err
	}
	if s.preds != nil {
		if err := s.preds.UpsertLog(ctx, s.cfg.Ticker, version, records); err != nil {
			log.Printf("persist prediction log: %v", err)
		}
	}
	if s.cfg.ArtifactDir != "" {
		path := filepath.Join(s.cfg.ArtifactDir, s.cfg.Ticker+"_predictions.csv")
		if err := s.writeLogCSV(path, records); err != nil {
			log.Printf("write prediction csv: %v", err)
		}
	}

	flags, err := s.detector.Scan(table)
	if err != nil {
		log.Printf("anomaly scan: %v", err)
	}

	out := &RunReport{
		Ticker:       s.cfg.Ticker,
		ModelVersion: version,
		Sessions:     len(bars),
		Events:       len(newsEvents) + len(redditEvents),
		Report:       *report,
		Flags:        flags,
	}
	s.nextDayCall(ctx, table, predictor, split, version, out)

	if s.putSnapshot != nil {
		snap := cache.Snapshot{
			Ticker:        out.Ticker,
			ModelVersion:  out.ModelVersion,
			RanAt:         now.UTC(),
			Report:        out.Report,
			NextDate:      out.NextDate,
			NextClose:     out.NextClose,
			NextDirection: out.NextDirection,
		}
		if err := s.putSnapshot(ctx, snap); err != nil {
			log.Printf("cache snapshot: %v", err)
		}
	}

	log.Printf("Pipeline %s: v%d test RMSE %.4f (gap %.4f), next close %.2f (%s)",
		out.Ticker, out.ModelVersion, out.Report.Test.RMSE, out.Report.Gap.RMSE, out.NextClose, out.NextDirection)
	return out, nil
}

// loadBars prefers a live fetch, persists what it got, and falls back to
// storage when the provider is down.
func (s *PipelineService) loadBars(ctx context.Context, from, to time.Time) ([]domain.Bar, error) {
	_, span := s.tracer.Start(ctx, "pipeline.load-bars")
	defer span.End()

	bars, err := s.bars.FetchDailyBars(ctx, s.cfg.Ticker, from, to)
	if err != nil {
		log.Printf("fetch bars: %v", err)
		if s.barStore == nil {
			return nil, fmt.Errorf("fetch bars for %s: %w", s.cfg.Ticker, err)
		}
		bars, err = s.barStore.GetBarsInRange(ctx, s.cfg.Ticker, from, to)
		if err != nil {
			return nil, fmt.Errorf("load stored bars for %s: %w", s.cfg.Ticker, err)
		}
	} else if s.barStore != nil {
		if err := s.barStore.UpsertBars(ctx, s.cfg.Ticker, bars); err != nil {
			log.Printf("persist bars: %v", err)
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no trading sessions for %s in %s..%s", s.cfg.Ticker,
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return bars, nil
}

func (s *PipelineService) collectNews(ctx context.Context) []domain.SignalEvent {
	if s.news == nil || len(s.cfg.NewsFeeds) == 0 {
		return nil
	}
	_, span := s.tracer.Start(ctx, "pipeline.collect-news")
	defer span.End()

	var events []domain.SignalEvent
	for _, feed := range s.cfg.NewsFeeds {
		items, err := s.news.FetchFeed(ctx, feed, s.cfg.Keywords, 100)
		if err != nil {
			log.Printf("fetch feed %s: %v", feed, err)
			continue
		}
		events = append(events, s.scoreItems(items, "news")...)
	}
	return events
}

func (s *PipelineService) collectSocial(ctx context.Context) []domain.SignalEvent {
	if s.social == nil || len(s.cfg.Subreddits) == 0 {
		return nil
	}
	_, span := s.tracer.Start(ctx, "pipeline.collect-social")
	defer span.End()

	var events []domain.SignalEvent
	for _, sub := range s.cfg.Subreddits {
		items, err := s.social.Search(ctx, sub, s.cfg.Ticker, 100)
		if err != nil {
			log.Printf("search r/%s: %v", sub, err)
			continue
		}
		events = append(events, s.scoreItems(items, "reddit")...)
	}
	return events
}

func (s *PipelineService) scoreItems(items []provider.ContentItem, source string) []domain.SignalEvent {
	events := make([]domain.SignalEvent, 0, len(items))
	for _, item := range items {
		res := s.scorer.Score(item.Title, item.Excerpt)
		events = append(events, domain.SignalEvent{
			Date:   item.PublishedAt,
			Score:  res.Score,
			Weight: item.Engagement,
			Source: source,
			Title:  item.Title,
		})
	}
	return events
}

func (s *PipelineService) persistEvents(ctx context.Context, groups ...[]domain.SignalEvent) {
	if s.signals == nil {
		return
	}
	var stored []repository.StoredEvent
	for _, events := range groups {
		for _, e := range events {
			stored = append(stored, repository.StoredEvent{
				ItemID: fmt.Sprintf("%s:%s:%s", e.Source, e.Date.Format("20060102150405"), e.Title),
				Event:  e,
			})
		}
	}
	if err := s.signals.UpsertEvents(ctx, s.cfg.Ticker, stored); err != nil {
		log.Printf("persist signal events: %v", err)
	}
}

func (s *PipelineService) storedOrLive(ctx context.Context, source string, live []domain.SignalEvent, from, to time.Time) []domain.SignalEvent {
	if s.signals == nil {
		return live
	}
	stored, err := s.signals.GetEvents(ctx, s.cfg.Ticker, source, from, to)
	if err != nil {
		log.Printf("load stored %s events: %v", source, err)
		return live
	}
	if len(stored) < len(live) {
		return live
	}
	return stored
}

func (s *PipelineService) buildSignalTables(ctx context.Context, news, reddit []domain.SignalEvent, from, to time.Time) []fusion.SignalTable {
	agg := aggregate.New(aggregate.Config{})

	var tables []fusion.SignalTable
	if len(news) > 0 {
		tables = append(tables, fusion.NewsSignals(agg.Aggregate(news)))
	}
	if len(reddit) > 0 {
		tables = append(tables, fusion.RedditSignals(agg.Aggregate(reddit)))
	}
	if s.interest != nil && s.cfg.WikipediaArticle != "" {
		points, err := s.interest.FetchInterest(ctx, s.cfg.WikipediaArticle, from, to)
		if err != nil {
			log.Printf("fetch search interest: %v", err)
		} else if len(points) > 0 {
			tables = append(tables, fusion.SearchInterest(points))
		}
	}
	return tables
}

func (s *PipelineService) register(ctx context.Context, predictor *ensemble.Predictor, report *domain.EvalReport, bars []domain.Bar) (int, error) {
	if s.registry == nil {
		return 0, nil
	}
	_, span := s.tracer.Start(ctx, "pipeline.register-model")
	defer span.End()

	blob, err := predictor.MarshalBinary()
	if err != nil {
		return 0, err
	}
	version, err := s.registry.NextVersion(ctx, s.cfg.ModelKey)
	if err != nil {
		return 0, fmt.Errorf("next model version: %w", err)
	}
	metricsJSON, _ := json.Marshal(report)
	hyperJSON, _ := json.Marshal(ensemble.DefaultTrainOptions())

	_, err = s.registry.Insert(ctx, domain.ModelVersion{
		ModelKey:        s.cfg.ModelKey,
		Version:         version,
		Ticker:          s.cfg.Ticker,
		TrainedFrom:     bars[0].Date,
		TrainedTo:       bars[len(bars)-1].Date,
		HyperparamsJSON: string(hyperJSON),
		MetricsJSON:     string(metricsJSON),
		ArtifactFormat:  ensemble.FormatVersion,
		ArtifactBlob:    blob,
	})
	if err != nil {
		return 0, fmt.Errorf("register model: %w", err)
	}
	return version, nil
}

// nextDayCall serves tomorrow's close from the pending row and, when the
// training window allows it, a boosted up/down conviction call.
func (s *PipelineService) nextDayCall(ctx context.Context, table *fusion.Table, predictor *ensemble.Predictor, split *dataset.Split, version int, out *RunReport) {
	if table.Pending == nil {
		return
	}
	pending := table.FeatureVector(*table.Pending)
	next, err := predictor.PredictOne(pending)
	if err != nil {
		log.Printf("next-day prediction: %v", err)
		return
	}
	out.NextDate = nextSession(table.Pending.Date)
	out.NextClose = next
	out.NextDirection = s.directionCall(table, split, pending, next)

	if s.preds != nil {
		if err := s.preds.UpsertNextDay(ctx, s.cfg.Ticker, version, out.NextDate, next); err != nil {
			log.Printf("persist next-day prediction: %v", err)
		}
	}
}

// directionCall trains the up/down classifier on the raw training rows.
// When the window never changes direction (or training fails) it falls
// back to comparing the predicted close against today's.
func (s *PipelineService) directionCall(table *fusion.Table, split *dataset.Split, pending []float64, predicted float64) domain.PredictionDirection {
	closeIdx, ok := table.ColumnIndex("close")
	if !ok {
		return domain.DirectionFlat
	}
	today := table.Pending.Values[closeIdx]

	closes := make([]float64, len(split.XTrain))
	for i := range split.XTrain {
		closes[i] = table.Rows[i].Values[closeIdx]
	}
	labels, err := direction.Labels(closes, split.YTrain)
	if err == nil {
		if model, err := direction.Train(split.XTrain, labels, table.FeatureColumns(), direction.DefaultTrainOptions()); err == nil {
			return model.Classify(pending)
		} else {
			log.Printf("direction classifier: %v", err)
		}
	}

	switch {
	case predicted > today:
		return domain.DirectionUp
	case predicted < today:
		return domain.DirectionDown
	default:
		return domain.DirectionFlat
	}
}

// nextSession skips weekends; exchange holidays resolve themselves when
// the following run re-logs the call against the real next session.
func nextSession(day time.Time) time.Time {
	next := day.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
