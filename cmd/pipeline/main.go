package main

import (
	"context"
	"log"
	"os"
	"time"

	"kassandra/internal/cache"
	"kassandra/internal/config"
	"kassandra/internal/db"
	"kassandra/internal/ml/registry"
	"kassandra/internal/provider"
	"kassandra/internal/repository"
	"kassandra/internal/sentiment"
	"kassandra/internal/service"
	"kassandra/pkg/tracing"

	"github.com/joho/godotenv"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	runPipelineFunc  = func(svc *service.PipelineService, ctx context.Context) (*service.RunReport, error) {
		return svc.Run(ctx, time.Now().UTC())
	}
	exitFunc = os.Exit
)

// Runs one full pipeline pass and prints the report, for cron and manual use.
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	barRepo := repository.NewBarRepository(db.Pool, tracer)
	signalRepo := repository.NewSignalRepository(db.Pool, tracer)
	featureRepo := repository.NewFeatureRepository(db.Pool, tracer)
	predictionRepo := repository.NewPredictionRepository(db.Pool, tracer)
	registryRepo := registry.NewRepository(db.Pool, tracer)

	yahoo := provider.NewYahooProvider(tracer)
	rss := provider.NewRSSProvider(tracer)
	reddit := provider.NewRedditProvider(tracer)
	pageviews := provider.NewPageviewsProvider(tracer)
	scorer := sentiment.NewLexicon()

	pipeline := service.NewPipelineService(tracer, service.PipelineConfig{
		Ticker:           cfg.Ticker,
		Keywords:         cfg.CompanyKeywords,
		NewsFeeds:        cfg.NewsFeeds,
		Subreddits:       cfg.Subreddits,
		WikipediaArticle: cfg.WikipediaArticle,
		HistoryDays:      cfg.HistoryDays,
		TestFraction:     cfg.TestFraction,
		ArtifactDir:      cfg.ArtifactDir,
	},
		yahoo, rss, reddit, pageviews, scorer,
		barRepo, signalRepo, featureRepo, predictionRepo, registryRepo,
	)

	report, err := runPipelineFunc(pipeline, ctx)
	if err != nil {
		log.Printf("pipeline run failed: %v", err)
		exitFunc(1)
		return
	}

	log.Printf("pipeline run complete: ticker=%s version=%d sessions=%d events=%d",
		report.Ticker, report.ModelVersion, report.Sessions, report.Events)
	log.Printf("test metrics: rmse=%.4f mae=%.4f mape=%.2f%% directional=%.2f%%",
		report.Report.Test.RMSE, report.Report.Test.MAE,
		report.Report.Test.MAPE, report.Report.Test.DirectionalAccuracy)
	log.Printf("over-fit gap: rmse=%.4f mae=%.4f directional=%.2f",
		report.Report.Gap.RMSE, report.Report.Gap.MAE, report.Report.Gap.DirectionalAccuracy)
	log.Printf("next session %s: predicted close %.2f (%s)",
		report.NextDate.Format("2006-01-02"), report.NextClose, report.NextDirection)
}
