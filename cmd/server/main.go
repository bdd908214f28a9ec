package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kassandra/internal/cache"
	"kassandra/internal/config"
	"kassandra/internal/db"
	"kassandra/internal/handler"
	"kassandra/internal/job"
	"kassandra/internal/ml/registry"
	"kassandra/internal/provider"
	"kassandra/internal/repository"
	"kassandra/internal/sentiment"
	"kassandra/internal/service"
	"kassandra/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "kassandra/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newPipelineServiceFunc = service.NewPipelineService
	newPipelineJobFunc     = job.NewPipelineJob
	startJobFunc           = func(j *job.PipelineJob, ctx context.Context) { go j.Start(ctx) }
	runOnBootFunc          = func(svc *service.PipelineService, ctx context.Context) {
		go func() {
			if _, err := svc.Run(ctx, time.Now().UTC()); err != nil {
				log.Printf("boot pipeline run failed: %v", err)
			}
		}()
	}
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Kassandra API
// @version         1.0
// @description     Next-day stock close prediction service blending market data with news, social and search-interest signals.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Repositories
	barRepo := repository.NewBarRepository(db.Pool, tracer)
	signalRepo := repository.NewSignalRepository(db.Pool, tracer)
	featureRepo := repository.NewFeatureRepository(db.Pool, tracer)
	predictionRepo := repository.NewPredictionRepository(db.Pool, tracer)
	registryRepo := registry.NewRepository(db.Pool, tracer)

	// Providers and the sentiment scorer
	yahoo := provider.NewYahooProvider(tracer)
	rss := provider.NewRSSProvider(tracer)
	reddit := provider.NewRedditProvider(tracer)
	pageviews := provider.NewPageviewsProvider(tracer)
	scorer := sentiment.NewLexicon()

	pipelineCfg := service.PipelineConfig{
		Ticker:           cfg.Ticker,
		Keywords:         cfg.CompanyKeywords,
		NewsFeeds:        cfg.NewsFeeds,
		Subreddits:       cfg.Subreddits,
		WikipediaArticle: cfg.WikipediaArticle,
		HistoryDays:      cfg.HistoryDays,
		TestFraction:     cfg.TestFraction,
		ArtifactDir:      cfg.ArtifactDir,
	}

	pipeline := newPipelineServiceFunc(tracer, pipelineCfg,
		yahoo, rss, reddit, pageviews, scorer,
		barRepo, signalRepo, featureRepo, predictionRepo, registryRepo,
	)

	// Nightly retrain job (background goroutine, stopped by ctx cancel)
	trainJob := newPipelineJobFunc(tracer, pipeline, cfg.TrainHourUTC)
	startJobFunc(trainJob, ctx)

	if cfg.RunPipeline {
		runOnBootFunc(pipeline, ctx)
	}

	// Handlers and routes
	h := newHandlerFunc(tracer, cfg.Ticker, cfg.APIKey, pipeline, predictionRepo, registryRepo)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("kassandra"))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
