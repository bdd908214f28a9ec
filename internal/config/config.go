package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL string
	RedisURL    string

	Ticker           string
	CompanyKeywords  []string
	WikipediaArticle string
	NewsFeeds        []string
	Subreddits       []string

	HistoryDays  int
	TestFraction float64

	TrainHourUTC int
	RunPipeline  bool

	ArtifactDir string
	APIKey      string
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.Ticker = strings.ToUpper(strings.TrimSpace(os.Getenv("TICKER")))
	if cfg.Ticker == "" {
		cfg.Ticker = "AAPL"
	}

	cfg.CompanyKeywords = splitList(os.Getenv("COMPANY_KEYWORDS"))
	if len(cfg.CompanyKeywords) == 0 {
		cfg.CompanyKeywords = []string{strings.ToLower(cfg.Ticker)}
	}

	cfg.WikipediaArticle = strings.TrimSpace(os.Getenv("WIKIPEDIA_ARTICLE"))
	if cfg.WikipediaArticle == "" {
		log.Println("Warning: WIKIPEDIA_ARTICLE not set, search interest will be skipped")
	}

	cfg.NewsFeeds = splitList(os.Getenv("NEWS_FEEDS"))
	if len(cfg.NewsFeeds) == 0 {
		log.Println("Warning: NEWS_FEEDS not set, news sentiment will be skipped")
	}

	cfg.Subreddits = splitList(os.Getenv("SUBREDDITS"))
	if len(cfg.Subreddits) == 0 {
		cfg.Subreddits = []string{"stocks", "wallstreetbets"}
	}

	cfg.HistoryDays = 730
	if v := strings.TrimSpace(os.Getenv("HISTORY_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryDays = n
		}
	}

	cfg.TestFraction = 0.2
	if v := strings.TrimSpace(os.Getenv("TEST_FRACTION")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n < 1 {
			cfg.TestFraction = n
		}
	}

	cfg.TrainHourUTC = 1
	if v := strings.TrimSpace(os.Getenv("TRAIN_HOUR_UTC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 23 {
			cfg.TrainHourUTC = n
		}
	}

	cfg.RunPipeline = strings.EqualFold(strings.TrimSpace(os.Getenv("RUN_PIPELINE")), "true")

	cfg.ArtifactDir = strings.TrimSpace(os.Getenv("ARTIFACT_DIR"))
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = "artifacts"
	}

	cfg.APIKey = os.Getenv("API_KEY")
	if cfg.APIKey == "" {
		log.Println("Warning: API_KEY not set, write endpoints are unauthenticated")
	}

	return cfg
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
