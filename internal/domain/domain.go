package domain

import "time"

// Bar represents one trading session of OHLCV data for the tracked ticker.
// Dates are calendar days at UTC midnight; weekends and holidays are simply
// absent, not missing.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SignalEvent is a single scored document (headline, post, ...) from one of
// the sentiment sources. Score is a bounded polarity in [-1, 1] produced by
// the scoring collaborator. Weight is an optional engagement measure such as
// a post score; zero means unweighted.
type SignalEvent struct {
	Date   time.Time `json:"date"`
	Score  float64   `json:"score"`
	Weight float64   `json:"weight"`
	Source string    `json:"source"`
	Title  string    `json:"title,omitempty"`
}

// InterestPoint is one sample of the sparse search/attention series,
// normalized to [0, 1].
type InterestPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

type PredictionDirection string

const (
	DirectionUp   PredictionDirection = "up"
	DirectionDown PredictionDirection = "down"
	DirectionFlat PredictionDirection = "flat"
)

// PredictionRecord is one row of the test-partition prediction log:
// what the ensemble said the close at Date would be versus what it was.
type PredictionRecord struct {
	Date      time.Time `json:"date"`
	Actual    float64   `json:"actual"`
	Predicted float64   `json:"predicted"`
}

// Metrics holds the accuracy measures for one partition.
type Metrics struct {
	RMSE                float64 `json:"rmse"`
	MAE                 float64 `json:"mae"`
	MAPE                float64 `json:"mape"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
}

// EvalReport carries test and train metrics plus the test-minus-train gap,
// the over-fit signal surfaced by every training run.
type EvalReport struct {
	Test  Metrics `json:"test"`
	Train Metrics `json:"train"`
	Gap   Gap     `json:"gap"`
}

type Gap struct {
	RMSE                float64 `json:"rmse"`
	MAE                 float64 `json:"mae"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
}

// ModelVersion is one persisted trained-ensemble artifact in the registry.
type ModelVersion struct {
	ID              int64
	ModelKey        string
	Version         int
	Ticker          string
	TrainedFrom     time.Time
	TrainedTo       time.Time
	HyperparamsJSON string
	MetricsJSON     string
	ArtifactFormat  string
	ArtifactBlob    []byte
	CreatedAt       time.Time
}
