package anomaly

import (
	"errors"
	"sort"
	"time"

	"github.com/narumiruna/go-iforest/pkg/iforest"

	"kassandra/internal/fusion"
)

// Config selects which fused columns feed the isolation forest and how
// hot a score has to be before a day gets flagged.
type Config struct {
	Columns   []string
	Threshold float64
	TopK      int
}

func DefaultConfig() Config {
	return Config{
		Columns: []string{
			"avg_sentiment", "news_volume",
			"reddit_avg_sentiment", "reddit_volume", "reddit_engagement",
			"search_interest",
		},
		Threshold: 0.6,
		TopK:      10,
	}
}

// Flag is one trading day whose signal profile the forest finds unusual.
type Flag struct {
	Date  time.Time `json:"date"`
	Score float64   `json:"score"`
}

// Detector scans the sentiment and attention columns of a fused table for
// days that look nothing like the rest of the run: coordinated posting
// bursts, attention spikes, sentiment whiplash. Flags are advisory; they
// never gate training.
type Detector struct {
	cfg Config
}

func New(cfg Config) *Detector {
	def := DefaultConfig()
	if len(cfg.Columns) == 0 {
		cfg.Columns = def.Columns
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = def.Threshold
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	return &Detector{cfg: cfg}
}

// Scan fits a forest on the configured columns across all rows and returns
// the flagged days, hottest first. Columns absent from the table (a run
// without a reddit source, say) are skipped; having none left is an error.
func (d *Detector) Scan(table *fusion.Table) ([]Flag, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, errors.New("anomaly: fused table is empty")
	}

	idx := make([]int, 0, len(d.cfg.Columns))
	for _, name := range d.cfg.Columns {
		if i, ok := table.ColumnIndex(name); ok {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, errors.New("anomaly: none of the configured columns are present")
	}

	data := make([][]float64, len(table.Rows))
	for i, row := range table.Rows {
		vec := make([]float64, len(idx))
		for j, col := range idx {
			vec[j] = row.Values[col]
		}
		data[i] = vec
	}

	forest := iforest.New()
	forest.Fit(data)
	scores := forest.Score(data)

	flags := make([]Flag, 0)
	for i, score := range scores {
		if score >= d.cfg.Threshold {
			flags = append(flags, Flag{Date: table.Rows[i].Date, Score: score})
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Score > flags[j].Score })
	if len(flags) > d.cfg.TopK {
		flags = flags[:d.cfg.TopK]
	}
	return flags, nil
}
