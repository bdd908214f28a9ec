package fusion

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"kassandra/internal/aggregate"
	"kassandra/internal/domain"
	"kassandra/internal/ta"
)

// FillPolicy decides what a trading date receives when a signal table has no
// row for it. Sentiment tables zero-fill: no news is zero activity, not
// missing data. The sparse search-interest series forward-fills first because
// attention persists between samples.
type FillPolicy int

const (
	ZeroFill FillPolicy = iota
	ForwardFill
)

type SignalRow struct {
	Date   time.Time
	Values []float64
}

// SignalTable is one daily-aggregated signal source keyed by calendar date.
// Columns is the explicit declared column list; Lagged tables contribute only
// their lag-1..3 variants to the feature set.
type SignalTable struct {
	Source  string
	Columns []string
	Rows    []SignalRow
	Fill    FillPolicy
	Lagged  bool
}

// NewsSignals builds the news signal table from daily aggregates.
func NewsSignals(rows []aggregate.Daily) SignalTable {
	t := SignalTable{
		Source:  "news",
		Columns: []string{"avg_sentiment", "sentiment_std", "positive_ratio", "negative_ratio", "news_volume"},
		Fill:    ZeroFill,
		Lagged:  true,
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, SignalRow{
			Date:   r.Date,
			Values: []float64{r.Avg, r.Std, r.PositiveRatio, r.NegativeRatio, r.Volume},
		})
	}
	return t
}

// RedditSignals builds the social signal table from daily aggregates.
func RedditSignals(rows []aggregate.Daily) SignalTable {
	t := SignalTable{
		Source:  "reddit",
		Columns: []string{"reddit_avg_sentiment", "reddit_weighted_sentiment", "reddit_volume", "reddit_engagement", "reddit_positive_ratio"},
		Fill:    ZeroFill,
		Lagged:  true,
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, SignalRow{
			Date:   r.Date,
			Values: []float64{r.Avg, r.Weighted, r.Volume, r.Engagement, r.PositiveRatio},
		})
	}
	return t
}

// SearchInterest builds the sparse attention table. It forward-fills across
// trading days and is consumed un-lagged.
func SearchInterest(points []domain.InterestPoint) SignalTable {
	t := SignalTable{
		Source:  "search",
		Columns: []string{"search_interest"},
		Fill:    ForwardFill,
	}
	for _, p := range points {
		t.Rows = append(t.Rows, SignalRow{Date: p.Date, Values: []float64{p.Value}})
	}
	return t
}

// Config fixes the lag, window and indicator policy for one pipeline run.
type Config struct {
	Lags             []int
	RollingWindows   []int
	SMAShort         int
	SMALong          int
	RSIPeriod        int
	MACDFast         int
	MACDSlow         int
	MACDSignal       int
	VolatilityWindow int
}

func DefaultConfig() Config {
	return Config{
		Lags:             []int{1, 2, 3},
		RollingWindows:   []int{3, 7, 14},
		SMAShort:         5,
		SMALong:          20,
		RSIPeriod:        14,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		VolatilityWindow: 20,
	}
}

// Row is one fused feature row. Values are ordered by Table.Columns. Target
// is the next trading day's close.
type Row struct {
	Date   time.Time
	Values []float64
	Target float64
}

// Table is the fused feature table for one run. Rows all have a computable
// target; Pending is the final trading day, whose target does not exist yet
// and which therefore serves next-day inference instead of training.
type Table struct {
	Columns []string
	Rows    []Row
	Pending *Row

	featureCols []string
	colIndex    map[string]int
}

// FeatureColumns returns the declared, ordered predictor list for this run.
func (t *Table) FeatureColumns() []string {
	out := make([]string, len(t.featureCols))
	copy(out, t.featureCols)
	return out
}

func (t *Table) ColumnIndex(name string) (int, bool) {
	idx, ok := t.colIndex[name]
	return idx, ok
}

// FeatureVector projects a row onto the declared feature columns.
func (t *Table) FeatureVector(r Row) []float64 {
	out := make([]float64, len(t.featureCols))
	for i, name := range t.featureCols {
		out[i] = r.Values[t.colIndex[name]]
	}
	return out
}

// FeatureMatrix returns the feature matrix and target vector over all rows.
func (t *Table) FeatureMatrix() ([][]float64, []float64) {
	x := make([][]float64, len(t.Rows))
	y := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		x[i] = t.FeatureVector(r)
		y[i] = r.Target
	}
	return x, y
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if len(cfg.Lags) == 0 {
		cfg.Lags = def.Lags
	}
	if len(cfg.RollingWindows) == 0 {
		cfg.RollingWindows = def.RollingWindows
	}
	if cfg.SMAShort <= 0 {
		cfg.SMAShort = def.SMAShort
	}
	if cfg.SMALong <= 0 {
		cfg.SMALong = def.SMALong
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.MACDFast <= 0 {
		cfg.MACDFast = def.MACDFast
	}
	if cfg.MACDSlow <= 0 {
		cfg.MACDSlow = def.MACDSlow
	}
	if cfg.MACDSignal <= 0 {
		cfg.MACDSignal = def.MACDSignal
	}
	if cfg.VolatilityWindow <= 0 {
		cfg.VolatilityWindow = def.VolatilityWindow
	}
	return &Engine{cfg: cfg}
}

// Fuse left-joins the signal tables onto the trading-day price series, fills
// gaps by policy, manufactures the lag and rolling columns, and computes the
// next-day-close target. Every non-target value in a returned row is fully
// determined by information dated on or before the row's own date.
func (e *Engine) Fuse(bars []domain.Bar, signals ...SignalTable) (*Table, error) {
	if len(bars) == 0 {
		return nil, errors.New("fuse: price series is empty")
	}

	sorted := make([]domain.Bar, len(bars))
	copy(sorted, bars)
	for i := range sorted {
		sorted[i].Date = normalizeDate(sorted[i].Date)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return nil, fmt.Errorf("fuse: duplicate trading date %s", sorted[i].Date.Format("2006-01-02"))
		}
	}

	n := len(sorted)
	columns := []string{}
	features := []string{}
	series := map[string][]float64{}

	addColumn := func(name string, values []float64, feature bool) {
		columns = append(columns, name)
		series[name] = values
		if feature {
			features = append(features, name)
		}
	}

	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range sorted {
		opens[i] = b.Open
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	addColumn("open", opens, true)
	addColumn("high", highs, true)
	addColumn("low", lows, true)
	addColumn("close", closes, true)
	addColumn("volume", volumes, true)

	macd, signalLine := ta.MACDSeries(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
	addColumn(fmt.Sprintf("sma_%d", e.cfg.SMAShort), ta.SMASeries(closes, e.cfg.SMAShort), true)
	addColumn(fmt.Sprintf("sma_%d", e.cfg.SMALong), ta.SMASeries(closes, e.cfg.SMALong), true)
	addColumn("rsi", ta.RSISeries(closes, e.cfg.RSIPeriod), true)
	addColumn("macd", macd, true)
	addColumn("signal_line", signalLine, true)
	addColumn("volatility", ta.RollingStdSeries(closes, e.cfg.VolatilityWindow), true)
	addColumn("price_change", ta.PctChangeSeries(closes), true)

	// Left-join each signal table, then lag the sentiment columns. Raw
	// same-day sentiment stays in the table for diagnostics but only the
	// lagged variants are declared as features.
	for _, table := range signals {
		joined, err := joinSignal(sorted, table)
		if err != nil {
			return nil, err
		}
		for c, name := range table.Columns {
			addColumn(name, joined[c], !table.Lagged)
			if !table.Lagged {
				continue
			}
			for _, lag := range e.cfg.Lags {
				addColumn(fmt.Sprintf("%s_lag_%d", name, lag), lagSeries(joined[c], lag), true)
			}
		}
	}

	for _, w := range e.cfg.RollingWindows {
		addColumn(fmt.Sprintf("close_rolling_mean_%d", w), ta.SMASeries(closes, w), true)
		addColumn(fmt.Sprintf("close_rolling_std_%d", w), ta.RollingStdSeries(closes, w), true)
	}

	colIndex := make(map[string]int, len(columns))
	for i, name := range columns {
		colIndex[name] = i
	}

	rows := make([]Row, 0, n-1)
	var pending *Row
	for i := 0; i < n; i++ {
		values := make([]float64, len(columns))
		for c, name := range columns {
			v := series[name][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			values[c] = v
		}
		if i == n-1 {
			// The final session's target is tomorrow's close, which does not
			// exist yet. The row is excluded from training and retained only
			// for serving the next-day prediction.
			pending = &Row{Date: sorted[i].Date, Values: values}
			break
		}
		rows = append(rows, Row{Date: sorted[i].Date, Values: values, Target: closes[i+1]})
	}

	return &Table{
		Columns:     columns,
		Rows:        rows,
		Pending:     pending,
		featureCols: features,
		colIndex:    colIndex,
	}, nil
}

func joinSignal(bars []domain.Bar, table SignalTable) ([][]float64, error) {
	width := len(table.Columns)
	for _, r := range table.Rows {
		if len(r.Values) != width {
			return nil, fmt.Errorf("fuse: signal table %q row at %s has %d values, want %d",
				table.Source, r.Date.Format("2006-01-02"), len(r.Values), width)
		}
	}

	out := make([][]float64, width)
	for c := range out {
		out[c] = make([]float64, len(bars))
	}

	if table.Fill == ForwardFill {
		// Samples may fall on non-trading dates, so each trading day takes
		// the most recent sample at or before it, and zero before the first.
		samples := make([]SignalRow, len(table.Rows))
		copy(samples, table.Rows)
		for i := range samples {
			samples[i].Date = normalizeDate(samples[i].Date)
		}
		sort.Slice(samples, func(i, j int) bool { return samples[i].Date.Before(samples[j].Date) })

		next := 0
		carried := make([]float64, width)
		for i, bar := range bars {
			for next < len(samples) && !samples[next].Date.After(bar.Date) {
				copy(carried, samples[next].Values)
				next++
			}
			for c := 0; c < width; c++ {
				out[c][i] = carried[c]
			}
		}
		return out, nil
	}

	byDate := make(map[time.Time][]float64, len(table.Rows))
	for _, r := range table.Rows {
		byDate[normalizeDate(r.Date)] = r.Values
	}
	for i, bar := range bars {
		values, ok := byDate[bar.Date]
		if !ok {
			continue
		}
		for c := 0; c < width; c++ {
			out[c][i] = values[c]
		}
	}
	return out, nil
}

func lagSeries(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < lag {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i-lag]
	}
	return out
}

func normalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
