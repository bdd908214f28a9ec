package aggregate

import (
	"math"
	"sort"
	"time"

	"kassandra/internal/domain"
)

// Config carries the polarity thresholds used for the positive/negative
// ratios. The defaults match the scoring collaborator's neutral band.
type Config struct {
	PositiveThreshold float64
	NegativeThreshold float64
}

func DefaultConfig() Config {
	return Config{
		PositiveThreshold: 0.05,
		NegativeThreshold: -0.05,
	}
}

// Daily is one calendar date of summarized signal activity. Volume is the
// event count, Engagement the summed weights, Weighted the weight-averaged
// polarity (falling back to Avg when total weight is zero).
type Daily struct {
	Date          time.Time
	Avg           float64
	Std           float64
	Volume        float64
	PositiveRatio float64
	NegativeRatio float64
	Weighted      float64
	Engagement    float64
}

type Aggregator struct {
	cfg Config
}

func New(cfg Config) *Aggregator {
	def := DefaultConfig()
	if cfg.PositiveThreshold <= 0 {
		cfg.PositiveThreshold = def.PositiveThreshold
	}
	if cfg.NegativeThreshold >= 0 {
		cfg.NegativeThreshold = def.NegativeThreshold
	}
	return &Aggregator{cfg: cfg}
}

// Aggregate collapses raw per-event records into one row per calendar date,
// sorted ascending. Events without a resolvable date are dropped. An empty
// input yields nil so callers can branch on absence instead of reading
// zero-filled rows.
func (a *Aggregator) Aggregate(events []domain.SignalEvent) []Daily {
	if len(events) == 0 {
		return nil
	}

	byDate := make(map[time.Time][]domain.SignalEvent)
	for _, ev := range events {
		if ev.Date.IsZero() {
			continue
		}
		day := normalizeDate(ev.Date)
		byDate[day] = append(byDate[day], ev)
	}
	if len(byDate) == 0 {
		return nil
	}

	out := make([]Daily, 0, len(byDate))
	for day, evs := range byDate {
		out = append(out, a.summarize(day, evs))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (a *Aggregator) summarize(day time.Time, evs []domain.SignalEvent) Daily {
	n := float64(len(evs))
	var sum, positive, negative, weightedSum, weightTotal float64
	for _, ev := range evs {
		sum += ev.Score
		if ev.Score > a.cfg.PositiveThreshold {
			positive++
		}
		if ev.Score < a.cfg.NegativeThreshold {
			negative++
		}
		weightedSum += ev.Score * ev.Weight
		weightTotal += ev.Weight
	}
	avg := sum / n

	var variance float64
	for _, ev := range evs {
		d := ev.Score - avg
		variance += d * d
	}
	variance /= n

	weighted := avg
	if weightTotal != 0 {
		weighted = weightedSum / weightTotal
	}

	return Daily{
		Date:          day,
		Avg:           avg,
		Std:           math.Sqrt(variance),
		Volume:        n,
		PositiveRatio: positive / n,
		NegativeRatio: negative / n,
		Weighted:      weighted,
		Engagement:    weightTotal,
	}
}

func normalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

