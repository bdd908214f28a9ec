package aggregate

import (
	"math"
	"testing"
	"time"

	"kassandra/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestAggregateEmptyInput(t *testing.T) {
	a := New(DefaultConfig())
	if got := a.Aggregate(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := a.Aggregate([]domain.SignalEvent{}); got != nil {
		t.Fatalf("expected nil for empty slice, got %v", got)
	}
}

func TestAggregateDropsUndatedEvents(t *testing.T) {
	a := New(DefaultConfig())
	events := []domain.SignalEvent{
		{Date: day(2), Score: 0.5},
		{Score: 0.9}, // no date, must not bias the aggregate
		{Date: day(2), Score: -0.1},
	}
	rows := a.Aggregate(events)
	if len(rows) != 1 {
		t.Fatalf("expected 1 daily row, got %d", len(rows))
	}
	if rows[0].Volume != 2 {
		t.Fatalf("expected volume 2 after dropping undated event, got %f", rows[0].Volume)
	}
	if math.Abs(rows[0].Avg-0.2) > 1e-12 {
		t.Fatalf("expected avg 0.2, got %f", rows[0].Avg)
	}
}

func TestAggregateRatiosAndThresholds(t *testing.T) {
	a := New(DefaultConfig())
	events := []domain.SignalEvent{
		{Date: day(3), Score: 0.6},  // positive
		{Date: day(3), Score: 0.05}, // inside neutral band
		{Date: day(3), Score: -0.3}, // negative
		{Date: day(3), Score: -0.05},
	}
	rows := a.Aggregate(events)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if math.Abs(rows[0].PositiveRatio-0.25) > 1e-12 {
		t.Fatalf("expected positive ratio 0.25, got %f", rows[0].PositiveRatio)
	}
	if math.Abs(rows[0].NegativeRatio-0.25) > 1e-12 {
		t.Fatalf("expected negative ratio 0.25, got %f", rows[0].NegativeRatio)
	}
}

func TestAggregateWeightedFallsBackWhenNoWeight(t *testing.T) {
	a := New(DefaultConfig())
	events := []domain.SignalEvent{
		{Date: day(4), Score: 0.4},
		{Date: day(4), Score: 0.2},
	}
	rows := a.Aggregate(events)
	if math.Abs(rows[0].Weighted-rows[0].Avg) > 1e-12 {
		t.Fatalf("expected weighted to fall back to avg, got %f vs %f", rows[0].Weighted, rows[0].Avg)
	}
}

func TestAggregateWeightedMean(t *testing.T) {
	a := New(DefaultConfig())
	events := []domain.SignalEvent{
		{Date: day(5), Score: 1.0, Weight: 3},
		{Date: day(5), Score: 0.0, Weight: 1},
	}
	rows := a.Aggregate(events)
	if math.Abs(rows[0].Weighted-0.75) > 1e-12 {
		t.Fatalf("expected weighted mean 0.75, got %f", rows[0].Weighted)
	}
	if rows[0].Engagement != 4 {
		t.Fatalf("expected engagement 4, got %f", rows[0].Engagement)
	}
}

func TestAggregateNormalizesTimestampsToDates(t *testing.T) {
	a := New(DefaultConfig())
	events := []domain.SignalEvent{
		{Date: time.Date(2026, 3, 6, 9, 30, 0, 0, time.UTC), Score: 0.1},
		{Date: time.Date(2026, 3, 6, 21, 5, 0, 0, time.UTC), Score: 0.3},
		{Date: time.Date(2026, 3, 7, 1, 0, 0, 0, time.UTC), Score: -0.2},
	}
	rows := a.Aggregate(events)
	if len(rows) != 2 {
		t.Fatalf("expected 2 daily rows, got %d", len(rows))
	}
	if !rows[0].Date.Equal(day(6)) || !rows[1].Date.Equal(day(7)) {
		t.Fatalf("expected midnight-normalized ascending dates, got %v", rows)
	}
	if rows[0].Volume != 2 {
		t.Fatalf("expected same-day events merged, got volume %f", rows[0].Volume)
	}
}
