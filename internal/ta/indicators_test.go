package ta

import (
	"math"
	"testing"
)

func TestSMASeries(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := SMASeries(values, 3)
	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Fatalf("expected NaN prefix before a full window, got %v", out[:2])
	}
	if out[2] != 2 || out[3] != 3 || out[4] != 4 {
		t.Fatalf("unexpected SMA values: %v", out)
	}
}

func TestRollingStdSeriesSampleStd(t *testing.T) {
	values := []float64{2, 4, 6, 8}
	out := RollingStdSeries(values, 3)
	if !math.IsNaN(out[1]) {
		t.Fatalf("expected NaN before full window, got %f", out[1])
	}
	// sample std of {2,4,6} is 2
	if math.Abs(out[2]-2) > 1e-12 {
		t.Fatalf("expected sample std 2, got %f", out[2])
	}
}

func TestRSISeriesBounds(t *testing.T) {
	closes := make([]float64, 40)
	price := 50.0
	for i := range closes {
		if i%3 == 0 {
			price -= 1.5
		} else {
			price += 1.0
		}
		closes[i] = price
	}
	out := RSISeries(closes, 14)
	for i := 0; i < 14; i++ {
		if !math.IsNaN(out[i]) {
			t.Fatalf("expected NaN warmup at index %d, got %f", i, out[i])
		}
	}
	for i := 14; i < len(out); i++ {
		if out[i] < 0 || out[i] > 100 {
			t.Fatalf("RSI out of bounds at %d: %f", i, out[i])
		}
	}
}

func TestRSISeriesAllGains(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	out := RSISeries(closes, 5)
	if out[7] != 100 {
		t.Fatalf("expected RSI 100 on monotonic gains, got %f", out[7])
	}
}

func TestMACDSeries(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	macd, signal := MACDSeries(values, 12, 26, 9)
	if len(macd) != len(values) || len(signal) != len(values) {
		t.Fatalf("expected full-length series, got %d and %d", len(macd), len(signal))
	}
	// fast EMA leads slow EMA on an uptrend
	if macd[len(macd)-1] <= 0 {
		t.Fatalf("expected positive MACD on uptrend, got %f", macd[len(macd)-1])
	}
}

func TestPctChangeSeries(t *testing.T) {
	out := PctChangeSeries([]float64{10, 11, 22})
	if !math.IsNaN(out[0]) {
		t.Fatalf("expected NaN at index 0, got %f", out[0])
	}
	if math.Abs(out[1]-0.1) > 1e-12 || math.Abs(out[2]-1.0) > 1e-12 {
		t.Fatalf("unexpected returns: %v", out)
	}
}
