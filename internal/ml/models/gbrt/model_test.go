package gbrt

import (
	"math"
	"testing"
)

func dataset() ([][]float64, []float64) {
	samples := make([][]float64, 0, 100)
	targets := make([]float64, 0, 100)
	for i := 0; i < 100; i++ {
		x := float64(i) / 8
		samples = append(samples, []float64{x})
		targets = append(targets, 3*x-1)
	}
	return samples, targets
}

func TestTrainFitsLinearTrend(t *testing.T) {
	samples, targets := dataset()
	model, err := Train(samples, targets, []string{"x"}, TrainOptions{Rounds: 80, LearningRate: 0.2, MaxDepth: 2})
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	got := model.Predict([]float64{6})
	if math.Abs(got-17) > 2 {
		t.Fatalf("expected roughly 17, got %f", got)
	}
}

func TestBoostingReducesTrainingError(t *testing.T) {
	samples, targets := dataset()
	short, err := Train(samples, targets, nil, TrainOptions{Rounds: 2, LearningRate: 0.1, MaxDepth: 2})
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	long, err := Train(samples, targets, nil, TrainOptions{Rounds: 100, LearningRate: 0.1, MaxDepth: 2})
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if sse(long, samples, targets) >= sse(short, samples, targets) {
		t.Fatal("expected more rounds to reduce training error")
	}
}

func TestRoundTrip(t *testing.T) {
	samples, targets := dataset()
	model, err := Train(samples, targets, []string{"x"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	blob, err := model.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	restored, err := UnmarshalBinary(blob)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if restored.Predict([]float64{3}) != model.Predict([]float64{3}) {
		t.Fatal("roundtrip changed prediction")
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalBinary(nil); err == nil {
		t.Fatal("expected error for empty blob")
	}
	if _, err := UnmarshalBinary([]byte(`{"trees":[]}`)); err == nil {
		t.Fatal("expected error for empty tree list")
	}
}

func sse(m *Model, samples [][]float64, targets []float64) float64 {
	var sum float64
	for i := range samples {
		d := m.Predict(samples[i]) - targets[i]
		sum += d * d
	}
	return sum
}
