package xgb

import (
	"math"
	"testing"
)

func dataset() ([][]float64, []float64) {
	samples := make([][]float64, 0, 120)
	targets := make([]float64, 0, 120)
	for i := 0; i < 120; i++ {
		x := float64(i) / 10
		samples = append(samples, []float64{x, -x})
		targets = append(targets, 2*x+5)
	}
	return samples, targets
}

func TestTrainFitsLinearTrend(t *testing.T) {
	samples, targets := dataset()
	model, err := Train(samples, targets, []string{"x", "neg_x"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	got := model.Predict([]float64{4, -4})
	if math.Abs(got-13) > 2 {
		t.Fatalf("expected roughly 13, got %f", got)
	}
}

func TestSeedDeterminism(t *testing.T) {
	samples, targets := dataset()
	a, err := Train(samples, targets, nil, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	b, err := Train(samples, targets, nil, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	for _, probe := range [][]float64{{0, 0}, {3, -3}, {11, -11}} {
		if a.Predict(probe) != b.Predict(probe) {
			t.Fatalf("same seed produced different predictions at %v", probe)
		}
	}
}

func TestSubsampleChangesFit(t *testing.T) {
	samples, targets := dataset()
	full, err := Train(samples, targets, nil, TrainOptions{Rounds: 20, Subsample: 1})
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	half, err := Train(samples, targets, nil, TrainOptions{Rounds: 20, Subsample: 0.5})
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	same := true
	for _, probe := range [][]float64{{1, -1}, {5, -5}, {9, -9}} {
		if full.Predict(probe) != half.Predict(probe) {
			same = false
		}
	}
	if same {
		t.Fatal("expected row subsampling to perturb the fit")
	}
}

func TestRoundTrip(t *testing.T) {
	samples, targets := dataset()
	model, err := Train(samples, targets, []string{"x", "neg_x"}, DefaultTrainOptions())
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
	if restored.Predict([]float64{2, -2}) != model.Predict([]float64{2, -2}) {
		t.Fatal("roundtrip changed prediction")
	}
	if len(restored.FeatureNames()) != 2 {
		t.Fatalf("expected 2 feature names, got %d", len(restored.FeatureNames()))
	}
}

func TestTrainRejectsBadInput(t *testing.T) {
	if _, err := Train(nil, nil, nil, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error for empty dataset")
	}
	if _, err := Train([][]float64{{1}}, []float64{1, 2}, nil, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}
