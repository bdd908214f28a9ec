package direction

import (
	"testing"

	"kassandra/internal/domain"
)

func separableData() ([][]float64, []int) {
	samples := make([][]float64, 0, 200)
	labels := make([]int, 0, 200)
	for i := 0; i < 100; i++ {
		v := float64(i%10) / 10
		samples = append(samples, []float64{1 + v, -1 - v})
		labels = append(labels, 1)
		samples = append(samples, []float64{-1 - v, 1 + v})
		labels = append(labels, 0)
	}
	return samples, labels
}

func TestLabels(t *testing.T) {
	labels, err := Labels([]float64{100, 101, 99}, []float64{101, 99, 99})
	if err != nil {
		t.Fatalf("labels failed: %v", err)
	}
	want := []int{1, 0, 0}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("label %d: got %d want %d", i, labels[i], want[i])
		}
	}
	if _, err := Labels([]float64{1}, []float64{1, 2}); err == nil {
		t.Fatal("expected error for misaligned slices")
	}
}

func TestTrainClassifyAndRoundTrip(t *testing.T) {
	samples, labels := separableData()
	model, err := Train(samples, labels, []string{"momentum", "drawdown"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}

	up := []float64{1.5, -1.5}
	down := []float64{-1.5, 1.5}
	if p := model.ProbUp(up); p <= 0.5 {
		t.Fatalf("expected up probability above 0.5, got %f", p)
	}
	if p := model.ProbUp(down); p >= 0.5 {
		t.Fatalf("expected up probability below 0.5, got %f", p)
	}
	if got := model.Classify(up); got != domain.DirectionUp {
		t.Fatalf("expected up, got %s", got)
	}
	if got := model.Classify(down); got != domain.DirectionDown {
		t.Fatalf("expected down, got %s", got)
	}

	blob, err := model.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	restored, err := UnmarshalBinary(blob)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if restored.Classify(up) != domain.DirectionUp {
		t.Fatal("roundtrip changed the up call")
	}
	if len(restored.FeatureNames()) != 2 {
		t.Fatal("roundtrip lost feature names")
	}
}

func TestTrainNeedsBothClasses(t *testing.T) {
	samples := [][]float64{{1}, {2}, {3}}
	if _, err := Train(samples, []int{1, 1, 1}, nil, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error when labels never vary")
	}
	if _, err := Train(samples, []int{0, 1, 2}, nil, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error for labels outside {0,1}")
	}
}
