package ensemble

import (
	"errors"
	"math"
	"testing"
	"time"

	"kassandra/internal/domain"
	"kassandra/internal/fusion"
	"kassandra/internal/ml/dataset"
	"kassandra/internal/ml/scaler"
)

type stubComponent struct {
	value float64
}

func (s stubComponent) Predict([]float64) float64      { return s.value }
func (s stubComponent) MarshalBinary() ([]byte, error) { return nil, errors.New("stub") }

func identityScaler(t *testing.T) *scaler.Standard {
	t.Helper()
	sc := scaler.NewStandard()
	// Mean 0 and std 1 per column, so Transform is the identity.
	if err := sc.Fit([][]float64{{-1, -1}, {1, 1}}); err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	return sc
}

func trendTable(t *testing.T, n int) *fusion.Table {
	t.Helper()
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		close := 100 + float64(i) + 3*math.Sin(float64(i)/4)
		bars = append(bars, domain.Bar{
			Date:   base.AddDate(0, 0, i),
			Open:   close - 0.5,
			High:   close + 1,
			Low:    close - 1,
			Close:  close,
			Volume: 1_000_000,
		})
	}
	table, err := fusion.NewEngine(fusion.DefaultConfig()).Fuse(bars)
	if err != nil {
		t.Fatalf("fuse failed: %v", err)
	}
	return table
}

func TestBlendUsesFixedWeights(t *testing.T) {
	p := &Predictor{
		weights: DefaultWeights(),
		scaler:  identityScaler(t),
		forest:  stubComponent{10},
		boost:   stubComponent{20},
		xboost:  stubComponent{30},
		trained: true,
	}
	got, err := p.PredictOne([]float64{0, 0})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if math.Abs(got-21.0) > 1e-12 {
		t.Fatalf("expected 0.3*10 + 0.3*20 + 0.4*30 = 21, got %f", got)
	}
}

func TestPredictBeforeTrainFails(t *testing.T) {
	p := New()
	if _, err := p.PredictOne([]float64{1}); err == nil {
		t.Fatal("expected error from an untrained predictor")
	}
	if _, err := p.Predict([][]float64{{1}}); err == nil {
		t.Fatal("expected error from an untrained predictor")
	}
	if _, err := p.MarshalBinary(); err == nil {
		t.Fatal("expected error serializing an untrained predictor")
	}
}

func TestTrainEvaluateAndRoundTrip(t *testing.T) {
	table := trendTable(t, 120)
	split, err := dataset.ChronologicalSplit(table, 0.2)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}

	p := New()
	opts := DefaultTrainOptions()
	opts.Forest.Trees = 20
	opts.Boost.Rounds = 30
	opts.XBoost.Rounds = 30
	if err := p.Train(split, table.FeatureColumns(), opts); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if !p.Trained() {
		t.Fatal("expected predictor to report trained")
	}

	report, err := p.Evaluate(split)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if report.Train.RMSE <= 0 || report.Test.RMSE <= 0 {
		t.Fatalf("expected positive RMSE on a noisy trend, got train=%f test=%f", report.Train.RMSE, report.Test.RMSE)
	}
	if got := report.Gap.RMSE; math.Abs(got-(report.Test.RMSE-report.Train.RMSE)) > 1e-12 {
		t.Fatalf("gap must be test minus train, got %f", got)
	}
	// Closes sit between 100 and 220; a sane fit is nowhere near that far off.
	if report.Train.MAE > 50 {
		t.Fatalf("training MAE %f is implausibly large", report.Train.MAE)
	}

	blob, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	restored, err := UnmarshalBinary(blob)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	sample := split.XTest[0]
	a, err := p.PredictOne(sample)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	b, err := restored.PredictOne(sample)
	if err != nil {
		t.Fatalf("restored predict failed: %v", err)
	}
	if a != b {
		t.Fatalf("roundtrip changed prediction: %f vs %f", a, b)
	}
	if len(restored.FeatureNames()) != len(table.FeatureColumns()) {
		t.Fatal("roundtrip lost feature names")
	}
}

func TestUnmarshalRejectsWrongFormat(t *testing.T) {
	if _, err := UnmarshalBinary(nil); err == nil {
		t.Fatal("expected error for empty blob")
	}
	if _, err := UnmarshalBinary([]byte(`{"format_version":"v0"}`)); err == nil {
		t.Fatal("expected error for a format version mismatch")
	}
}

func TestTrainRejectsNegativeWeights(t *testing.T) {
	table := trendTable(t, 40)
	split, err := dataset.ChronologicalSplit(table, 0.2)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	opts := DefaultTrainOptions()
	opts.Weights.Forest = -1
	if err := New().Train(split, table.FeatureColumns(), opts); err == nil {
		t.Fatal("expected error for negative weight")
	}
}
