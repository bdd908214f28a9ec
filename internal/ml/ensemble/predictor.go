package ensemble

import (
	"encoding/json"
	"errors"
	"fmt"

	"kassandra/internal/domain"
	"kassandra/internal/ml/dataset"
	"kassandra/internal/ml/metrics"
	"kassandra/internal/ml/models/forest"
	"kassandra/internal/ml/models/gbrt"
	"kassandra/internal/ml/models/xgb"
	"kassandra/internal/ml/scaler"
)

// FormatVersion tags the serialized artifact envelope. Load refuses
// envelopes written under a different version.
const FormatVersion = "v1"

// Component is one regressor inside the weighted ensemble. The concrete
// models all satisfy it; tests substitute stubs.
type Component interface {
	Predict(sample []float64) float64
	MarshalBinary() ([]byte, error)
}

// Weights are the fixed blend coefficients, keyed the same way the
// artifact envelope keys the component blobs.
type Weights struct {
	Forest float64 `json:"rf"`
	Boost  float64 `json:"gb"`
	XBoost float64 `json:"xgb"`
}

func DefaultWeights() Weights {
	return Weights{Forest: 0.3, Boost: 0.3, XBoost: 0.4}
}

type TrainOptions struct {
	Forest  forest.TrainOptions
	Boost   gbrt.TrainOptions
	XBoost  xgb.TrainOptions
	Weights Weights
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Forest:  forest.DefaultTrainOptions(),
		Boost:   gbrt.DefaultTrainOptions(),
		XBoost:  xgb.DefaultTrainOptions(),
		Weights: DefaultWeights(),
	}
}

// Predictor owns the feature scaler and the three regressors. The scaler
// is fitted on the training partition only; every prediction path runs raw
// feature vectors through it before the components see them.
type Predictor struct {
	weights      Weights
	scaler       *scaler.Standard
	forest       Component
	boost        Component
	xboost       Component
	featureNames []string
	trained      bool
}

func New() *Predictor {
	return &Predictor{
		weights: DefaultWeights(),
		scaler:  scaler.NewStandard(),
	}
}

func (p *Predictor) Trained() bool { return p.trained }

func (p *Predictor) Weights() Weights { return p.weights }

func (p *Predictor) FeatureNames() []string {
	out := make([]string, len(p.featureNames))
	copy(out, p.featureNames)
	return out
}

// Train fits the scaler on the training partition, then trains each
// component on the scaled matrix. The test partition is never touched.
func (p *Predictor) Train(split *dataset.Split, featureNames []string, opts TrainOptions) error {
	if split == nil || len(split.XTrain) == 0 {
		return errors.New("ensemble: empty training partition")
	}
	w := opts.Weights
	if w.Forest == 0 && w.Boost == 0 && w.XBoost == 0 {
		w = DefaultWeights()
	}
	if w.Forest < 0 || w.Boost < 0 || w.XBoost < 0 {
		return errors.New("ensemble: component weights must be non-negative")
	}

	sc := scaler.NewStandard()
	if err := sc.Fit(split.XTrain); err != nil {
		return fmt.Errorf("ensemble: fit scaler: %w", err)
	}
	scaled, err := sc.Transform(split.XTrain)
	if err != nil {
		return fmt.Errorf("ensemble: scale training matrix: %w", err)
	}

	rf, err := forest.Train(scaled, split.YTrain, featureNames, opts.Forest)
	if err != nil {
		return fmt.Errorf("ensemble: train forest: %w", err)
	}
	gb, err := gbrt.Train(scaled, split.YTrain, featureNames, opts.Boost)
	if err != nil {
		return fmt.Errorf("ensemble: train booster: %w", err)
	}
	xb, err := xgb.Train(scaled, split.YTrain, featureNames, opts.XBoost)
	if err != nil {
		return fmt.Errorf("ensemble: train regularized booster: %w", err)
	}

	p.weights = w
	p.scaler = sc
	p.forest = rf
	p.boost = gb
	p.xboost = xb
	p.featureNames = append([]string(nil), featureNames...)
	p.trained = true
	return nil
}

// PredictOne scales one raw feature vector and blends the component outputs.
func (p *Predictor) PredictOne(sample []float64) (float64, error) {
	if !p.trained {
		return 0, errors.New("ensemble: predictor is not trained")
	}
	scaled, err := p.scaler.TransformRow(sample)
	if err != nil {
		return 0, err
	}
	return p.weights.Forest*p.forest.Predict(scaled) +
		p.weights.Boost*p.boost.Predict(scaled) +
		p.weights.XBoost*p.xboost.Predict(scaled), nil
}

func (p *Predictor) Predict(samples [][]float64) ([]float64, error) {
	if !p.trained {
		return nil, errors.New("ensemble: predictor is not trained")
	}
	out := make([]float64, len(samples))
	for i := range samples {
		v, err := p.PredictOne(samples[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Evaluate scores both partitions of the split and reports the
// test-minus-train gap. A zero actual close makes MAPE undefined and the
// whole evaluation fails rather than report a misleading number.
func (p *Predictor) Evaluate(split *dataset.Split) (*domain.EvalReport, error) {
	if split == nil || len(split.XTest) == 0 || len(split.XTrain) == 0 {
		return nil, errors.New("ensemble: evaluate needs both partitions")
	}

	testPred, err := p.Predict(split.XTest)
	if err != nil {
		return nil, err
	}
	trainPred, err := p.Predict(split.XTrain)
	if err != nil {
		return nil, err
	}

	test, err := partitionMetrics(split.YTest, testPred)
	if err != nil {
		return nil, fmt.Errorf("ensemble: test metrics: %w", err)
	}
	train, err := partitionMetrics(split.YTrain, trainPred)
	if err != nil {
		return nil, fmt.Errorf("ensemble: train metrics: %w", err)
	}

	return &domain.EvalReport{
		Test:  test,
		Train: train,
		Gap: domain.Gap{
			RMSE:                test.RMSE - train.RMSE,
			MAE:                 test.MAE - train.MAE,
			DirectionalAccuracy: test.DirectionalAccuracy - train.DirectionalAccuracy,
		},
	}, nil
}

func partitionMetrics(actual, predicted []float64) (domain.Metrics, error) {
	rmse, err := metrics.RMSE(actual, predicted)
	if err != nil {
		return domain.Metrics{}, err
	}
	mae, err := metrics.MAE(actual, predicted)
	if err != nil {
		return domain.Metrics{}, err
	}
	mape, err := metrics.MAPE(actual, predicted)
	if err != nil {
		return domain.Metrics{}, err
	}
	dir, err := metrics.DirectionalAccuracy(actual, predicted)
	if err != nil {
		return domain.Metrics{}, err
	}
	return domain.Metrics{RMSE: rmse, MAE: mae, MAPE: mape, DirectionalAccuracy: dir}, nil
}

type envelope struct {
	FormatVersion string                     `json:"format_version"`
	Weights       Weights                    `json:"weights"`
	FeatureNames  []string                   `json:"feature_names"`
	Scaler        json.RawMessage            `json:"scaler"`
	Components    map[string]json.RawMessage `json:"components"`
}

// MarshalBinary serializes the whole trained predictor as one JSON envelope:
// scaler parameters plus each component's own artifact, keyed rf/gb/xgb.
func (p *Predictor) MarshalBinary() ([]byte, error) {
	if !p.trained {
		return nil, errors.New("ensemble: cannot serialize an untrained predictor")
	}
	scalerBlob, err := p.scaler.MarshalBinary()
	if err != nil {
		return nil, err
	}
	components := map[string]json.RawMessage{}
	for name, c := range map[string]Component{"rf": p.forest, "gb": p.boost, "xgb": p.xboost} {
		blob, err := c.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("ensemble: serialize %s: %w", name, err)
		}
		components[name] = blob
	}
	return json.Marshal(envelope{
		FormatVersion: FormatVersion,
		Weights:       p.weights,
		FeatureNames:  p.featureNames,
		Scaler:        scalerBlob,
		Components:    components,
	})
}

// UnmarshalBinary restores a predictor from an envelope produced by
// MarshalBinary. Every part is decoded before anything is assigned, so a
// corrupt envelope cannot leave a half-loaded predictor behind.
func UnmarshalBinary(data []byte) (*Predictor, error) {
	if len(data) == 0 {
		return nil, errors.New("ensemble: empty artifact")
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("ensemble: artifact format %q, want %q", env.FormatVersion, FormatVersion)
	}

	sc, err := scaler.UnmarshalBinary(env.Scaler)
	if err != nil {
		return nil, fmt.Errorf("ensemble: restore scaler: %w", err)
	}
	rf, err := forest.UnmarshalBinary(env.Components["rf"])
	if err != nil {
		return nil, fmt.Errorf("ensemble: restore rf: %w", err)
	}
	gb, err := gbrt.UnmarshalBinary(env.Components["gb"])
	if err != nil {
		return nil, fmt.Errorf("ensemble: restore gb: %w", err)
	}
	xb, err := xgb.UnmarshalBinary(env.Components["xgb"])
	if err != nil {
		return nil, fmt.Errorf("ensemble: restore xgb: %w", err)
	}

	return &Predictor{
		weights:      env.Weights,
		scaler:       sc,
		forest:       rf,
		boost:        gb,
		xboost:       xb,
		featureNames: env.FeatureNames,
		trained:      true,
	}, nil
}
