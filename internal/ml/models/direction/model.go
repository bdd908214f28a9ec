package direction

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"math"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"

	"kassandra/internal/domain"
)

// Probability band around 0.5 that reads as "no conviction either way".
const (
	UpThreshold   = 0.55
	DownThreshold = 0.45
)

type TrainOptions struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Rounds:       60,
		LearningRate: 0.1,
		MaxDepth:     4,
	}
}

type artifact struct {
	FeatureNames []string `json:"feature_names"`
	ModelText    string   `json:"model_text"`
}

// Model classifies whether the next session closes above the current one.
// It rides alongside the regression ensemble: the ensemble says where the
// close lands, this says how confident the up/down call is.
type Model struct {
	featureNames []string
	boost        *boo.MultiClass
}

// Labels derives binary up/down labels from each row's close and its
// next-day target: 1 when the target close is above today's close.
func Labels(closes, targets []float64) ([]int, error) {
	if len(closes) == 0 || len(closes) != len(targets) {
		return nil, errors.New("direction: closes and targets must align")
	}
	labels := make([]int, len(closes))
	for i := range closes {
		if targets[i] > closes[i] {
			labels[i] = 1
		}
	}
	return labels, nil
}

func Train(samples [][]float64, labels []int, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(labels) {
		return nil, errors.New("direction: invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("direction: empty feature vectors")
	}
	classes := make(map[int]struct{}, 2)
	for _, l := range labels {
		if l != 0 && l != 1 {
			return nil, errors.New("direction: labels must be 0 or 1")
		}
		classes[l] = struct{}{}
	}
	if len(classes) < 2 {
		return nil, errors.New("direction: training window never changed direction")
	}
	def := DefaultTrainOptions()
	if opts.Rounds <= 0 {
		opts.Rounds = def.Rounds
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if len(featureNames) != len(samples[0]) {
		featureNames = make([]string, len(samples[0]))
		for i := range featureNames {
			featureNames[i] = "f"
		}
	}

	o := boo.DefaultXOptions()
	o.Rounds = opts.Rounds
	o.LearningRate = opts.LearningRate
	o.MaxDepth = opts.MaxDepth
	o.Verbose = false
	o.EarlyStop = 0

	bunch := &utils.DataBunch{
		Data:   samples,
		Labels: labels,
		Keys:   featureNames,
	}
	model := boo.NewMultiClass(bunch, o)
	if model == nil {
		return nil, errors.New("direction: boosting failed to produce a model")
	}
	return &Model{featureNames: append([]string(nil), featureNames...), boost: model}, nil
}

// ProbUp returns the probability that the next close is above the current
// one. An unusable model reads as a coin flip rather than a hard failure.
func (m *Model) ProbUp(sample []float64) float64 {
	if m == nil || m.boost == nil {
		return 0.5
	}
	probs := m.boost.PredictSingle(sample)
	labels := m.boost.ClassLabels()
	for i := range labels {
		if labels[i] == 1 {
			return clamp01(probs[i])
		}
	}
	if len(probs) == 0 {
		return 0.5
	}
	return clamp01(probs[len(probs)-1])
}

// Classify maps ProbUp through the conviction band.
func (m *Model) Classify(sample []float64) domain.PredictionDirection {
	p := m.ProbUp(sample)
	if p > UpThreshold {
		return domain.DirectionUp
	}
	if p < DownThreshold {
		return domain.DirectionDown
	}
	return domain.DirectionFlat
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil || m.boost == nil {
		return nil, errors.New("direction: nil model")
	}
	var buf bytes.Buffer
	if err := boo.JSONMultiClass(m.boost, "softmax", &buf); err != nil {
		return nil, err
	}
	return json.Marshal(artifact{
		FeatureNames: m.featureNames,
		ModelText:    buf.String(),
	})
}

func UnmarshalBinary(blob []byte) (*Model, error) {
	if len(blob) == 0 {
		return nil, errors.New("direction: empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	model, err := boo.UnJSONMultiClass(bufio.NewReader(bytes.NewReader([]byte(a.ModelText))))
	if err != nil {
		return nil, err
	}
	return &Model{featureNames: append([]string(nil), a.FeatureNames...), boost: model}, nil
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.featureNames))
	copy(out, m.featureNames)
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
