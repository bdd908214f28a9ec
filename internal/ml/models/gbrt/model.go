package gbrt

import (
	"encoding/json"
	"errors"
	"math/rand"

	"kassandra/internal/ml/models/cart"
)

type TrainOptions struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
	MinLeaf      int
	Seed         int64
}

type artifact struct {
	FeatureNames []string     `json:"feature_names"`
	Init         float64      `json:"init"`
	LearningRate float64      `json:"learning_rate"`
	Trees        []*cart.Node `json:"trees"`
}

// Model is a gradient-boosted ensemble of shallow regression trees: each
// round fits the residuals of the running prediction and is added with a
// learning-rate shrinkage. The initial prediction is the target mean.
type Model struct {
	featureNames []string
	init         float64
	learningRate float64
	trees        []*cart.Node
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Rounds:       100,
		LearningRate: 0.1,
		MaxDepth:     3,
		MinLeaf:      2,
		Seed:         42,
	}
}

func Train(samples [][]float64, targets []float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(targets) {
		return nil, errors.New("gbrt: invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("gbrt: empty feature vectors")
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
	if opts.MinLeaf <= 0 {
		opts.MinLeaf = def.MinLeaf
	}
	if len(featureNames) != len(samples[0]) {
		featureNames = nil
	}

	n := len(samples)
	var init float64
	for _, y := range targets {
		init += y
	}
	init /= float64(n)

	rng := rand.New(rand.NewSource(opts.Seed))
	treeOpts := cart.Options{
		MaxDepth:        opts.MaxDepth,
		MinLeaf:         opts.MinLeaf,
		FeatureFraction: 1,
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	current := make([]float64, n)
	for i := range current {
		current[i] = init
	}
	residuals := make([]float64, n)

	trees := make([]*cart.Node, 0, opts.Rounds)
	for round := 0; round < opts.Rounds; round++ {
		for i := range residuals {
			residuals[i] = targets[i] - current[i]
		}
		tree, err := cart.Grow(samples, residuals, idx, treeOpts, rng)
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
		for i := range current {
			current[i] += opts.LearningRate * tree.Predict(samples[i])
		}
	}

	return &Model{
		featureNames: append([]string(nil), featureNames...),
		init:         init,
		learningRate: opts.LearningRate,
		trees:        trees,
	}, nil
}

func (m *Model) Predict(sample []float64) float64 {
	if m == nil || len(m.trees) == 0 {
		return 0
	}
	out := m.init
	for _, tree := range m.trees {
		out += m.learningRate * tree.Predict(sample)
	}
	return out
}

func (m *Model) PredictBatch(samples [][]float64) []float64 {
	out := make([]float64, len(samples))
	for i := range samples {
		out[i] = m.Predict(samples[i])
	}
	return out
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil || len(m.trees) == 0 {
		return nil, errors.New("gbrt: nil model")
	}
	return json.Marshal(artifact{
		FeatureNames: m.featureNames,
		Init:         m.init,
		LearningRate: m.learningRate,
		Trees:        m.trees,
	})
}

func UnmarshalBinary(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.New("gbrt: empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if len(a.Trees) == 0 || a.LearningRate <= 0 {
		return nil, errors.New("gbrt: invalid artifact")
	}
	return &Model{
		featureNames: a.FeatureNames,
		init:         a.Init,
		learningRate: a.LearningRate,
		trees:        a.Trees,
	}, nil
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.featureNames))
	copy(out, m.featureNames)
	return out
}
