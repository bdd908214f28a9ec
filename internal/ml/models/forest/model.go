package forest

import (
	"encoding/json"
	"errors"
	"math/rand"

	"kassandra/internal/ml/models/cart"
)

type TrainOptions struct {
	Trees           int
	MaxDepth        int
	MinLeaf         int
	FeatureFraction float64
	Seed            int64
}

type artifact struct {
	FeatureNames []string     `json:"feature_names"`
	Trees        []*cart.Node `json:"trees"`
}

// Model is a bagged ensemble of regression trees: each tree trains on a
// bootstrap resample with a random feature subset per split, and predictions
// average across trees.
type Model struct {
	featureNames []string
	trees        []*cart.Node
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Trees:           100,
		MaxDepth:        10,
		MinLeaf:         2,
		FeatureFraction: 0.7,
		Seed:            42,
	}
}

func Train(samples [][]float64, targets []float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(targets) {
		return nil, errors.New("forest: invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("forest: empty feature vectors")
	}
	def := DefaultTrainOptions()
	if opts.Trees <= 0 {
		opts.Trees = def.Trees
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.MinLeaf <= 0 {
		opts.MinLeaf = def.MinLeaf
	}
	if opts.FeatureFraction <= 0 || opts.FeatureFraction > 1 {
		opts.FeatureFraction = def.FeatureFraction
	}
	if len(featureNames) != len(samples[0]) {
		featureNames = nil
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	treeOpts := cart.Options{
		MaxDepth:        opts.MaxDepth,
		MinLeaf:         opts.MinLeaf,
		FeatureFraction: opts.FeatureFraction,
	}

	n := len(samples)
	trees := make([]*cart.Node, 0, opts.Trees)
	for t := 0; t < opts.Trees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		tree, err := cart.Grow(samples, targets, idx, treeOpts, rng)
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	return &Model{featureNames: append([]string(nil), featureNames...), trees: trees}, nil
}

func (m *Model) Predict(sample []float64) float64 {
	if m == nil || len(m.trees) == 0 {
		return 0
	}
	var sum float64
	for _, tree := range m.trees {
		sum += tree.Predict(sample)
	}
	return sum / float64(len(m.trees))
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
		return nil, errors.New("forest: nil model")
	}
	return json.Marshal(artifact{FeatureNames: m.featureNames, Trees: m.trees})
}

func UnmarshalBinary(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.New("forest: empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if len(a.Trees) == 0 {
		return nil, errors.New("forest: invalid artifact")
	}
	return &Model{featureNames: a.FeatureNames, trees: a.Trees}, nil
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.featureNames))
	copy(out, m.featureNames)
	return out
}
