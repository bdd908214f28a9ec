package cart

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// Options controls how a single regression tree is grown. Lambda is an L2
// penalty on leaf values (zero keeps plain mean leaves). FeatureFraction
// limits how many features each split considers, for decorrelated ensembles.
type Options struct {
	MaxDepth        int
	MinLeaf         int
	FeatureFraction float64
	Lambda          float64
}

func DefaultOptions() Options {
	return Options{
		MaxDepth:        6,
		MinLeaf:         2,
		FeatureFraction: 1.0,
	}
}

// Node is one tree node. Leaves carry Value; internal nodes route on
// Feature <= Threshold.
type Node struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      *Node   `json:"left,omitempty"`
	Right     *Node   `json:"right,omitempty"`
}

// Grow fits a regression tree on the rows selected by idx, minimizing the
// within-leaf sum of squared errors.
func Grow(samples [][]float64, targets []float64, idx []int, opts Options, rng *rand.Rand) (*Node, error) {
	if len(samples) == 0 || len(samples) != len(targets) {
		return nil, errors.New("cart: invalid training dataset")
	}
	if len(idx) == 0 {
		return nil, errors.New("cart: empty index set")
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions().MaxDepth
	}
	if opts.MinLeaf <= 0 {
		opts.MinLeaf = DefaultOptions().MinLeaf
	}
	if opts.FeatureFraction <= 0 || opts.FeatureFraction > 1 {
		opts.FeatureFraction = 1
	}
	return grow(samples, targets, idx, opts, rng, 0), nil
}

func (n *Node) Predict(sample []float64) float64 {
	node := n
	for !node.Leaf {
		if sample[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

func grow(samples [][]float64, targets []float64, idx []int, opts Options, rng *rand.Rand, depth int) *Node {
	if depth >= opts.MaxDepth || len(idx) < 2*opts.MinLeaf {
		return leaf(targets, idx, opts.Lambda)
	}

	feature, threshold, ok := bestSplit(samples, targets, idx, opts, rng)
	if !ok {
		return leaf(targets, idx, opts.Lambda)
	}

	var left, right []int
	for _, i := range idx {
		if samples[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < opts.MinLeaf || len(right) < opts.MinLeaf {
		return leaf(targets, idx, opts.Lambda)
	}

	return &Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      grow(samples, targets, left, opts, rng, depth+1),
		Right:     grow(samples, targets, right, opts, rng, depth+1),
	}
}

func leaf(targets []float64, idx []int, lambda float64) *Node {
	var sum float64
	for _, i := range idx {
		sum += targets[i]
	}
	return &Node{Leaf: true, Value: sum / (float64(len(idx)) + lambda)}
}

func bestSplit(samples [][]float64, targets []float64, idx []int, opts Options, rng *rand.Rand) (int, float64, bool) {
	featCount := len(samples[idx[0]])
	candidates := candidateFeatures(featCount, opts.FeatureFraction, rng)

	var totalSum, totalSq float64
	for _, i := range idx {
		totalSum += targets[i]
		totalSq += targets[i] * targets[i]
	}
	n := float64(len(idx))
	baseSSE := totalSq - totalSum*totalSum/n

	bestGain := 1e-12
	bestFeature := -1
	bestThreshold := 0.0

	order := make([]int, len(idx))
	for _, f := range candidates {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return samples[order[a]][f] < samples[order[b]][f] })

		var leftSum, leftSq float64
		for pos := 0; pos < len(order)-1; pos++ {
			t := targets[order[pos]]
			leftSum += t
			leftSq += t * t

			leftN := float64(pos + 1)
			if pos+1 < opts.MinLeaf || len(order)-pos-1 < opts.MinLeaf {
				continue
			}
			cur := samples[order[pos]][f]
			next := samples[order[pos+1]][f]
			if cur == next {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			rightN := n - leftN
			sse := (leftSq - leftSum*leftSum/leftN) + (rightSq - rightSum*rightSum/rightN)
			gain := baseSSE - sse
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func candidateFeatures(featCount int, fraction float64, rng *rand.Rand) []int {
	take := featCount
	if fraction < 1 {
		take = int(math.Ceil(float64(featCount) * fraction))
		if take < 1 {
			take = 1
		}
	}
	all := make([]int, featCount)
	for i := range all {
		all[i] = i
	}
	if take >= featCount || rng == nil {
		return all
	}
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	picked := all[:take]
	sort.Ints(picked)
	return picked
}
