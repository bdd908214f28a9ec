package dataset

import (
	"fmt"

	"kassandra/internal/fusion"
)

// Split is a strictly time-ordered train/test partition of a fused table.
// TestRows keeps the underlying rows (dates included) for the prediction log.
type Split struct {
	XTrain [][]float64
	XTest  [][]float64
	YTrain []float64
	YTest  []float64

	TestRows []fusion.Row
}

// ChronologicalSplit partitions the fused rows at floor(N*(1-testFraction)).
// Rows are never shuffled: everything before the split point trains,
// everything at or after it tests. testFraction outside (0, 1) is a
// configuration error.
func ChronologicalSplit(table *fusion.Table, testFraction float64) (*Split, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, fmt.Errorf("split: fused table is empty")
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, fmt.Errorf("split: test fraction %.3f outside (0, 1)", testFraction)
	}

	n := len(table.Rows)
	splitIdx := int(float64(n) * (1 - testFraction))
	if splitIdx < 1 || splitIdx >= n {
		return nil, fmt.Errorf("split: %d rows with test fraction %.3f leaves an empty partition", n, testFraction)
	}

	x, y := table.FeatureMatrix()
	return &Split{
		XTrain:   x[:splitIdx],
		XTest:    x[splitIdx:],
		YTrain:   y[:splitIdx],
		YTest:    y[splitIdx:],
		TestRows: table.Rows[splitIdx:],
	}, nil
}
