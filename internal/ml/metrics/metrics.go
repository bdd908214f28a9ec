package metrics

import (
	"errors"
	"fmt"
	"math"
)

// Metric computation over two equal-length numeric sequences. Every function
// fails loudly instead of emitting NaN or Inf: a silent non-finite metric is
// worse than a visible error.

func RMSE(actual, predicted []float64) (float64, error) {
	if err := checkLengths(actual, predicted, 1); err != nil {
		return 0, err
	}
	var sum float64
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual))), nil
}

func MAE(actual, predicted []float64) (float64, error) {
	if err := checkLengths(actual, predicted, 1); err != nil {
		return 0, err
	}
	var sum float64
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual)), nil
}

// MAPE returns the mean absolute percentage error. A zero actual value makes
// the metric undefined and is reported as an error for the caller to surface.
func MAPE(actual, predicted []float64) (float64, error) {
	if err := checkLengths(actual, predicted, 1); err != nil {
		return 0, err
	}
	var sum float64
	for i := range actual {
		if actual[i] == 0 {
			return 0, fmt.Errorf("metrics: MAPE undefined, actual value at index %d is zero", i)
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
	}
	return sum / float64(len(actual)) * 100, nil
}

// DirectionalAccuracy is the fraction of consecutive transitions where the
// sign of the actual change matches the sign of the predicted change. It is
// a sequential metric and needs at least two points.
func DirectionalAccuracy(actual, predicted []float64) (float64, error) {
	if err := checkLengths(actual, predicted, 2); err != nil {
		return 0, err
	}
	agreements := 0
	transitions := len(actual) - 1
	for i := 1; i < len(actual); i++ {
		actualUp := actual[i] > actual[i-1]
		predictedUp := predicted[i] > predicted[i-1]
		if actualUp == predictedUp {
			agreements++
		}
	}
	return float64(agreements) / float64(transitions) * 100, nil
}

func checkLengths(actual, predicted []float64, minLen int) error {
	if len(actual) != len(predicted) {
		return fmt.Errorf("metrics: length mismatch, %d actual vs %d predicted", len(actual), len(predicted))
	}
	if len(actual) < minLen {
		return errors.New("metrics: not enough points")
	}
	for i := range actual {
		if !finite(actual[i]) || !finite(predicted[i]) {
			return fmt.Errorf("metrics: non-finite value at index %d", i)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
