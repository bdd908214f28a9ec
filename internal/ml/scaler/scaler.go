package scaler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type artifact struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// Standard centers each feature to zero mean and unit variance. Fit learns
// the parameters from the training matrix only; Transform applies them
// without ever refitting.
type Standard struct {
	means  []float64
	stds   []float64
	fitted bool
}

func NewStandard() *Standard {
	return &Standard{}
}

func (s *Standard) Fitted() bool {
	return s.fitted
}

func (s *Standard) Fit(x [][]float64) error {
	if len(x) == 0 || len(x[0]) == 0 {
		return errors.New("scaler: empty training matrix")
	}
	featCount := len(x[0])
	for i := range x {
		if len(x[i]) != featCount {
			return fmt.Errorf("scaler: ragged matrix, row %d has %d features, want %d", i, len(x[i]), featCount)
		}
	}

	means := make([]float64, featCount)
	stds := make([]float64, featCount)
	n := float64(len(x))
	for j := 0; j < featCount; j++ {
		for i := range x {
			means[j] += x[i][j]
		}
		means[j] /= n
		for i := range x {
			d := x[i][j] - means[j]
			stds[j] += d * d
		}
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	s.means = means
	s.stds = stds
	s.fitted = true
	return nil
}

// Transform returns a new scaled matrix and leaves both the input and the
// fitted parameters untouched.
func (s *Standard) Transform(x [][]float64) ([][]float64, error) {
	if !s.fitted {
		return nil, errors.New("scaler: transform called before fit")
	}
	out := make([][]float64, len(x))
	for i := range x {
		if len(x[i]) != len(s.means) {
			return nil, fmt.Errorf("scaler: row %d has %d features, fitted for %d", i, len(x[i]), len(s.means))
		}
		row := make([]float64, len(x[i]))
		for j := range x[i] {
			row[j] = (x[i][j] - s.means[j]) / s.stds[j]
		}
		out[i] = row
	}
	return out, nil
}

func (s *Standard) TransformRow(row []float64) ([]float64, error) {
	out, err := s.Transform([][]float64{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *Standard) MarshalBinary() ([]byte, error) {
	if !s.fitted {
		return nil, errors.New("scaler: marshal called before fit")
	}
	return json.Marshal(artifact{Means: s.means, Stds: s.stds})
}

func UnmarshalBinary(data []byte) (*Standard, error) {
	if len(data) == 0 {
		return nil, errors.New("scaler: empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if len(a.Means) == 0 || len(a.Means) != len(a.Stds) {
		return nil, errors.New("scaler: invalid artifact")
	}
	return &Standard{means: a.Means, stds: a.Stds, fitted: true}, nil
}
