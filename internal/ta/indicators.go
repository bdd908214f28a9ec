package ta

import "math"

func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// SMASeries returns the simple moving average with a NaN prefix until a full
// window is available.
func SMASeries(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// RollingStdSeries returns the trailing sample standard deviation, NaN until a
// full window is available.
func RollingStdSeries(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window <= 1 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		frame := values[i-window+1 : i+1]
		mean := 0.0
		for _, v := range frame {
			mean += v
		}
		mean /= float64(window)
		variance := 0.0
		for _, v := range frame {
			d := v - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(window-1))
	}
	return out
}

// RSISeries computes the relative strength index from a trailing rolling mean
// of gains and losses. The first period entries are NaN.
func RSISeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gains[i] = math.Max(delta, 0)
		losses[i] = math.Max(-delta, 0)
	}
	for i := period; i < len(closes); i++ {
		var avgGain, avgLoss float64
		for j := i - period + 1; j <= i; j++ {
			avgGain += gains[j]
			avgLoss += losses[j]
		}
		avgGain /= float64(period)
		avgLoss /= float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - (100 / (1 + rs))
	}
	return out
}

// MACDSeries returns the MACD line (fast EMA minus slow EMA) and its signal
// line (EMA of the MACD line).
func MACDSeries(values []float64, fast, slow, signal int) ([]float64, []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMASeries(macdLine, signal)
	return macdLine, signalLine
}

// PctChangeSeries returns the simple one-step return series with NaN at the
// first index and wherever the previous value is zero.
func PctChangeSeries(values []float64) []float64 {
	out := nanSeries(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out[i] = (values[i] / values[i-1]) - 1
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
