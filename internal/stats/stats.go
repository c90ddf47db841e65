// Package stats holds the small set of descriptive statistics the engine
// relies on. Moments come from gonum; percentiles use linear interpolation
// between closest ranks so quartile fences match the usual spreadsheet and
// numpy definition.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sorted returns an ascending copy of values.
func Sorted(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}

// Percentile returns the p-th quantile (p in [0,1]) of an ascending slice.
// It returns 0 for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n == 1 || p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	frac := h - float64(lo)
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Quartiles returns Q1 and Q3 of unsorted values.
func Quartiles(values []float64) (q1, q3 float64) {
	s := Sorted(values)
	return Percentile(s, 0.25), Percentile(s, 0.75)
}

// Median of unsorted values.
func Median(values []float64) float64 {
	return Percentile(Sorted(values), 0.5)
}

// Mean of values, 0 when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Sum of values.
func Sum(values []float64) float64 {
	return floats.Sum(values)
}

// PopStdDev is the population (biased) standard deviation.
func PopStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, variance := stat.PopMeanVariance(values, nil)
	return math.Sqrt(variance)
}

// WeightedMeanVariance returns the weighted mean and population variance.
// A nil weights slice weighs every value equally.
func WeightedMeanVariance(values, weights []float64) (mean, variance float64) {
	if len(values) == 0 {
		return 0, 0
	}
	if len(values) == 1 {
		return values[0], 0
	}
	return stat.PopMeanVariance(values, weights)
}

// TrimmedMean drops the single largest value when at least minForTrim
// values are present, then averages the rest.
func TrimmedMean(values []float64, minForTrim int) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) < minForTrim {
		return Mean(values)
	}
	s := Sorted(values)
	return Mean(s[:len(s)-1])
}

// EMA returns the exponential moving average of a chronological series with
// smoothing factor alpha. The average is seeded with the series mean so a
// leading run of zeros does not drag it to zero.
func EMA(series []float64, alpha float64) float64 {
	if len(series) == 0 {
		return 0
	}
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	ema := Mean(series)
	for _, v := range series {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema
}
