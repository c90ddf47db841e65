package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	s := []float64{95, 100, 105, 110, 5000}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 95},
		{0.25, 100},
		{0.5, 105},
		{0.75, 110},
		{1, 5000},
		{0.1, 97},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(s, tt.p), 1e-9, "p=%v", tt.p)
	}

	assert.Equal(t, 0.0, Percentile(nil, 0.5))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 0.9))
}

func TestQuartilesAndMedian(t *testing.T) {
	q1, q3 := Quartiles([]float64{100, 110, 105, 95, 5000})
	assert.InDelta(t, 100, q1, 1e-9)
	assert.InDelta(t, 110, q3, 1e-9)

	assert.InDelta(t, 2.5, Median([]float64{4, 1, 3, 2}), 1e-9)
}

func TestTrimmedMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"below trim threshold keeps all", []float64{10, 20, 90}, 40},
		{"drops one highest", []float64{30000, 32000, 29000, 31000, 95000, 30000}, 30400},
		{"drops only one of tied maxima", []float64{10, 10, 50, 50}, 70.0 / 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TrimmedMean(tt.values, 4), 1e-9)
		})
	}
}

func TestPopStdDev(t *testing.T) {
	assert.Equal(t, 0.0, PopStdDev([]float64{42}))
	assert.InDelta(t, 2.0, PopStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestWeightedMeanVariance(t *testing.T) {
	m, v := WeightedMeanVariance([]float64{10, 20}, []float64{1, 1})
	assert.InDelta(t, 15, m, 1e-9)
	assert.InDelta(t, 25, v, 1e-9)

	m, v = WeightedMeanVariance([]float64{10, 20}, []float64{3, 1})
	assert.InDelta(t, 12.5, m, 1e-9)
	assert.InDelta(t, 18.75, v, 1e-9)

	m, v = WeightedMeanVariance([]float64{8}, nil)
	assert.Equal(t, 8.0, m)
	assert.Equal(t, 0.0, v)
}

func TestEMA(t *testing.T) {
	assert.Equal(t, 0.0, EMA(nil, 0.3))
	assert.InDelta(t, 5, EMA([]float64{5, 5, 5}, 0.3), 1e-9)

	// seed = mean(0, 10) = 5; 0.3*0 + 0.7*5 = 3.5; 0.3*10 + 0.7*3.5 = 5.45
	assert.InDelta(t, 5.45, EMA([]float64{0, 10}, 0.3), 1e-9)
}
