package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoments_Empty(t *testing.T) {
	t.Parallel()

	var m Moments

	assert.Zero(t, m.Count)
	assert.InDelta(t, 0, m.Mean(), 0.0001)
	assert.InDelta(t, 0, m.Variance(), 0.0001)
	assert.InDelta(t, 0, m.StdDev(), 0.0001)
}

func TestMoments_MatchesMeanStdDev(t *testing.T) {
	t.Parallel()

	values := []float64{2.0, 4.0, 4.0, 4.0, 5.0, 5.0, 7.0, 9.0}

	var m Moments
	for _, v := range values {
		m.Add(v)
	}

	mean, stddev := MeanStdDev(values)

	assert.Equal(t, len(values), m.Count)
	assert.InDelta(t, 40.0, m.Sum, 0.0001)
	assert.InDelta(t, mean, m.Mean(), 0.0001)
	assert.InDelta(t, stddev, m.StdDev(), 0.0001)
}

func TestMoments_ConstantSampleNeverNegative(t *testing.T) {
	t.Parallel()

	// Large identical values make SumSq/n - mean² cancel catastrophically.
	var m Moments
	for range 30 {
		m.Add(49_871.123456789)
	}

	assert.GreaterOrEqual(t, m.Variance(), 0.0)
	assert.False(t, math.IsNaN(m.StdDev()))
	assert.InDelta(t, 0, m.StdDev(), 1.0)
}

func TestMoments_CancellationClampedToZero(t *testing.T) {
	t.Parallel()

	m := Moments{Count: 2, Sum: 2, SumSq: 1.9999999}

	assert.InDelta(t, 0, m.Variance(), 0)
	assert.InDelta(t, 0, m.StdDev(), 0)
}
