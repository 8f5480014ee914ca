package stats

import "math"

// Moments accumulates the count, sum and sum of squares of a sample so that
// mean and population variance can be derived without keeping the values.
// Values are folded in the order Add is called.
type Moments struct {
	Count int
	Sum   float64
	SumSq float64
}

// Add folds v into the accumulator.
func (m *Moments) Add(v float64) {
	m.Count++
	m.Sum += v
	m.SumSq += v * v
}

// Mean returns Sum/Count, or 0 when nothing was added.
func (m Moments) Mean() float64 {
	if m.Count == 0 {
		return 0
	}

	return m.Sum / float64(m.Count)
}

// Variance returns SumSq/Count - Mean², clamped at 0 because the
// subtraction can cancel to a tiny negative value.
func (m Moments) Variance() float64 {
	if m.Count == 0 {
		return 0
	}

	mean := m.Mean()
	variance := m.SumSq/float64(m.Count) - mean*mean

	return Clamp(variance, 0, math.Inf(1))
}

// StdDev returns the population standard deviation.
func (m Moments) StdDev() float64 {
	return math.Sqrt(m.Variance())
}
