package stats

// EMA is an exponential moving average with a fixed smoothing factor, used
// to report a steady tokens-per-second rate across streams.
type EMA struct {
	alpha float64
	value float64
	count int
}

// NewEMA creates an EMA with smoothing factor alpha in (0, 1]. Larger alpha
// weights recent observations more.
func NewEMA(alpha float64) *EMA {
	return &EMA{alpha: Clamp(alpha, 0, 1)}
}

// Update folds v in and returns the new average. The first observation
// seeds the average.
func (e *EMA) Update(v float64) float64 {
	if e.count == 0 {
		e.value = v
	} else {
		e.value += e.alpha * (v - e.value)
	}

	e.count++

	return e.value
}

// Value returns the current average, 0 before any Update.
func (e *EMA) Value() float64 {
	return e.value
}
