package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instrumentSet creates instruments under one name prefix. Creation errors
// are joined so a caller checks err once after building the whole set.
type instrumentSet struct {
	meter  metric.Meter
	prefix string
	err    error
}

func newInstrumentSet(mt metric.Meter, prefix string) *instrumentSet {
	return &instrumentSet{meter: mt, prefix: prefix}
}

// total creates the counter <prefix>.<noun>.total with unit {unit}.
func (s *instrumentSet) total(noun, unit, desc string) metric.Int64Counter {
	name := s.prefix + "." + noun + ".total"

	c, err := s.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{"+unit+"}"))
	s.fail(name, err)

	return c
}

// seconds creates the histogram <prefix>.<subject>.seconds.
func (s *instrumentSet) seconds(subject, desc string, bounds []float64) metric.Float64Histogram {
	return s.histogram(s.prefix+"."+subject+".seconds", "s", desc, bounds)
}

// ratio creates the dimensionless histogram <prefix>.<subject>.
func (s *instrumentSet) ratio(subject, desc string, bounds []float64) metric.Float64Histogram {
	return s.histogram(s.prefix+"."+subject, "1", desc, bounds)
}

func (s *instrumentSet) histogram(name, unit, desc string, bounds []float64) metric.Float64Histogram {
	h, err := s.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	s.fail(name, err)

	return h
}

func (s *instrumentSet) fail(name string, err error) {
	if err != nil {
		s.err = errors.Join(s.err, fmt.Errorf("create %s: %w", name, err))
	}
}
