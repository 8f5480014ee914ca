package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricPrefix = "hllsim"

	attrVariant = "variant"

	variantBasic     = "basic"
	variantCorrected = "corrected"
)

// durationBucketBoundaries covers 1ms to 600s per stream.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// relativeErrorBoundaries are symmetric around zero in steps that resolve
// errors near the 1.04/sqrt(m) range of common precisions.
var relativeErrorBoundaries = []float64{-0.2, -0.1, -0.05, -0.03, -0.02, -0.01, 0, 0.01, 0.02, 0.03, 0.05, 0.1, 0.2}

// SimulationMetrics holds OTel instruments for simulation runs.
type SimulationMetrics struct {
	tokensTotal      metric.Int64Counter
	streamsTotal     metric.Int64Counter
	checkpointsTotal metric.Int64Counter
	streamDuration   metric.Float64Histogram
	relativeError    metric.Float64Histogram
}

// NewSimulationMetrics creates simulation metric instruments from the given meter.
func NewSimulationMetrics(mt metric.Meter) (*SimulationMetrics, error) {
	set := newInstrumentSet(mt, metricPrefix)

	sm := &SimulationMetrics{
		tokensTotal:      set.total("tokens", "token", "Total tokens ingested by each estimator"),
		streamsTotal:     set.total("streams", "stream", "Total streams completed"),
		checkpointsTotal: set.total("checkpoints", "checkpoint", "Total checkpoints recorded"),
		streamDuration:   set.seconds("stream.duration", "Per-stream processing duration", durationBucketBoundaries),
		relativeError:    set.ratio("estimate.relative_error", "Relative error of the estimate at each checkpoint", relativeErrorBoundaries),
	}

	if set.err != nil {
		return nil, set.err
	}

	return sm, nil
}

// RecordStream records a completed stream.
// Safe to call on a nil receiver (no-op).
func (sm *SimulationMetrics) RecordStream(ctx context.Context, tokens int64, duration time.Duration) {
	if sm == nil {
		return
	}

	sm.tokensTotal.Add(ctx, tokens)
	sm.streamsTotal.Add(ctx, 1)
	sm.streamDuration.Record(ctx, duration.Seconds())
}

// RecordCheckpoint records one checkpoint's relative errors for both variants.
// Safe to call on a nil receiver (no-op).
func (sm *SimulationMetrics) RecordCheckpoint(ctx context.Context, basicRelErr, correctedRelErr float64) {
	if sm == nil {
		return
	}

	sm.checkpointsTotal.Add(ctx, 1)
	sm.relativeError.Record(ctx, basicRelErr, metric.WithAttributes(attribute.String(attrVariant, variantBasic)))
	sm.relativeError.Record(ctx, correctedRelErr, metric.WithAttributes(attribute.String(attrVariant, variantCorrected)))
}
