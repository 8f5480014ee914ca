package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/hllsim/internal/observability"
)

func setupSimulationMeter(t *testing.T) (*observability.SimulationMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	sm, err := observability.NewSimulationMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return sm, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

func TestSimulationMetrics_RecordStream(t *testing.T) {
	t.Parallel()

	sm, reader := setupSimulationMeter(t)
	ctx := context.Background()

	sm.RecordStream(ctx, 1000, 2*time.Second)
	sm.RecordStream(ctx, 500, time.Second)

	rm := collectMetrics(t, reader)

	tokens := findMetric(rm, "hllsim.tokens.total")
	require.NotNil(t, tokens)

	sum, ok := tokens.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1500), sum.DataPoints[0].Value)

	streams := findMetric(rm, "hllsim.streams.total")
	require.NotNil(t, streams)

	streamSum, ok := streams.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), streamSum.DataPoints[0].Value)

	dur := findMetric(rm, "hllsim.stream.duration.seconds")
	require.NotNil(t, dur)

	hist, ok := dur.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 3.0, hist.DataPoints[0].Sum, 1e-9)
}

func TestSimulationMetrics_RecordCheckpoint(t *testing.T) {
	t.Parallel()

	sm, reader := setupSimulationMeter(t)

	sm.RecordCheckpoint(context.Background(), 0.02, -0.01)

	rm := collectMetrics(t, reader)

	relErr := findMetric(rm, "hllsim.estimate.relative_error")
	require.NotNil(t, relErr)

	hist, ok := relErr.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 2)

	byVariant := make(map[string]float64, 2)

	for _, dp := range hist.DataPoints {
		v, found := dp.Attributes.Value(attribute.Key("variant"))
		require.True(t, found)

		byVariant[v.AsString()] = dp.Sum
	}

	assert.InDelta(t, 0.02, byVariant["basic"], 1e-12)
	assert.InDelta(t, -0.01, byVariant["corrected"], 1e-12)

	assert.NotNil(t, findMetric(rm, "hllsim.checkpoints.total"))
}

func TestSimulationMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var sm *observability.SimulationMetrics

	assert.NotPanics(t, func() {
		sm.RecordStream(context.Background(), 10, time.Millisecond)
		sm.RecordCheckpoint(context.Background(), 0, 0)
	})
}

func TestNewSimulationMetrics_NoopMeter(t *testing.T) {
	t.Parallel()

	sm, err := observability.NewSimulationMetrics(noopmetric.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		sm.RecordStream(context.Background(), 10, time.Millisecond)
	})
}
