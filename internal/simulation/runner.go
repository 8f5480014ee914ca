// Package simulation drives synthetic token streams through both estimator
// variants, checkpoints them against an exact distinct count and aggregates
// accuracy statistics across streams.
//
// Everything runs on the calling goroutine: streams are processed one after
// another and tokens strictly in generation order.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/hllsim/internal/observability"
	"github.com/Sumatoshi-tech/hllsim/internal/tokengen"
	"github.com/Sumatoshi-tech/hllsim/pkg/alg/hll"
	"github.com/Sumatoshi-tech/hllsim/pkg/alg/stats"
	"github.com/Sumatoshi-tech/hllsim/pkg/safeconv"
)

const (
	// streamSeedMul and streamSeedStride derive per-stream seeds from the
	// base seed: base*1000003 + stream*999983.
	streamSeedMul    = 1000003
	streamSeedStride = 999983

	// estimatorSeedMask distinguishes estimator hash seeds from generator seeds.
	estimatorSeedMask = 0xABCDEF

	// stdErrCoeff and looseErrCoeff give the theoretical relative standard
	// error bounds coeff/sqrt(m).
	stdErrCoeff   = 1.04
	looseErrCoeff = 1.30

	// throughputSmoothing is the EMA factor for the logged tokens/s rate.
	throughputSmoothing = 0.3

	tracerName = "hllsim/simulation"
)

// ErrInvalidParams is returned when run parameters cannot describe a run.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Params are fixed for the lifetime of a run.
type Params struct {
	StreamLength int
	Streams      int
	Partitions   int
	Seed         uint64
	Precision    uint8
}

// Validate checks that every parameter is in range.
func (p Params) Validate() error {
	switch {
	case p.StreamLength <= 0:
		return fmt.Errorf("%w: stream length must be positive, got %d", ErrInvalidParams, p.StreamLength)
	case p.Streams <= 0:
		return fmt.Errorf("%w: streams must be positive, got %d", ErrInvalidParams, p.Streams)
	case p.Partitions <= 0:
		return fmt.Errorf("%w: partitions must be positive, got %d", ErrInvalidParams, p.Partitions)
	case p.Precision < hll.MinPrecision || p.Precision > hll.MaxPrecision:
		return fmt.Errorf("%w: %w", ErrInvalidParams, hll.ErrPrecisionOutOfRange)
	}

	return nil
}

// Theory holds the analytical reference values for a precision.
type Theory struct {
	Registers   int
	MemoryBytes int
	StdErr      float64
	LooseStdErr float64
}

// TheoryFor returns the theoretical error bounds for precision.
func TheoryFor(precision uint8) Theory {
	m := 1 << precision
	sqrtM := math.Sqrt(float64(m))

	return Theory{
		Registers:   m,
		MemoryBytes: m,
		StdErr:      stdErrCoeff / sqrtM,
		LooseStdErr: looseErrCoeff / sqrtM,
	}
}

// Result is the outcome of a completed run.
type Result struct {
	Params      Params
	Schedule    Schedule
	Summaries   []SummaryRow
	FinalErrors map[hll.Variant][]float64
	Theory      Theory
	Tokens      int64
	Elapsed     time.Duration
}

// StreamSeed returns the seed of stream index s under base seed base.
func StreamSeed(base uint64, s int) uint64 {
	return base*streamSeedMul + safeconv.MustIntToUint64(s)*streamSeedStride
}

// EstimatorSeed returns the hash seed used by both estimators of a stream.
func EstimatorSeed(streamSeed uint64) uint64 {
	return streamSeed ^ estimatorSeedMask
}

// Runner executes a simulation.
type Runner struct {
	params  Params
	sink    RecordSink
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.SimulationMetrics
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTracer sets the tracer used for run and stream spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// WithMetrics sets the metric instruments recorded during the run.
func WithMetrics(metrics *observability.SimulationMetrics) Option {
	return func(r *Runner) {
		r.metrics = metrics
	}
}

// NewRunner validates params and creates a Runner writing time-series
// records to sink. A nil sink discards records.
func NewRunner(params Params, sink RecordSink, opts ...Option) (*Runner, error) {
	err := params.Validate()
	if err != nil {
		return nil, err
	}

	if sink == nil {
		sink = Discard
	}

	r := &Runner{
		params: params,
		sink:   sink,
		logger: slog.Default(),
		tracer: nooptrace.NewTracerProvider().Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Run processes every stream in order and returns the aggregated result.
// A sink error or a cancelled context aborts the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "simulation.run", trace.WithAttributes(
		attribute.Int("simulation.streams", r.params.Streams),
		attribute.Int("simulation.stream_length", r.params.StreamLength),
		attribute.Int("simulation.precision", int(r.params.Precision)),
	))
	defer span.End()

	start := time.Now()
	schedule := BuildSchedule(r.params.StreamLength, r.params.Partitions)
	agg := NewAggregator(schedule)
	throughput := stats.NewEMA(throughputSmoothing)

	r.logger.InfoContext(ctx, "simulation started",
		"streams", r.params.Streams,
		"stream_length", r.params.StreamLength,
		"precision", r.params.Precision,
		"checkpoints", schedule.Len(),
		"seed", r.params.Seed,
	)

	var tokens int64

	for s := range r.params.Streams {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("stream %d: %w", s, err)
		}

		streamStart := time.Now()

		err := r.runStream(ctx, s, schedule, agg)
		if err != nil {
			span.RecordError(err)

			return nil, err
		}

		elapsed := time.Since(streamStart)
		tokens += int64(r.params.StreamLength)

		rate := throughput.Update(float64(r.params.StreamLength) / max(elapsed.Seconds(), time.Microsecond.Seconds()))

		r.metrics.RecordStream(ctx, int64(r.params.StreamLength), elapsed)
		r.logger.InfoContext(ctx, "stream done",
			"stream", s,
			"elapsed", elapsed,
			"tokens_per_sec", math.Round(rate),
		)
	}

	res := &Result{
		Params:    r.params,
		Schedule:  schedule,
		Summaries: agg.Summaries(),
		FinalErrors: map[hll.Variant][]float64{
			hll.Basic:     agg.FinalErrors(hll.Basic),
			hll.Corrected: agg.FinalErrors(hll.Corrected),
		},
		Theory:  TheoryFor(r.params.Precision),
		Tokens:  tokens,
		Elapsed: time.Since(start),
	}

	r.logger.InfoContext(ctx, "simulation finished",
		"streams", agg.Streams(),
		"tokens", res.Tokens,
		"elapsed", res.Elapsed,
		"tokens_per_sec", math.Round(throughput.Value()),
	)

	return res, nil
}

// runStream feeds one stream through the exact set and both estimators,
// emitting a record and an aggregator contribution at each checkpoint.
func (r *Runner) runStream(ctx context.Context, s int, schedule Schedule, agg *Aggregator) error {
	seed := StreamSeed(r.params.Seed, s)

	ctx, span := r.tracer.Start(ctx, "simulation.stream", trace.WithAttributes(
		attribute.Int("stream.index", s),
		attribute.Int64("stream.seed", int64(seed)), //nolint:gosec // attribute carries the raw bits.
	))
	defer span.End()

	gen := tokengen.New(seed)

	basic, err := hll.New(hll.Basic, r.params.Precision, EstimatorSeed(seed))
	if err != nil {
		return fmt.Errorf("stream %d: %w", s, err)
	}

	corrected, err := hll.New(hll.Corrected, r.params.Precision, EstimatorSeed(seed))
	if err != nil {
		return fmt.Errorf("stream %d: %w", s, err)
	}

	exact := make(map[string]struct{}, r.params.StreamLength)
	next := 0

	for i := 1; i <= r.params.StreamLength && next < len(schedule); i++ {
		token := gen.Next()

		exact[string(token)] = struct{}{}
		basic.Add(token)
		corrected.Add(token)

		if i != schedule[next] {
			continue
		}

		rec := Record{
			Stream:       s,
			Step:         next,
			Processed:    i,
			TrueUnique:   len(exact),
			Estimate:     basic.Estimate(),
			EstimatePlus: corrected.Estimate(),
		}

		writeErr := r.sink.WriteRecord(rec)
		if writeErr != nil {
			span.RecordError(writeErr)

			return fmt.Errorf("write record stream=%d step=%d: %w", s, next, writeErr)
		}

		trueUnique := float64(rec.TrueUnique)
		agg.Add(next, trueUnique, rec.Estimate, rec.EstimatePlus)
		r.metrics.RecordCheckpoint(ctx,
			relativeError(rec.Estimate, trueUnique),
			relativeError(rec.EstimatePlus, trueUnique),
		)

		r.logger.DebugContext(ctx, "checkpoint",
			"stream", s,
			"step", next,
			"processed", i,
			"true_unique", rec.TrueUnique,
			"estimate", rec.Estimate,
			"estimate_plus", rec.EstimatePlus,
		)

		next++

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stream %d: %w", s, err)
		}
	}

	return nil
}
