package simulation

import (
	"github.com/Sumatoshi-tech/hllsim/pkg/alg/hll"
	"github.com/Sumatoshi-tech/hllsim/pkg/alg/stats"
)

// SummaryRow is the cross-stream summary of one checkpoint.
// The relative-error fields are (estimate - exact) / exact per stream.
type SummaryRow struct {
	Step           int     `json:"step"               yaml:"step"`
	Processed      int     `json:"processed"          yaml:"processed"`
	MeanTrue       float64 `json:"mean_true"          yaml:"mean_true"`
	MeanEst        float64 `json:"mean_est"           yaml:"mean_est"`
	StdEst         float64 `json:"std_est"            yaml:"std_est"`
	MeanEstPlus    float64 `json:"mean_est_plus"      yaml:"mean_est_plus"`
	StdEstPlus     float64 `json:"std_est_plus"       yaml:"std_est_plus"`
	MeanRelErr     float64 `json:"mean_rel_err"       yaml:"mean_rel_err"`
	StdRelErr      float64 `json:"std_rel_err"        yaml:"std_rel_err"`
	MeanRelErrPlus float64 `json:"mean_rel_err_plus"  yaml:"mean_rel_err_plus"`
	StdRelErrPlus  float64 `json:"std_rel_err_plus"   yaml:"std_rel_err_plus"`
}

// checkpointStat holds the accumulators for one checkpoint.
type checkpointStat struct {
	exact        stats.Moments
	basic        stats.Moments
	corrected    stats.Moments
	relBasic     stats.Moments
	relCorrected stats.Moments
}

// Aggregator accumulates per-checkpoint estimate moments across streams.
// Contributions are folded in call order; it is not safe for concurrent use.
type Aggregator struct {
	schedule Schedule
	stats    []checkpointStat
	final    map[hll.Variant][]float64
}

// NewAggregator creates an aggregator with one accumulator per checkpoint.
func NewAggregator(schedule Schedule) *Aggregator {
	return &Aggregator{
		schedule: schedule,
		stats:    make([]checkpointStat, len(schedule)),
		final:    make(map[hll.Variant][]float64, 2),
	}
}

// Add folds one stream's observation at checkpoint step.
func (a *Aggregator) Add(step int, exact, basic, corrected float64) {
	st := &a.stats[step]

	st.exact.Add(exact)
	st.basic.Add(basic)
	st.corrected.Add(corrected)

	relBasic := relativeError(basic, exact)
	relCorrected := relativeError(corrected, exact)

	st.relBasic.Add(relBasic)
	st.relCorrected.Add(relCorrected)

	if step == len(a.stats)-1 {
		a.final[hll.Basic] = append(a.final[hll.Basic], relBasic)
		a.final[hll.Corrected] = append(a.final[hll.Corrected], relCorrected)
	}
}

// Streams returns how many streams contributed to the first checkpoint.
func (a *Aggregator) Streams() int {
	if len(a.stats) == 0 {
		return 0
	}

	return a.stats[0].exact.Count
}

// Summaries returns one row per checkpoint, in schedule order.
func (a *Aggregator) Summaries() []SummaryRow {
	rows := make([]SummaryRow, len(a.stats))

	for i := range a.stats {
		st := &a.stats[i]

		rows[i] = SummaryRow{
			Step:           i,
			Processed:      a.schedule[i],
			MeanTrue:       st.exact.Mean(),
			MeanEst:        st.basic.Mean(),
			StdEst:         st.basic.StdDev(),
			MeanEstPlus:    st.corrected.Mean(),
			StdEstPlus:     st.corrected.StdDev(),
			MeanRelErr:     st.relBasic.Mean(),
			StdRelErr:      st.relBasic.StdDev(),
			MeanRelErrPlus: st.relCorrected.Mean(),
			StdRelErrPlus:  st.relCorrected.StdDev(),
		}
	}

	return rows
}

// FinalErrors returns the per-stream relative errors of variant at the last
// checkpoint, in stream order.
func (a *Aggregator) FinalErrors(variant hll.Variant) []float64 {
	out := make([]float64, len(a.final[variant]))
	copy(out, a.final[variant])

	return out
}

func relativeError(est, exact float64) float64 {
	if exact == 0 {
		return 0
	}

	return (est - exact) / exact
}
