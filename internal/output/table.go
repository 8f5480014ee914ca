package output

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/hllsim/internal/simulation"
	"github.com/Sumatoshi-tech/hllsim/pkg/alg/hll"
	"github.com/Sumatoshi-tech/hllsim/pkg/alg/stats"
	"github.com/Sumatoshi-tech/hllsim/pkg/safeconv"
)

const (
	// verdictLow and verdictHigh bound observed/theoretical relative std
	// for the run to count as consistent with 1.04/sqrt(m).
	verdictLow  = 0.5
	verdictHigh = 1.5

	percent = 100
)

// Verdict compares the observed relative standard error with the theoretical one.
type Verdict struct {
	Observed    float64
	Theoretical float64
	Consistent  bool

	// Spread of |relative error| at the final checkpoint.
	MedianAbs float64
	P95Abs    float64
	MaxAbs    float64
}

// Ratio returns Observed/Theoretical.
func (v Verdict) Ratio() float64 {
	if v.Theoretical == 0 {
		return math.Inf(1)
	}

	return v.Observed / v.Theoretical
}

// Judge computes the verdict from the Basic estimator's final-checkpoint
// relative errors.
func Judge(res *simulation.Result) Verdict {
	final := res.FinalErrors[hll.Basic]
	_, observed := stats.MeanStdDev(final)
	abs := stats.Abs(final)

	v := Verdict{
		Observed:    observed,
		Theoretical: res.Theory.StdErr,
		MedianAbs:   stats.Median(abs),
		P95Abs:      stats.Percentile(abs, stats.PercentileP95),
		MaxAbs:      stats.Max(abs),
	}
	ratio := v.Ratio()
	v.Consistent = ratio >= verdictLow && ratio <= verdictHigh

	return v
}

// RenderTable writes the per-checkpoint summary table, the theory lines and
// the accuracy verdict. colorize enables ANSI colors on the verdict line.
func RenderTable(w io.Writer, res *simulation.Result, colorize bool) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(fmt.Sprintf("B=%d m=%d streams=%d N=%s",
		res.Params.Precision, res.Theory.Registers, res.Params.Streams,
		humanize.Comma(int64(res.Params.StreamLength))))
	tw.AppendHeader(table.Row{
		"step", "processed", "mean true",
		"mean est", "std est", "rel std %",
		"mean est+", "std est+", "rel std+ %",
	})

	for _, row := range res.Summaries {
		tw.AppendRow(table.Row{
			row.Step,
			humanize.Comma(int64(row.Processed)),
			fixed(row.MeanTrue, 1),
			fixed(row.MeanEst, 1),
			fixed(row.StdEst, 1),
			fixed(row.StdRelErr*percent, 2),
			fixed(row.MeanEstPlus, 1),
			fixed(row.StdEstPlus, 1),
			fixed(row.StdRelErrPlus*percent, 2),
		})
	}

	tw.Render()

	good := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)

	if !colorize {
		good.DisableColor()
		bad.DisableColor()
	}

	lines := []string{
		fmt.Sprintf("theory 1.04/sqrt(m) = %.5f", res.Theory.StdErr),
		fmt.Sprintf("theory 1.30/sqrt(m) = %.5f", res.Theory.LooseStdErr),
		"memory (standard): " + humanize.IBytes(safeconv.MustIntToUint64(res.Theory.MemoryBytes)),
		fmt.Sprintf("tokens: %s in %s", humanize.Comma(res.Tokens), res.Elapsed.Round(1e6)),
	}

	verdict := Judge(res)

	lines = append(lines, fmt.Sprintf("final |rel err|: median %.5f p95 %.5f max %.5f",
		verdict.MedianAbs, verdict.P95Abs, verdict.MaxAbs))

	for _, line := range lines {
		_, err := fmt.Fprintln(w, line)
		if err != nil {
			return fmt.Errorf("write theory: %w", err)
		}
	}

	verdictLine := fmt.Sprintf("observed final rel std %.5f (%.2fx theory)", verdict.Observed, verdict.Ratio())

	var err error
	if verdict.Consistent {
		_, err = good.Fprintln(w, verdictLine+": consistent")
	} else {
		_, err = bad.Fprintln(w, verdictLine+": outside expected band")
	}

	if err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}

	return nil
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
