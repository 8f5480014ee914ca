package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/hllsim/internal/simulation"
)

const (
	chartWidth  = "1100px"
	chartHeight = "500px"
	lineWidth   = 2
	bandWidth   = 1
)

// WritePlot renders an HTML page with two line charts: the exact count and
// both estimates over one stream, and the cross-stream mean of each estimate
// with its plus/minus one standard deviation band.
func WritePlot(w io.Writer, series []simulation.Record, rows []simulation.SummaryRow) error {
	page := components.NewPage()
	page.PageTitle = "hllsim"
	page.AddCharts(streamChart(series), spreadChart(rows))

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plot page: %w", err)
	}

	return nil
}

func newLine(title, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "processed"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "distinct"}),
	)

	return line
}

func streamChart(series []simulation.Record) *charts.Line {
	labels := make([]string, len(series))
	exact := make([]opts.LineData, len(series))
	basic := make([]opts.LineData, len(series))
	corrected := make([]opts.LineData, len(series))

	for i, rec := range series {
		labels[i] = strconv.Itoa(rec.Processed)
		exact[i] = opts.LineData{Value: rec.TrueUnique}
		basic[i] = opts.LineData{Value: rec.Estimate}
		corrected[i] = opts.LineData{Value: rec.EstimatePlus}
	}

	line := newLine("Single stream", "exact vs estimates")
	line.SetXAxis(labels).
		AddSeries("exact", exact, charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth})).
		AddSeries("basic", basic, charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth})).
		AddSeries("corrected", corrected, charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}))

	return line
}

func spreadChart(rows []simulation.SummaryRow) *charts.Line {
	labels := make([]string, len(rows))
	meanTrue := make([]opts.LineData, len(rows))
	mean := make([]opts.LineData, len(rows))
	lower := make([]opts.LineData, len(rows))
	upper := make([]opts.LineData, len(rows))
	meanPlus := make([]opts.LineData, len(rows))
	lowerPlus := make([]opts.LineData, len(rows))
	upperPlus := make([]opts.LineData, len(rows))

	for i, row := range rows {
		labels[i] = strconv.Itoa(row.Processed)
		meanTrue[i] = opts.LineData{Value: row.MeanTrue}
		mean[i] = opts.LineData{Value: row.MeanEst}
		lower[i] = opts.LineData{Value: row.MeanEst - row.StdEst}
		upper[i] = opts.LineData{Value: row.MeanEst + row.StdEst}
		meanPlus[i] = opts.LineData{Value: row.MeanEstPlus}
		lowerPlus[i] = opts.LineData{Value: row.MeanEstPlus - row.StdEstPlus}
		upperPlus[i] = opts.LineData{Value: row.MeanEstPlus + row.StdEstPlus}
	}

	solid := charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth})
	dashed := charts.WithLineStyleOpts(opts.LineStyle{Width: bandWidth, Type: "dashed"})

	line := newLine("Across streams", "mean and one standard deviation")
	line.SetXAxis(labels).
		AddSeries("mean true", meanTrue, solid).
		AddSeries("mean basic", mean, solid).
		AddSeries("basic -σ", lower, dashed).
		AddSeries("basic +σ", upper, dashed).
		AddSeries("mean corrected", meanPlus, solid).
		AddSeries("corrected -σ", lowerPlus, dashed).
		AddSeries("corrected +σ", upperPlus, dashed)

	return line
}
