package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/hllsim/internal/simulation"
)

// Summary formats.
const (
	FormatCSV  = "csv"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ErrUnknownFormat is returned for a summary format other than csv, yaml or json.
var ErrUnknownFormat = errors.New("unknown summary format")

// SummaryHeader is the first row of the CSV summary.
var SummaryHeader = []string{"step", "processed", "mean_true", "mean_est", "std_est", "mean_est_plus", "std_est_plus"}

// WriteSummary writes rows to w in format. CSV carries the estimate
// moments only; YAML and JSON also include the relative-error moments.
func WriteSummary(w io.Writer, rows []simulation.SummaryRow, format string) error {
	switch format {
	case FormatCSV:
		return writeSummaryCSV(w, rows)
	case FormatYAML:
		enc := yaml.NewEncoder(w)

		err := enc.Encode(rows)
		if err != nil {
			return fmt.Errorf("encode yaml summary: %w", err)
		}

		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(rows)
		if err != nil {
			return fmt.Errorf("encode json summary: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeSummaryCSV(w io.Writer, rows []simulation.SummaryRow) error {
	cw := csv.NewWriter(w)

	err := cw.Write(SummaryHeader)
	if err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	for _, row := range rows {
		err = cw.Write([]string{
			strconv.Itoa(row.Step),
			strconv.Itoa(row.Processed),
			formatFloat(row.MeanTrue),
			formatFloat(row.MeanEst),
			formatFloat(row.StdEst),
			formatFloat(row.MeanEstPlus),
			formatFloat(row.StdEstPlus),
		})
		if err != nil {
			return fmt.Errorf("write summary row %d: %w", row.Step, err)
		}
	}

	cw.Flush()

	err = cw.Error()
	if err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}

	return nil
}
