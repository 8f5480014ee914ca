// Package output writes simulation results: the per-checkpoint time series,
// the cross-stream summary, a console table and an HTML plot page.
package output

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/hllsim/internal/simulation"
)

// lz4Ext is appended to compressed time-series paths.
const lz4Ext = ".lz4"

// TimeSeriesHeader is the first row of every time-series file.
var TimeSeriesHeader = []string{"stream", "step", "processed", "true_unique", "estimate", "estimate_plus"}

// TimeSeriesWriter streams checkpoint records as CSV. It implements
// simulation.RecordSink. Close must be called to flush buffered rows.
type TimeSeriesWriter struct {
	csv     *csv.Writer
	buf     *bufio.Writer
	closers []io.Closer
	path    string
	rows    int
}

// NewTimeSeriesWriter writes the header to w and returns a writer for rows.
// Closing it flushes but does not close w.
func NewTimeSeriesWriter(w io.Writer) (*TimeSeriesWriter, error) {
	buf := bufio.NewWriter(w)
	tsw := &TimeSeriesWriter{csv: csv.NewWriter(buf), buf: buf}

	err := tsw.csv.Write(TimeSeriesHeader)
	if err != nil {
		return nil, fmt.Errorf("write time-series header: %w", err)
	}

	return tsw, nil
}

// CreateTimeSeries creates the file at path and writes the header. With
// compress set, the stream is lz4-framed and ".lz4" is appended to path
// unless already present.
func CreateTimeSeries(path string, compress bool) (*TimeSeriesWriter, error) {
	if compress && !strings.HasSuffix(path, lz4Ext) {
		path += lz4Ext
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create time series: %w", err)
	}

	var (
		dst     io.Writer = f
		closers []io.Closer
	)

	if compress {
		zw := lz4.NewWriter(f)
		dst = zw
		closers = append(closers, zw)
	}

	tsw, err := NewTimeSeriesWriter(dst)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}

	tsw.closers = append(closers, f)
	tsw.path = path

	return tsw, nil
}

// Path returns the file written by CreateTimeSeries, or "" for a plain writer.
func (tsw *TimeSeriesWriter) Path() string {
	return tsw.path
}

// Rows returns how many records were written.
func (tsw *TimeSeriesWriter) Rows() int {
	return tsw.rows
}

// WriteRecord appends one checkpoint row.
func (tsw *TimeSeriesWriter) WriteRecord(rec simulation.Record) error {
	err := tsw.csv.Write([]string{
		strconv.Itoa(rec.Stream),
		strconv.Itoa(rec.Step),
		strconv.Itoa(rec.Processed),
		strconv.Itoa(rec.TrueUnique),
		formatFloat(rec.Estimate),
		formatFloat(rec.EstimatePlus),
	})
	if err != nil {
		return fmt.Errorf("write time-series row: %w", err)
	}

	tsw.rows++

	return nil
}

// Close flushes buffered rows and closes the lz4 frame and file, if any.
func (tsw *TimeSeriesWriter) Close() error {
	tsw.csv.Flush()

	errs := []error{tsw.csv.Error(), tsw.buf.Flush()}
	for _, c := range tsw.closers {
		errs = append(errs, c.Close())
	}

	err := errors.Join(errs...)
	if err != nil {
		return fmt.Errorf("close time series: %w", err)
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
