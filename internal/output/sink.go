package output

import "github.com/Sumatoshi-tech/hllsim/internal/simulation"

// MultiSink fans each record out to every sink in order. The first error
// stops the fan-out and is returned.
type MultiSink []simulation.RecordSink

// WriteRecord implements simulation.RecordSink.
func (ms MultiSink) WriteRecord(rec simulation.Record) error {
	for _, sink := range ms {
		err := sink.WriteRecord(rec)
		if err != nil {
			return err
		}
	}

	return nil
}

// SeriesCollector keeps the records of a single stream in memory.
type SeriesCollector struct {
	stream  int
	records []simulation.Record
}

// NewSeriesCollector creates a collector for stream index stream.
func NewSeriesCollector(stream int) *SeriesCollector {
	return &SeriesCollector{stream: stream}
}

// WriteRecord implements simulation.RecordSink. Records of other streams
// are ignored.
func (sc *SeriesCollector) WriteRecord(rec simulation.Record) error {
	if rec.Stream == sc.stream {
		sc.records = append(sc.records, rec)
	}

	return nil
}

// Records returns the collected records in arrival order.
func (sc *SeriesCollector) Records() []simulation.Record {
	return sc.records
}
