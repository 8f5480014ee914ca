package simulation

// Record is one time-series observation: the state of one stream at one
// checkpoint.
type Record struct {
	Stream       int     `json:"stream"        yaml:"stream"`
	Step         int     `json:"step"          yaml:"step"`
	Processed    int     `json:"processed"     yaml:"processed"`
	TrueUnique   int     `json:"true_unique"   yaml:"true_unique"`
	Estimate     float64 `json:"estimate"      yaml:"estimate"`
	EstimatePlus float64 `json:"estimate_plus" yaml:"estimate_plus"`
}

// RecordSink receives time-series records in emission order.
// A returned error aborts the run.
type RecordSink interface {
	WriteRecord(rec Record) error
}

// RecordSinkFunc adapts a function to RecordSink.
type RecordSinkFunc func(rec Record) error

// WriteRecord calls f(rec).
func (f RecordSinkFunc) WriteRecord(rec Record) error {
	return f(rec)
}

// discardSink drops every record.
type discardSink struct{}

func (discardSink) WriteRecord(Record) error { return nil }

// Discard is a RecordSink that drops all records.
var Discard RecordSink = discardSink{}
