package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// TextfileExporter collects OTel instruments into a private Prometheus
// registry and dumps it in text exposition format, for node_exporter's
// textfile collector or a later diff between runs.
type TextfileExporter struct {
	path     string
	registry *prometheus.Registry
	reader   *promexporter.Exporter
}

// NewTextfileExporter creates an exporter writing registry to path.
func NewTextfileExporter(path string, registry *prometheus.Registry) (*TextfileExporter, error) {
	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &TextfileExporter{path: path, registry: registry, reader: exporter}, nil
}

// Reader returns the metric reader to attach to a MeterProvider.
func (te *TextfileExporter) Reader() sdkmetric.Reader {
	return te.reader
}

// Path returns the destination file.
func (te *TextfileExporter) Path() string {
	return te.path
}

// Write gathers the registry and atomically replaces the textfile.
func (te *TextfileExporter) Write() error {
	err := prometheus.WriteToTextfile(te.path, te.registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", te.path, err)
	}

	return nil
}
