package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
)

// newPrometheusReader creates an independent Prometheus registry and an OTel
// reader that feeds it. Each call gets its own registry so repeated runs in
// one process never hit duplicate collector registration.
func newPrometheusReader() (*prometheus.Registry, *promexporter.Exporter, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return registry, exporter, nil
}

// WriteMetricsFile writes the gathered metrics in the Prometheus text
// exposition format, suitable for the node exporter textfile collector.
func WriteMetricsFile(gatherer prometheus.Gatherer, path string) error {
	if gatherer == nil {
		return nil
	}

	err := prometheus.WriteToTextfile(path, gatherer)
	if err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}

	return nil
}
