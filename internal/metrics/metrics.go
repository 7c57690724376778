package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run holds the metrics of one extraction on its own registry, without
// the Go runtime collectors.
type Run struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	EventsRetrieved prometheus.Gauge
	RowsWritten     prometheus.Gauge
	SampleFallback  prometheus.Gauge
	Success         prometheus.Gauge
	LastSuccess     prometheus.Gauge
	Duration        prometheus.Gauge
}

// NewRun registers the extraction metrics on a fresh registry.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Run{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmcconn_requests_total",
				Help: "Requests sent to the management appliance",
			},
			[]string{"method", "endpoint", "result"},
		),
		EventsRetrieved: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fmcconn_events_retrieved",
				Help: "Connection events retrieved in the last run",
			},
		),
		RowsWritten: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fmcconn_rows_written",
				Help: "Rows written to the export file in the last run",
			},
		),
		SampleFallback: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fmcconn_sample_fallback",
				Help: "1 if the last run exported the built-in sample events",
			},
		),
		Success: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fmcconn_last_run_success",
				Help: "1 if the last run completed",
			},
		),
		LastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fmcconn_last_success_timestamp_seconds",
				Help: "Unix time of the last completed run",
			},
		),
		Duration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fmcconn_run_duration_seconds",
				Help: "Wall time of the last run",
			},
		),
	}
}

// WriteTextfile writes the run metrics in text exposition format, for the
// node_exporter textfile collector. The file is replaced atomically.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
