// Package metrics registers the Prometheus collectors of the settlement engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "mietevo_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	computationTotal   *prometheus.CounterVec
	computationLatency *prometheus.HistogramVec
	tenantsComputed    prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	importRows *prometheus.CounterVec
)

// Init registers the collectors with the default registry. Safe to call more
// than once; the observe functions call it lazily.
func Init() {
	registerOnce.Do(func() {
		computationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_computations_total",
				Help: "Total settlement computations by mode and result",
			},
			[]string{"mode", "result"},
		)
		computationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_computation_latency_seconds",
				Help:    "Settlement computation latency in seconds, including input loading",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		)
		tenantsComputed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_tenants_computed_total",
				Help: "Total tenant settlements produced",
			},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_exports_total",
				Help: "Total settlement document exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_export_latency_seconds",
				Help:    "Settlement document rendering latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)
		importRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "meter_import_rows_total",
				Help: "Meter reading import rows by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			computationTotal,
			computationLatency,
			tenantsComputed,
			exportTotal,
			exportLatency,
			importRows,
		)
	})
}

// ObserveComputation records one settlement computation.
func ObserveComputation(mode, result string, tenants int, latency time.Duration) {
	Init()
	computationTotal.WithLabelValues(mode, result).Inc()
	computationLatency.WithLabelValues(mode).Observe(latency.Seconds())
	if tenants > 0 {
		tenantsComputed.Add(float64(tenants))
	}
}

// ObserveExport records one document export.
func ObserveExport(format, result string, latency time.Duration) {
	Init()
	exportTotal.WithLabelValues(format, result).Inc()
	exportLatency.WithLabelValues(format).Observe(latency.Seconds())
}

// ObserveImport records imported and rejected meter reading rows.
func ObserveImport(accepted, rejected int) {
	Init()
	if accepted > 0 {
		importRows.WithLabelValues("accepted").Add(float64(accepted))
	}
	if rejected > 0 {
		importRows.WithLabelValues("rejected").Add(float64(rejected))
	}
}
