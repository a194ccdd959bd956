package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "canteen_"

	resultSuccess = "success"
)

var (
	registerOnce sync.Once

	ingestEvents  *prometheus.CounterVec
	ingestDropped *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec

	broadcastsTotal *prometheus.CounterVec

	aggregationTotal   *prometheus.CounterVec
	aggregationLatency *prometheus.HistogramVec

	reportRuns *prometheus.CounterVec
)

// Init registers observability metrics.
func Init() {
	registerOnce.Do(func() {
		ingestEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_events_total",
				Help: "Total processed telemetry events by result",
			},
			[]string{"result"},
		)
		ingestDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_dropped_total",
				Help: "Total dropped telemetry events by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Telemetry event processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		broadcastsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "live_broadcasts_total",
				Help: "Total live snapshot broadcasts by result",
			},
			[]string{"result"},
		)

		aggregationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "aggregation_queries_total",
				Help: "Total aggregation queries by operation and result",
			},
			[]string{"operation", "result"},
		)
		aggregationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "aggregation_latency_seconds",
				Help:    "Aggregation query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		)

		reportRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_runs_total",
				Help: "Total scheduled report runs by cadence and result",
			},
			[]string{"cadence", "result"},
		)

		prometheus.MustRegister(
			ingestEvents,
			ingestDropped,
			ingestLatency,
			broadcastsTotal,
			aggregationTotal,
			aggregationLatency,
			reportRuns,
		)
	})
}

// ObserveIngest records event processing duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestEvents != nil {
		ingestEvents.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestDropped increments the dropped event counter.
func IncIngestDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestDropped != nil {
		ingestDropped.WithLabelValues(reason).Inc()
	}
}

// IncBroadcast increments the live broadcast counter.
func IncBroadcast(result string) {
	if result == "" {
		result = resultSuccess
	}
	if broadcastsTotal != nil {
		broadcastsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveAggregation records aggregation query latency and result.
func ObserveAggregation(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if aggregationTotal != nil {
		aggregationTotal.WithLabelValues(operation, result).Inc()
	}
	if aggregationLatency != nil {
		aggregationLatency.WithLabelValues(operation, result).Observe(duration.Seconds())
	}
}

// IncReportRun increments the scheduled report counter.
func IncReportRun(cadence, result string) {
	if cadence == "" {
		cadence = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportRuns != nil {
		reportRuns.WithLabelValues(cadence, result).Inc()
	}
}
