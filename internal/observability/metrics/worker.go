package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	historyTotal    *prometheus.CounterVec
	historyDuration *prometheus.HistogramVec
	historyInFlight prometheus.Gauge
	historyLag      *prometheus.HistogramVec
	overdueLoans    *prometheus.GaugeVec
	overdueScans    *prometheus.CounterVec
	redriveEntries  *prometheus.CounterVec
	redriveRuns     *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	historyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docprof",
			Subsystem: "worker",
			Name:      "history_events_total",
			Help:      "Total consumed history events by status.",
		},
		[]string{"service", "status"},
	)
	historyDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docprof",
			Subsystem: "worker",
			Name:      "history_append_duration_seconds",
			Help:      "History append duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	historyInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docprof",
			Subsystem: "worker",
			Name:      "history_in_flight",
			Help:      "Number of history events being stored.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	historyLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docprof",
			Subsystem: "worker",
			Name:      "history_lag_seconds",
			Help:      "Delay between a change and its history entry being consumed.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	overdueLoans := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docprof",
			Subsystem: "loans",
			Name:      "overdue",
			Help:      "Borrowed loans past their due date at the last scan.",
		},
		[]string{"service"},
	)
	overdueScans := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docprof",
			Subsystem: "loans",
			Name:      "overdue_scans_total",
			Help:      "Total overdue scans by status.",
		},
		[]string{"service", "status"},
	)

	redriveEntries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docprof",
			Subsystem: "history",
			Name:      "redrive_entries_total",
			Help:      "Parked history entries republished by outcome.",
		},
		[]string{"service", "outcome"},
	)
	redriveRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docprof",
			Subsystem: "history",
			Name:      "redrive_runs_total",
			Help:      "Total outbox drains by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		historyTotal,
		historyDuration,
		historyInFlight,
		historyLag,
		overdueLoans,
		overdueScans,
		redriveEntries,
		redriveRuns,
	)

	return &WorkerMetrics{
		registry:        registry,
		historyTotal:    historyTotal,
		historyDuration: historyDuration,
		historyInFlight: historyInFlight,
		historyLag:      historyLag,
		overdueLoans:    overdueLoans,
		overdueScans:    overdueScans,
		redriveEntries:  redriveEntries,
		redriveRuns:     redriveRuns,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartHistory() {
	m.historyInFlight.Inc()
}

func (m *WorkerMetrics) FinishHistory(service string, duration time.Duration, err error) {
	m.historyInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.historyTotal.WithLabelValues(service, status).Inc()
	m.historyDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveHistoryLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.historyLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordOverdueScan(service string, overdue int, err error) {
	if err != nil {
		m.overdueScans.WithLabelValues(service, "error").Inc()
		return
	}
	m.overdueScans.WithLabelValues(service, "success").Inc()
	m.overdueLoans.WithLabelValues(service).Set(float64(overdue))
}

func (m *WorkerMetrics) RecordHistoryRedrive(service string, delivered, failed int, err error) {
	if err != nil {
		m.redriveRuns.WithLabelValues(service, "error").Inc()
		return
	}
	m.redriveRuns.WithLabelValues(service, "success").Inc()
	m.redriveEntries.WithLabelValues(service, "delivered").Add(float64(delivered))
	m.redriveEntries.WithLabelValues(service, "failed").Add(float64(failed))
}
