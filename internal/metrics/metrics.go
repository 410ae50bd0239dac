// Package metrics exposes the Prometheus collectors shared by the server,
// the stats worker and the CLI.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ecomstudio/internal/core"
)

var StatsComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ecomstudio",
	Subsystem: "stats",
	Name:      "compute_duration_seconds",
	Help:      "Wall time of a full period statistics computation.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
})

var StatsDefaultedCombinations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecomstudio",
	Subsystem: "stats",
	Name:      "defaulted_combinations_total",
	Help:      "Period/direction combinations that fell back to the zero stat.",
}, []string{"period", "direction"})

var LedgerEventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecomstudio",
	Subsystem: "ledger",
	Name:      "events_recorded_total",
	Help:      "Ledger transactions written, by direction.",
}, []string{"direction"})

var LedgerQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "ecomstudio",
	Subsystem: "ledger",
	Name:      "query_duration_seconds",
	Help:      "Latency of ledger range queries, by backend and result.",
	Buckets:   prometheus.DefBuckets,
}, []string{"backend", "result"})

var SnapshotExports = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecomstudio",
	Subsystem: "worker",
	Name:      "snapshot_exports_total",
	Help:      "Stats snapshot exports, by trigger and result.",
}, []string{"trigger", "result"})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecomstudio",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests served, by route and status class.",
}, []string{"route", "status"})

var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ecomstudio",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the per-client rate limiter.",
})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "ecomstudio",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency, by route.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

// StatsRecorder feeds engine events into the Prometheus collectors.
type StatsRecorder struct{}

func (StatsRecorder) ObserveCompute(elapsed time.Duration, _ int) {
	StatsComputeDuration.Observe(elapsed.Seconds())
}

func (StatsRecorder) CombinationDefaulted(key core.StatKey) {
	StatsDefaultedCombinations.WithLabelValues(string(key.Period), string(key.Direction)).Inc()
}

// StatusClass buckets an HTTP status code as "2xx", "4xx" and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
