// Package telemetry holds the process-wide prometheus collectors.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ResolutionsTotal counts resolver runs by trigger ("request" or "refresh").
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_resolutions_total",
		Help: "Number of schedule resolutions performed.",
	}, []string{"trigger"})

	StatusCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_status_cache_total",
		Help: "Status cache lookups by result.",
	}, []string{"result"})

	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_mutations_total",
		Help: "Slot and item mutations by operation and outcome.",
	}, []string{"operation", "outcome"})

	RefreshErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schedule_refresh_errors_total",
		Help: "Background status refreshes that failed.",
	})

	TransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schedule_transitions_total",
		Help: "Observed changes of the active slot.",
	})

	UsingDefault = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_using_default",
		Help: "1 while the fallback slot is active.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
