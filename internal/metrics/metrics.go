package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FetchTotal counts fetches by resource and outcome kind.
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_sync_fetch_total",
			Help: "Total number of vehicle and history fetches.",
		},
		[]string{"resource", "outcome"}, // resource: vehicles/history, outcome: apperr kind
	)

	// FetchLatency records the duration of remote fetches including retries.
	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_sync_fetch_latency_seconds",
			Help:    "Latency of fetches against the fleet API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	// LoginTotal counts login submissions by outcome kind.
	LoginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_sync_login_total",
			Help: "Total number of login submissions.",
		},
		[]string{"outcome"},
	)

	// SessionActive is 1 while a session token is held.
	SessionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_sync_session_active",
			Help: "Whether a session is established (1=yes, 0=no).",
		},
	)
)

func init() {
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(FetchLatency)
	prometheus.MustRegister(LoginTotal)
	prometheus.MustRegister(SessionActive)
}
