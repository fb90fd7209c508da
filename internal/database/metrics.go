package database

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Connected     prometheus.Gauge
	ProbeFailures prometheus.Counter
	Recreations   prometheus.Counter
	QueryRetries  prometheus.Counter
}

// NewMetrics builds the supervisor collectors and registers them with reg
// when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simplenotes",
			Subsystem: "db",
			Name:      "connected",
			Help:      "1 when the most recent database probe succeeded.",
		}),
		ProbeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simplenotes",
			Subsystem: "db",
			Name:      "probe_failures_total",
			Help:      "Database liveness probes that failed.",
		}),
		Recreations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simplenotes",
			Subsystem: "db",
			Name:      "pool_recreations_total",
			Help:      "Connection pools discarded and rebuilt.",
		}),
		QueryRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simplenotes",
			Subsystem: "db",
			Name:      "query_retries_total",
			Help:      "Queries retried after a connection error.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connected, m.ProbeFailures, m.Recreations, m.QueryRetries)
	}
	return m
}
