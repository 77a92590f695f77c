package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onlinetracker",
		Name:      "checks_total",
		Help:      "Persisted check results by monitor kind and status.",
	}, []string{"kind", "status"})

	checkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "onlinetracker",
		Name:      "check_duration_seconds",
		Help:      "Wall time of a full check, all attempts included.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind"})

	unitsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "onlinetracker",
		Name:      "scheduler_units_in_flight",
		Help:      "Check units dispatched and not yet finished.",
	})

	dispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "onlinetracker",
		Name:      "scheduler_dispatched_total",
		Help:      "Check units dispatched by scheduler ticks.",
	})

	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "onlinetracker",
		Name:      "persist_failures_total",
		Help:      "Check results dropped after storage retries were exhausted.",
	})

	sweptRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "onlinetracker",
		Name:      "retention_deleted_records_total",
		Help:      "Status records removed by the retention sweep.",
	})
)
