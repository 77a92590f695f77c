package alertmanager

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onlinetracker",
		Name:      "alerts_sent_total",
		Help:      "Notification attempts per channel, alert kind and delivery result.",
	}, []string{"channel", "kind", "success"})

	alertDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onlinetracker",
		Name:      "alert_decisions_total",
		Help:      "Alert evaluations split by outcome.",
	}, []string{"notify"})
)

func observeDecision(d Decision) {
	alertDecisions.WithLabelValues(strconv.FormatBool(d.Notify)).Inc()
}
