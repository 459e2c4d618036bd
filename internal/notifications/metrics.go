package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "palai_notifications_sent_total",
	Help: "Push and SMS notifications by target kind and outcome",
}, []string{"kind", "result"})

func recordSend(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sentTotal.WithLabelValues(kind, result).Inc()
}
