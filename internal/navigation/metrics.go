package navigation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "palai_navigation_active_sessions",
		Help: "Number of navigation sessions currently running",
	})

	routeFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palai_navigation_route_fetches_total",
		Help: "Route fetches started by navigation sessions, by outcome",
	}, []string{"result"})

	supersededFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palai_navigation_superseded_fetches_total",
		Help: "Route fetches cancelled or discarded because a newer position arrived",
	})

	skippedFixesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palai_navigation_skipped_fixes_total",
		Help: "Position fixes that did not move far enough to refetch the route",
	})

	natsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palai_navigation_nats_published_total",
		Help: "Route updates published to NATS",
	})

	natsPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palai_navigation_nats_publish_errors_total",
		Help: "Route update publishes that failed",
	})

	natsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "palai_navigation_nats_connected",
		Help: "1 if the NATS connection is established, 0 otherwise",
	})

	publishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "palai_navigation_publish_duration_seconds",
		Help:    "Time spent publishing a route update",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10),
	})
)

func recordFetch(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	routeFetchesTotal.WithLabelValues(result).Inc()
}

// natsMetrics adapts the package collectors to the publisher hooks.
type natsMetrics struct{}

func (natsMetrics) PublishedInc()                  { natsPublishedTotal.Inc() }
func (natsMetrics) PublishErrInc()                 { natsPublishErrorsTotal.Inc() }
func (natsMetrics) PublishObserve(d time.Duration) { publishDuration.Observe(d.Seconds()) }

func (natsMetrics) SetConnected(connected bool) {
	if connected {
		natsConnected.Set(1)
		return
	}
	natsConnected.Set(0)
}
