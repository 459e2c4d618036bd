package resilience

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Outcomes of a call routed through a breaker.
const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeRejected = "rejected"
)

var (
	upstreamState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "palai_upstream_breaker_state",
		Help: "Breaker state per upstream (0=closed, 1=half-open, 2=open)",
	}, []string{"upstream"})

	upstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palai_upstream_calls_total",
		Help: "Calls made through an upstream breaker, by outcome",
	}, []string{"upstream", "outcome"})

	upstreamTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palai_upstream_breaker_transitions_total",
		Help: "Breaker state transitions per upstream",
	}, []string{"upstream", "to"})

	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palai_retry_attempts_total",
		Help: "Individual attempts made by retried operations",
	}, []string{"operation", "result"})

	retryCalls = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "palai_retry_call_duration_seconds",
		Help:    "Wall time of a retried operation, backoff included",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation", "result"})

	anonymousBreakers uint64
)

func breakerName(name string) string {
	if name != "" {
		return name
	}
	return "breaker-" + strconv.FormatUint(atomic.AddUint64(&anonymousBreakers, 1), 10)
}

func observeState(name string, state gobreaker.State) {
	value := 0.0
	switch state {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	upstreamState.WithLabelValues(name).Set(value)
}

func observeTransition(name string, to gobreaker.State) {
	upstreamTransitions.WithLabelValues(name, to.String()).Inc()
	observeState(name, to)
}

func observeCall(name, outcome string) {
	upstreamCalls.WithLabelValues(name, outcome).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordRetryAttempt counts a single attempt of a retried operation.
func RecordRetryAttempt(operation string, success bool) {
	retryAttempts.WithLabelValues(operation, resultLabel(success)).Inc()
}

// RecordRetryOperation observes how long a retried operation took overall.
func RecordRetryOperation(operation string, durationSeconds float64, success bool) {
	retryCalls.WithLabelValues(operation, resultLabel(success)).Observe(durationSeconds)
}
