package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paylink_webhook_events_total",
		Help: "Webhook deliveries by processing outcome.",
	}, []string{"outcome"})

	SweepActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paylink_sweep_actions_total",
		Help: "Reminder sweep actions applied.",
	}, []string{"action"})

	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paylink_sweep_errors_total",
		Help: "Per-record failures collected by reminder sweeps.",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paylink_sweep_duration_seconds",
		Help:    "Wall time of reminder sweeps.",
		Buckets: prometheus.DefBuckets,
	})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paylink_gateway_requests_total",
		Help: "Payment gateway calls by operation and result.",
	}, []string{"operation", "result"})
)

// ObserveGateway counts one gateway call.
func ObserveGateway(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	GatewayRequests.WithLabelValues(operation, result).Inc()
}
