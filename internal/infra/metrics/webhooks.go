package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookEventsTotal) }

var webhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider payment events by kind and reconciliation result.",
	},
	[]string{"kind", "result"}, // kind: 'pre_checkout', 'successful_payment'
)

func IncWebhookEvent(kind, result string) {
	webhookEventsTotal.WithLabelValues(norm(kind), norm(result)).Inc()
}
