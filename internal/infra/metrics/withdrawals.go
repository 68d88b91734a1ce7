package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(withdrawalsTotal) }

var withdrawalsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "withdrawals_total",
		Help: "Withdrawal lifecycle events by outcome.",
	},
	[]string{"outcome"}, // 'requested', 'approved', 'rejected', 'completed'
)

func IncWithdrawal(outcome string) {
	withdrawalsTotal.WithLabelValues(norm(outcome)).Inc()
}
