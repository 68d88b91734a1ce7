package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		purchasesExpiredTotal,
		promosDeactivatedTotal,
		sweepRunsTotal,
	)
}

var (
	purchasesExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchases_expired_total",
			Help: "Pending purchases failed by the expiry sweeper.",
		},
	)

	promosDeactivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promos_deactivated_total",
			Help: "Promo codes deactivated by the expiry sweeper.",
		},
	)

	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Background sweep executions, labeled by job and status.",
		},
		[]string{"job", "status"}, // status: 'ok', 'error', 'skipped'
	)
)

func AddPurchasesExpired(n int) {
	purchasesExpiredTotal.Add(float64(n))
}

func AddPromosDeactivated(n int) {
	promosDeactivatedTotal.Add(float64(n))
}

func IncSweepRun(job, status string) {
	sweepRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}
