package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminRequestTotal) }

var adminRequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_request_total",
		Help: "Admin API requests by endpoint and authorization outcome.",
	},
	[]string{"endpoint", "status"}, // status: 'authorized', 'unauthorized'
)

func IncAdminRequest(endpoint, status string) {
	adminRequestTotal.WithLabelValues(norm(endpoint), norm(status)).Inc()
}
