package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_actions_total",
		Help: "Lifecycle actions by action and result",
	}, []string{"action", "result"})
	PaymentVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment signature verifications by result",
	}, []string{"result"})
	ReputationDeltas = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_deltas_total",
		Help: "Reputation deltas applied by reason",
	}, []string{"reason"})
	NoShowReports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "no_show_reports_total",
		Help: "No-show report events",
	}, []string{"event"})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification dispatches by result",
	}, []string{"result"})
	LedgerDrift = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reputation_ledger_drift_workers",
		Help: "Workers whose cached score differs from the replayed ledger in the last audit",
	})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobActions,
			PaymentVerifications,
			ReputationDeltas,
			NoShowReports,
			Notifications,
			LedgerDrift,
		)
	})
	return promhttp.Handler()
}

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
