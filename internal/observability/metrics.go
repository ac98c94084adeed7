package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_ledger_operations_total",
		Help: "Ledger operations by type and outcome",
	}, []string{"operation", "outcome"})

	LedgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_ledger_operation_duration_seconds",
		Help:    "Latency of ledger operations including lock wait",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	IdempotentReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_idempotent_replays_total",
		Help: "External deposits answered from a previous result",
	}, []string{"source"})

	SessionFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_session_flushes_total",
		Help: "Pending delta flushes by trigger and outcome",
	}, []string{"trigger", "outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_active_sessions",
		Help: "Session entries currently held in memory",
	})

	RoundsPlayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_rounds_total",
		Help: "Resolved rounds by result",
	}, []string{"result"})
)

// Outcome maps an error to a low-cardinality metric label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
