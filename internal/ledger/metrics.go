package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Executions processed by the transaction core, labeled by operation type and outcome",
	}, []string{"operation_type", "outcome"})

	partialCommitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_partial_commits_total",
		Help: "Executions whose side effect ran but whose balance or ledger writes did not all succeed",
	})

	enrichmentFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_enrichment_failures_total",
		Help: "Records returned without an operation type, labeled by reason",
	}, []string{"reason"})

	executeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_execute_duration_seconds",
		Help:    "Latency distribution of transaction core executions",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation_type"})
)

const (
	outcomeSuccess             = "success"
	outcomeInsufficientBalance = "insufficient_balance"
	outcomeExecutionFailed     = "execution_failed"
	outcomeStoreFailed         = "store_failed"
	outcomeConflict            = "conflict"
	outcomePartialCommit       = "partial_commit"
)
