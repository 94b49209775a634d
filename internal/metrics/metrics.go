// Package metrics exposes Prometheus instrumentation for the seeding
// pipeline. Collectors are registered on the default registry; the
// trigger server serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchRuns counts batch runs by outcome: completed, early_exit,
	// skipped, aborted.
	BatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glossary",
		Subsystem: "seeder",
		Name:      "batch_runs_total",
		Help:      "Number of seeding batch runs by outcome.",
	}, []string{"outcome"})

	// TermsProcessed counts per-language term outcomes: completed,
	// skipped, manual_review, failed.
	TermsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glossary",
		Subsystem: "seeder",
		Name:      "terms_processed_total",
		Help:      "Number of term/language pairs processed by outcome.",
	}, []string{"outcome"})

	// TokensUsed counts tokens spent against the generative backend.
	TokensUsed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glossary",
		Subsystem: "seeder",
		Name:      "tokens_used_total",
		Help:      "Tokens consumed by generation calls.",
	})

	// BudgetRemaining tracks tokens left under the daily limit at the end
	// of the last batch run.
	BudgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "glossary",
		Subsystem: "budget",
		Name:      "tokens_remaining",
		Help:      "Tokens remaining under the enforceable daily limit.",
	})

	// BatchDuration observes batch run wall time in seconds.
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "glossary",
		Subsystem: "seeder",
		Name:      "batch_duration_seconds",
		Help:      "Wall time of seeding batch runs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// RecoveryRuns counts recovery passes by outcome: completed, failed.
	RecoveryRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glossary",
		Subsystem: "recovery",
		Name:      "runs_total",
		Help:      "Number of recovery passes by outcome.",
	}, []string{"outcome"})

	// DeadLetterItems counts items demoted to the dead-letter store.
	DeadLetterItems = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glossary",
		Subsystem: "recovery",
		Name:      "dead_letter_items_total",
		Help:      "Items demoted to the dead-letter store.",
	})
)
