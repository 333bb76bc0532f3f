package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tuning"

var (
	importsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Import submissions partitioned by outcome (completed, failed, duplicate).",
		},
		[]string{"outcome"},
	)

	analysisRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analyzer invocations partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_seconds",
			Help:      "Analyzer latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	proposalTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposal_transitions_total",
			Help:      "Proposal status transitions partitioned by target status.",
		},
		[]string{"to"},
	)

	appliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applies_total",
			Help:      "Apply calls partitioned by outcome (applied, dry_run, rolled_back).",
		},
		[]string{"outcome"},
	)

	workerMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_messages_total",
			Help:      "Queue messages handled by the post-import worker, by outcome.",
		},
		[]string{"outcome"},
	)

	settingWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setting_writes_total",
			Help:      "Configuration setting writes committed by the applier.",
		},
	)
)

// Outcome labels shared by callers.
const (
	OutcomeCompleted  = "completed"
	OutcomeFailed     = "failed"
	OutcomeDuplicate  = "duplicate"
	OutcomeProposal   = "proposal"
	OutcomeNoProposal = "no_proposal"
	OutcomeInFlight   = "in_flight"
	OutcomeError      = "error"
	OutcomeApplied    = "applied"
	OutcomeDryRun     = "dry_run"
	OutcomeRolledBack = "rolled_back"
	OutcomeReceived   = "received"
	OutcomeDeleted    = "deleted_unrecoverable"
)

// Register attaches collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		importsTotal,
		analysisRunsTotal,
		analysisDurationSeconds,
		proposalTransitionsTotal,
		appliesTotal,
		settingWritesTotal,
		workerMessagesTotal,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// IncImport counts an import submission outcome.
func IncImport(outcome string) {
	importsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAnalysis records analyzer latency and outcome.
func ObserveAnalysis(duration time.Duration, outcome string) {
	analysisRunsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// IncTransition counts a proposal status change.
func IncTransition(to string) {
	proposalTransitionsTotal.WithLabelValues(to).Inc()
}

// IncApply counts an apply outcome and the number of settings it wrote.
func IncApply(outcome string, writes int) {
	appliesTotal.WithLabelValues(outcome).Inc()
	if writes > 0 && outcome == OutcomeApplied {
		settingWritesTotal.Add(float64(writes))
	}
}

// IncWorkerMessage counts a worker message outcome.
func IncWorkerMessage(outcome string) {
	workerMessagesTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes the gatherer in Prometheus text format.
func Handler(g prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
