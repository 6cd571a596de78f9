package observability

import (
	"context"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tapestry"

// Metrics holds the engine collectors.
type Metrics struct {
	FlowsStarted *prometheus.CounterVec
	FlowsEnded   *prometheus.CounterVec
	FlowsActive  prometheus.Gauge
	Steps        *prometheus.CounterVec
	Transactions *prometheus.CounterVec
	Changes      prometheus.Counter
	JobsLaunched *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FlowsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_started_total",
			Help:      "Flows started, by flow key.",
		}, []string{"flow"}),
		FlowsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_ended_total",
			Help:      "Flows ended, by flow key and final progress.",
		}, []string{"flow", "progress"}),
		FlowsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flows_active",
			Help:      "Flows currently running across sessions.",
		}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_steps_total",
			Help:      "Flow steps executed, by flow key and step.",
		}, []string{"flow", "step"}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Change log operations, by kind (commit, undo, redo).",
		}, []string{"kind"}),
		Changes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_committed_total",
			Help:      "Individual changes carried by committed transactions.",
		}),
		JobsLaunched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_launched_total",
			Help:      "Background jobs launched, by job name.",
		}, []string{"job"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Background job duration, by job name and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.FlowsStarted, m.FlowsEnded, m.FlowsActive, m.Steps,
			m.Transactions, m.Changes, m.JobsLaunched, m.JobDuration)
	}
	return m
}

// Hooks returns lifecycle hooks that feed m. Merge them with other hooks
// through domain.LifecycleHooks.Merge.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnFlowStart: func(_ context.Context, e *domain.FlowEvent) {
			m.FlowsStarted.WithLabelValues(e.Flow).Inc()
			m.FlowsActive.Inc()
		},
		OnStep: func(_ context.Context, e *domain.FlowEvent) {
			m.Steps.WithLabelValues(e.Flow, e.Step).Inc()
		},
		OnFlowEnd: func(_ context.Context, e *domain.FlowEvent) {
			m.FlowsEnded.WithLabelValues(e.Flow, e.Progress.String()).Inc()
			m.FlowsActive.Dec()
		},
		OnCommit: func(_ context.Context, e *domain.TransactionEvent) {
			m.Transactions.WithLabelValues("commit").Inc()
			m.Changes.Add(float64(e.Changes))
		},
		OnUndo: func(_ context.Context, _ *domain.TransactionEvent) {
			m.Transactions.WithLabelValues("undo").Inc()
		},
		OnRedo: func(_ context.Context, _ *domain.TransactionEvent) {
			m.Transactions.WithLabelValues("redo").Inc()
		},
		OnJobLaunch: func(_ context.Context, e *domain.JobEvent) {
			m.JobsLaunched.WithLabelValues(e.Name).Inc()
		},
		OnJobDone: func(_ context.Context, e *domain.JobEvent) {
			m.JobDuration.WithLabelValues(e.Name, e.Outcome).Observe(e.Duration.Seconds())
		},
	}
}
