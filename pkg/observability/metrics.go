package observability

import (
	"context"

	"github.com/aretw0/hitch/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records engine activity in a Prometheus registry.
type Metrics struct {
	registry     *prometheus.Registry
	runs         *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	checkpoints  *prometheus.CounterVec
	interrupts   prometheus.Counter
	active       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hitch_runs_total",
				Help: "Total number of finished invocations by outcome",
			},
			[]string{"status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hitch_task_duration_seconds",
				Help:    "Duration of task executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task", "outcome"},
		),
		checkpoints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hitch_checkpoints_total",
				Help: "Total number of committed checkpoints",
			},
			[]string{"kind"},
		),
		interrupts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitch_interrupts_total",
			Help: "Total number of runs suspended for human input",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hitch_active_runs",
			Help: "Number of invocations in progress",
		}),
	}
	m.registry.MustRegister(m.runs, m.taskDuration, m.checkpoints, m.interrupts, m.active)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile dumps the metrics in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			m.active.Inc()
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			m.active.Dec()
			status := string(e.Status)
			if e.Err != nil {
				status = "failed"
			}
			m.runs.WithLabelValues(status).Inc()
		},
		OnTaskReturn: func(ctx context.Context, e *domain.TaskEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.taskDuration.WithLabelValues(e.Task, outcome).Observe(e.Duration.Seconds())
		},
		OnCheckpoint: func(ctx context.Context, cp *domain.Checkpoint) {
			m.checkpoints.WithLabelValues(string(cp.Kind)).Inc()
		},
		OnInterrupt: func(ctx context.Context, i *domain.Interrupt) {
			m.interrupts.Inc()
		},
	}
}
