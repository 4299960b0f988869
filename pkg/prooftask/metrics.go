// Copyright 2025 Strata Contributors

package prooftask

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks the scheduler's created-task total, per-host in-flight
// count, and completion/failure totals, giving the proof dispatch loop its own
// operational visibility.
type Metrics struct {
	tasksCreated   prometheus.Counter
	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	inFlight       *prometheus.GaugeVec
}

func newMetrics() *Metrics {
	return &Metrics{
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strata",
			Subsystem: "prooftask",
			Name:      "tasks_created_total",
			Help:      "Proof tasks created by Submit, including dependency expansion.",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strata",
			Subsystem: "prooftask",
			Name:      "tasks_completed_total",
			Help:      "Proof tasks that reached the Completed status.",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strata",
			Subsystem: "prooftask",
			Name:      "tasks_failed_total",
			Help:      "Proof tasks that reached the terminal Failed status.",
		}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "strata",
			Subsystem: "prooftask",
			Name:      "in_flight",
			Help:      "Proof tasks currently InProgress, labeled by host.",
		}, []string{"host"}),
	}
}

// Register registers every metric this package owns against reg, so they
// appear in a process-wide /metrics scrape alongside the rest of the node.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.tasksCreated, m.tasksCompleted, m.tasksFailed, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Metrics exposes m's Metrics so an embedding process can register them
// against its own prometheus.Registerer.
func (m *Manager) Metrics() *Metrics { return m.metrics }
