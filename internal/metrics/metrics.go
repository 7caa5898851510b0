package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the timeline engines
type Metrics struct {
	// Command execution metrics
	CommandExecutions *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	CommandErrors     *prometheus.CounterVec

	// Editor mutation metrics
	Mutations  *prometheus.CounterVec
	Rejections *prometheus.CounterVec

	// Propagation metrics
	PropagationPasses *prometheus.CounterVec
	EdgesVisited      prometheus.Histogram
	TasksMoved        prometheus.Histogram
	SettleRounds      prometheus.Histogram
	BlockedShifts     prometheus.Counter

	// Rollup metrics
	RollupChanges prometheus.Counter

	// Persistence metrics
	Snapshots *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Command metrics
		CommandExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeline_command_executions_total",
				Help: "Total number of command executions",
			},
			[]string{"command", "success"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "timeline_command_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		CommandErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeline_command_errors_total",
				Help: "Total number of command errors",
			},
			[]string{"command", "error_code"},
		),

		// Editor metrics
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeline_mutations_total",
				Help: "Total number of editor mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		Rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeline_rejections_total",
				Help: "Total number of rejected mutations by reason code",
			},
			[]string{"operation", "error_code"},
		),

		// Propagation metrics
		PropagationPasses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeline_propagation_passes_total",
				Help: "Total number of propagation passes",
			},
			[]string{"success"},
		),
		EdgesVisited: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "timeline_propagation_edges_visited",
				Help:    "Dependency edges evaluated per propagation pass",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
			},
		),
		TasksMoved: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "timeline_propagation_tasks_moved",
				Help:    "Tasks moved per propagation pass",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
			},
		),
		SettleRounds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "timeline_settle_rounds",
				Help:    "Propagation rounds needed for an edit to settle",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 16},
			},
		),
		BlockedShifts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "timeline_blocked_summary_shifts_total",
				Help: "Total number of summary shifts blocked by descendant constraints",
			},
		),

		// Rollup metrics
		RollupChanges: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "timeline_rollup_changes_total",
				Help: "Total number of summary aggregates changed by rollup",
			},
		),

		// Persistence metrics
		Snapshots: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeline_snapshots_total",
				Help: "Total number of snapshots written by target and outcome",
			},
			[]string{"target", "outcome"},
		),

		// Error metrics
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeline_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// RecordCommand records a command execution
func (m *Metrics) RecordCommand(command string, success bool, duration float64) {
	m.CommandExecutions.WithLabelValues(command, boolLabel(success)).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(duration)
}

// RecordCommandError records a command error
func (m *Metrics) RecordCommandError(command, errorCode string) {
	m.CommandErrors.WithLabelValues(command, errorCode).Inc()
}

// RecordMutation records an editor mutation. An empty error code means the
// mutation was committed.
func (m *Metrics) RecordMutation(operation, errorCode string) {
	if errorCode == "" {
		m.Mutations.WithLabelValues(operation, "committed").Inc()
		return
	}
	m.Mutations.WithLabelValues(operation, "rejected").Inc()
	m.Rejections.WithLabelValues(operation, errorCode).Inc()
}

// RecordPass records one propagation pass
func (m *Metrics) RecordPass(success bool, edges, moved, blocked int) {
	m.PropagationPasses.WithLabelValues(boolLabel(success)).Inc()
	if !success {
		return
	}
	m.EdgesVisited.Observe(float64(edges))
	m.TasksMoved.Observe(float64(moved))
	m.BlockedShifts.Add(float64(blocked))
}

// RecordSettle records how many propagation rounds an edit needed
func (m *Metrics) RecordSettle(rounds int) {
	m.SettleRounds.Observe(float64(rounds))
}

// RecordRollup records summaries changed by rollup
func (m *Metrics) RecordRollup(changed int) {
	m.RollupChanges.Add(float64(changed))
}

// RecordSnapshot records a snapshot write to target ("history" or "store")
func (m *Metrics) RecordSnapshot(target, outcome string) {
	m.Snapshots.WithLabelValues(target, outcome).Inc()
}

// RecordError records an error by code
func (m *Metrics) RecordError(errorCode, component string) {
	m.Errors.WithLabelValues(errorCode, component).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
