package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	eventsTotal     *prometheus.CounterVec
	executionsTotal *prometheus.CounterVec
	actionsTotal    *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
}

// NewMetrics creates the engine collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "workflow",
			Name:      "events_total",
			Help:      "Domain events handed to the workflow engine.",
		}, []string{"event"}),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "workflow",
			Name:      "executions_total",
			Help:      "Workflow executions by terminal status.",
		}, []string{"event", "status"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "workflow",
			Name:      "actions_total",
			Help:      "Executed actions by type and result.",
		}, []string{"type", "result"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crm",
			Subsystem: "workflow",
			Name:      "action_duration_seconds",
			Help:      "Duration of a single action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.eventsTotal, m.executionsTotal, m.actionsTotal, m.actionDuration)
	}
	return m
}

func (m *Metrics) observeEvent(event string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) observeExecution(event string, status ExecutionStatus) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(event, string(status)).Inc()
}

func (m *Metrics) observeAction(t ActionType, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.actionsTotal.WithLabelValues(string(t), result).Inc()
	m.actionDuration.WithLabelValues(string(t)).Observe(elapsed.Seconds())
}
