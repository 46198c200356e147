package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "guildbot"

// Metrics records conversation, turn and action observations on its own
// registry.
type Metrics struct {
	registry *prometheus.Registry

	conversations        *prometheus.CounterVec
	conversationDuration *prometheus.HistogramVec
	turns                prometheus.Counter
	actions              *prometheus.CounterVec
	actionDuration       *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		conversations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_total",
			Help:      "Finished conversations by termination reason.",
		}, []string{"reason"}),
		conversationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_duration_seconds",
			Help:      "Wall time of one conversation.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"reason"}),
		turns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_turns_total",
			Help:      "Model round trips.",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Executed actions by name and outcome.",
		}, []string{"action", "success"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Executor latency including parameter resolution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}

	m.registry.MustRegister(
		m.conversations,
		m.conversationDuration,
		m.turns,
		m.actions,
		m.actionDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveTurn() {
	m.turns.Inc()
}

func (m *Metrics) ObserveAction(name string, success bool, elapsed time.Duration) {
	outcome := "false"
	if success {
		outcome = "true"
	}
	m.actions.WithLabelValues(name, outcome).Inc()
	m.actionDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveConversation(reason string, elapsed time.Duration) {
	m.conversations.WithLabelValues(reason).Inc()
	m.conversationDuration.WithLabelValues(reason).Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
