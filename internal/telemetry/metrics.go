package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — Prometheus метрики выполнения flow.
//
// Методы безопасны для nil-получателя: компоненты, которым метрики не
// переданы, просто ничего не записывают.
type Metrics struct {
	nodesFinished *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec
	runsFinished  *prometheus.CounterVec
	toolsInFlight prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		nodesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdflow",
			Name:      "nodes_finished_total",
			Help:      "Nodes that reached a terminal status.",
		}, []string{"tool", "kind", "status"}),

		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdflow",
			Name:      "node_duration_seconds",
			Help:      "Wall time of tool nodes.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"tool", "status"}),

		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdflow",
			Name:      "runs_finished_total",
			Help:      "Jobs that finished, by status.",
		}, []string{"flow", "status"}),

		toolsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pdflow",
			Name:      "tools_in_flight",
			Help:      "Tool processes currently running.",
		}),
	}

	reg.MustRegister(m.nodesFinished, m.nodeDuration, m.runsFinished, m.toolsInFlight)
	return m
}

// NodeStarted учитывает запуск инструмента.
func (m *Metrics) NodeStarted() {
	if m == nil {
		return
	}
	m.toolsInFlight.Inc()
}

// NodeFinished учитывает финальный статус узла.
// ran — узел действительно запускал инструмент.
func (m *Metrics) NodeFinished(tool, kind, status string, ran bool, d time.Duration) {
	if m == nil {
		return
	}
	m.nodesFinished.WithLabelValues(tool, kind, status).Inc()
	if ran {
		m.toolsInFlight.Dec()
		m.nodeDuration.WithLabelValues(tool, status).Observe(d.Seconds())
	}
}

// RunFinished учитывает завершение job.
func (m *Metrics) RunFinished(flow, status string) {
	if m == nil {
		return
	}
	m.runsFinished.WithLabelValues(flow, status).Inc()
}
