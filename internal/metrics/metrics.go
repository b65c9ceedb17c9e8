// Package metrics exposes Prometheus counters for tool calls, the
// legacy id cache, and the move fallback path. A nil *Metrics is valid
// and records nothing, so components can be built without metrics in
// tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "todoist_mcp"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	toolItems  *prometheus.CounterVec
	moves      *prometheus.CounterVec
	idCache    *prometheus.CounterVec
	tokenCheck *prometheus.CounterVec
}

// New creates the collectors and registers them along with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_items_total",
			Help:      "Batch tool items processed, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_moves_total",
			Help:      "Task moves, by protocol used and outcome.",
		}, []string{"method", "outcome"}),
		idCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_mapping_lookups_total",
			Help:      "Legacy id lookups, by resource type and result (hit, miss, error).",
		}, []string{"resource", "result"}),
		tokenCheck: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bearer_checks_total",
			Help:      "Bearer token validations, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.toolItems,
		m.moves,
		m.idCache,
		m.tokenCheck,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ToolItem records the outcome of one batch item.
func (m *Metrics) ToolItem(tool string, ok bool) {
	if m == nil {
		return
	}

	m.toolItems.WithLabelValues(tool, outcome(ok)).Inc()
}

// Move records which protocol completed (or failed) a move.
func (m *Metrics) Move(method string, ok bool) {
	if m == nil {
		return
	}

	m.moves.WithLabelValues(method, outcome(ok)).Inc()
}

// IDLookup records n id cache results of the given kind.
func (m *Metrics) IDLookup(resource, result string, n int) {
	if m == nil || n == 0 {
		return
	}

	m.idCache.WithLabelValues(resource, result).Add(float64(n))
}

// BearerCheck records the result of a bearer token validation.
func (m *Metrics) BearerCheck(result string) {
	if m == nil {
		return
	}

	m.tokenCheck.WithLabelValues(result).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}

	return "error"
}
