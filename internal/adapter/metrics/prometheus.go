package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes store activity as Prometheus counters on its own registry.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	units      *prometheus.CounterVec
}

func NewRecorder(namespace string) *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_operations_total",
			Help:      "Inventory operations by action and outcome",
		}, []string{"action", "outcome"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_units_total",
			Help:      "Units added, purchased or moved",
		}, []string{"action"}),
	}
	registry.MustRegister(r.operations, r.units)
	return r
}

func (r *Recorder) RecordOperation(action string, outcome string) {
	r.operations.WithLabelValues(action, outcome).Inc()
}

func (r *Recorder) RecordQuantity(action string, quantity int) {
	r.units.WithLabelValues(action).Add(float64(quantity))
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
