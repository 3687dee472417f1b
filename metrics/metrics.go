// Package metrics exposes Prometheus metrics for inventory operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/inventory-engine/inventory"
)

// Collector implements inventory.Observer.
type Collector struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var _ inventory.Observer = (*Collector)(nil)

// New registers the inventory metrics plus Go and process collectors on a
// fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "operations_total",
			Help:      "Mutating operations by type and outcome.",
		}, []string{"operation", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inventory",
			Name:      "operation_duration_seconds",
			Help:      "Transaction duration of mutating operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
	}
}

// OperationCompleted counts one finished operation. Outcome is "ok" or the
// error kind.
func (c *Collector) OperationCompleted(op inventory.OperationType, kind inventory.ErrorKind, elapsed time.Duration) {
	outcome := "ok"
	if kind != inventory.KindNone {
		outcome = string(kind)
	}
	c.operations.WithLabelValues(string(op), outcome).Inc()
	c.latency.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Operations returns the counter, for tests.
func (c *Collector) Operations() *prometheus.CounterVec { return c.operations }
