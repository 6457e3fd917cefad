// Package metrics collects and exposes Prometheus metrics for the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface the transport and synchronization layers
// report into.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	RecordPatch()
	RecordBroadcast(delivered, dropped int)
	RecordAuthFailure()
}

// Collector implements Recorder on top of Prometheus primitives.
type Collector struct {
	activeConnections prometheus.Gauge
	patches           prometheus.Counter
	broadcastsSent    prometheus.Counter
	broadcastsDropped prometheus.Counter
	authFailures      prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multitext_active_connections",
			Help: "Number of currently open client connections.",
		}),
		patches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multitext_patches_total",
			Help: "Total number of patches accepted into a file history.",
		}),
		broadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multitext_broadcast_sends_total",
			Help: "Total number of patch deliveries to subscribed sessions.",
		}),
		broadcastsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multitext_broadcast_drops_total",
			Help: "Total number of patch deliveries dropped on slow sessions.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multitext_auth_failures_total",
			Help: "Total number of rejected authentication or authorization attempts.",
		}),
	}

	reg.MustRegister(
		c.activeConnections,
		c.patches,
		c.broadcastsSent,
		c.broadcastsDropped,
		c.authFailures,
	)

	return c
}

func (c *Collector) ConnectionOpened() { c.activeConnections.Inc() }
func (c *Collector) ConnectionClosed() { c.activeConnections.Dec() }
func (c *Collector) RecordPatch()      { c.patches.Inc() }

func (c *Collector) RecordBroadcast(delivered, dropped int) {
	c.broadcastsSent.Add(float64(delivered))
	c.broadcastsDropped.Add(float64(dropped))
}

func (c *Collector) RecordAuthFailure() { c.authFailures.Inc() }

// Handler returns the HTTP handler serving the registry in the Prometheus
// exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Nop is a Recorder that discards everything, for tests.
type Nop struct{}

func (Nop) ConnectionOpened()        {}
func (Nop) ConnectionClosed()        {}
func (Nop) RecordPatch()             {}
func (Nop) RecordBroadcast(int, int) {}
func (Nop) RecordAuthFailure()       {}
