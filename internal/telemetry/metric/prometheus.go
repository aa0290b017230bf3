// Package metric wires the server's counters into Prometheus.
package metric

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every metric the server exports, registered against
// a private prometheus.Registry so a test process can construct one
// per server instance without colliding with the global default
// registry.
type Registry struct {
	ConnectionsAccepted  prometheus.Counter
	ConnectionsClosed    *prometheus.CounterVec
	CommandsProcessed    *prometheus.CounterVec
	ProtocolCancellations prometheus.Counter
	KeysReaped           prometheus.Counter

	prom *prometheus.Registry
}

// NewRegistry creates and registers every metric.
func NewRegistry() *Registry {
	r := &Registry{prom: prometheus.NewRegistry()}

	r.ConnectionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jaldis",
		Subsystem: "server",
		Name:      "connections_accepted_total",
		Help:      "Total TCP connections accepted.",
	})

	r.ConnectionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jaldis",
		Subsystem: "server",
		Name:      "connections_closed_total",
		Help:      "Total connections closed, labeled by reason.",
	}, []string{"reason"})

	r.CommandsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jaldis",
		Subsystem: "server",
		Name:      "commands_processed_total",
		Help:      "Total commands dispatched, labeled by command name.",
	}, []string{"command"})

	r.ProtocolCancellations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jaldis",
		Subsystem: "server",
		Name:      "protocol_cancellations_total",
		Help:      "Total decoder cancellations due to malformed input.",
	})

	r.KeysReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jaldis",
		Subsystem: "keyspace",
		Name:      "keys_reaped_total",
		Help:      "Total keys removed by amortized sweep.",
	})

	r.prom.MustRegister(
		r.ConnectionsAccepted,
		r.ConnectionsClosed,
		r.CommandsProcessed,
		r.ProtocolCancellations,
		r.KeysReaped,
	)
	return r
}

// Gatherer exposes the underlying prometheus.Registry for an HTTP
// handler (promhttp.HandlerFor) to scrape.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.prom }
