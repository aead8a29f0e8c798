// Package metrics exposes the engine-level Prometheus metrics referenced by
// spec.md's ambient observability concerns: mutation queue depth, sync lag
// per stream, and socket session state. Grounded on the registry shape of
// the pack's own metrics packages (a constructed *prometheus.Registry
// rather than the default global one, so tests can build a throwaway
// Registry per case without cross-test interference).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every engine-level metric and the *prometheus.Registry
// they are registered against.
type Registry struct {
	reg *prometheus.Registry

	MutationQueueDepth    prometheus.Gauge
	MediatorSubscriptions prometheus.Gauge
	SyncLagSeconds        *prometheus.GaugeVec
	SocketState           prometheus.Gauge
}

// New builds a Registry with all engine metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		MutationQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workspace_engine_mutation_queue_depth",
			Help: "Number of mutations currently enqueued awaiting push to the server.",
		}),
		MediatorSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workspace_engine_mediator_subscriptions",
			Help: "Number of live (handler, input) subscriptions held by the mediator.",
		}),
		SyncLagSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "workspace_engine_sync_lag_seconds",
			Help: "Seconds since the synchronizer last successfully pulled a stream.",
		}, []string{"stream"}),
		SocketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workspace_engine_socket_state",
			Help: "Current socket session state (0=idle, 1=connecting, 2=open, 3=closing, 4=closed); see socksession.State.",
		}),
	}

	reg.MustRegister(r.MutationQueueDepth, r.MediatorSubscriptions, r.SyncLagSeconds, r.SocketState)

	return r
}

// Handler returns an http.Handler suitable for mounting at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
