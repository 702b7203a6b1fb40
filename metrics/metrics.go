// Package metrics exposes Prometheus metrics for the alliance board server
// and client. Every method is safe to call on a nil *Manager.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alliance_board"

// Push results.
const (
	PushOK    = "ok"
	PushError = "error"
	PushStale = "stale"
)

// Manager owns all collectors and the registry they live in.
type Manager struct {
	registry *prometheus.Registry

	pushes          *prometheus.CounterVec
	echoSuppressed  prometheus.Counter
	remoteChanges   *prometheus.CounterVec
	localSyncMerges prometheus.Counter
	hubClients      prometheus.Gauge
	hubMessages     *prometheus.CounterVec
	proxyRequests   *prometheus.CounterVec
	statsFetches    *prometheus.CounterVec
}

// NewManager creates collectors registered on a fresh registry.
func NewManager() *Manager {
	m := &Manager{
		registry: prometheus.NewRegistry(),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pushes_total",
			Help:      "Outbound board pushes to the session store by result.",
		}, []string{"result"}),
		echoSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "echo_suppressed_total",
			Help:      "Remote snapshots that were applied without being pushed back.",
		}),
		remoteChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "remote_changes_total",
			Help:      "Row change notifications received, by outcome (applied or identical).",
		}, []string{"outcome"}),
		localSyncMerges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "local_sync_merges_total",
			Help:      "Snapshots merged from other windows.",
		}),
		hubClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "clients",
			Help:      "Websocket clients currently registered in session rooms.",
		}),
		hubMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_total",
			Help:      "Messages fanned out to session rooms by type.",
		}, []string{"type"}),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Match-video proxy requests by request type and upstream status class.",
		}, []string{"type", "status"}),
		statsFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "fetches_total",
			Help:      "Statistics provider fetches by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.pushes,
		m.echoSuppressed,
		m.remoteChanges,
		m.localSyncMerges,
		m.hubClients,
		m.hubMessages,
		m.proxyRequests,
		m.statsFetches,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) PushCompleted(result string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(result).Inc()
}

func (m *Manager) EchoSuppressed() {
	if m == nil {
		return
	}
	m.echoSuppressed.Inc()
}

// RemoteChange records a row change notification; applied is false when the
// snapshot matched local state.
func (m *Manager) RemoteChange(applied bool) {
	if m == nil {
		return
	}
	outcome := "identical"
	if applied {
		outcome = "applied"
	}
	m.remoteChanges.WithLabelValues(outcome).Inc()
}

func (m *Manager) LocalSyncMerged() {
	if m == nil {
		return
	}
	m.localSyncMerges.Inc()
}

func (m *Manager) HubClientJoined() {
	if m == nil {
		return
	}
	m.hubClients.Inc()
}

func (m *Manager) HubClientLeft() {
	if m == nil {
		return
	}
	m.hubClients.Dec()
}

func (m *Manager) HubMessage(msgType string) {
	if m == nil {
		return
	}
	m.hubMessages.WithLabelValues(msgType).Inc()
}

func (m *Manager) ProxyRequest(requestType, status string) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(requestType, status).Inc()
}

func (m *Manager) StatsFetch(result string) {
	if m == nil {
		return
	}
	m.statsFetches.WithLabelValues(result).Inc()
}
