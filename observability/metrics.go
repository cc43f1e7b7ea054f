// Package observability exposes the relay's prometheus collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chat_relay"

type Metrics struct {
	Connections       prometheus.Gauge
	OnlineIdentities  prometheus.Gauge
	ActiveCalls       prometheus.Gauge
	RoomWorkers       prometheus.Gauge
	ProcessRSS        prometheus.Gauge
	ProcessCPU        prometheus.Gauge
	InboundEvents     *prometheus.CounterVec
	OutboundEvents    *prometheus.CounterVec
	DroppedDeliveries prometheus.Counter
	DroppedCommands   *prometheus.CounterVec
	PersistenceErrors prometheus.Counter
	WorkerRestarts    *prometheus.CounterVec
}

// NewMetrics registers every collector on reg. Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections",
			Help: "Live WebSocket connections.",
		}),
		OnlineIdentities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "online_identities",
			Help: "Identities with at least one live connection.",
		}),
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_calls",
			Help: "Call sessions that are invited or active.",
		}),
		RoomWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "room_workers",
			Help: "Per-conversation workers currently running.",
		}),
		ProcessRSS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_rss_bytes",
			Help: "Resident memory of the relay process.",
		}),
		ProcessCPU: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_cpu_percent",
			Help: "CPU usage of the relay process.",
		}),
		InboundEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "inbound_events_total",
			Help: "Events received from clients.",
		}, []string{"event"}),
		OutboundEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbound_events_total",
			Help: "Events delivered to connections.",
		}, []string{"event"}),
		DroppedDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "dropped_deliveries_total",
			Help: "Deliveries dropped because a connection could not keep up.",
		}),
		DroppedCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dropped_commands_total",
			Help: "Client commands dropped silently, by reason.",
		}, []string{"reason"}),
		PersistenceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "persistence_errors_total",
			Help: "Writes that failed and suppressed their broadcast.",
		}),
		WorkerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "worker_restarts_total",
			Help: "Workers restarted by the supervisor after a panic.",
		}, []string{"worker"}),
	}
}

// NewNopMetrics registers on a private registry, for tools and tests that do not scrape.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
