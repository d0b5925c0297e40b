// Package metrics exposes Prometheus instrumentation for the paint relay:
// connection lifecycle counters, relayed event volume, and per-peer delivery
// failures.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "paintrelay"

// Drop reasons used as the "reason" label on EventsDropped.
const (
	ReasonUnregisteredSource = "unregistered_source"
	ReasonMalformed          = "malformed"
	ReasonUnknownEvent       = "unknown_event"
	ReasonRateLimited        = "rate_limited"
)

// Collector groups every metric the relay records. A nil *Collector is valid
// and records nothing, so components can be built without instrumentation.
type Collector struct {
	Connections      prometheus.Gauge
	Connects         prometheus.Counter
	Disconnects      prometheus.Counter
	EventsReceived   *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	Deliveries       prometheus.Counter
	DeliveryFailures prometheus.Counter
	FanoutDuration   prometheus.Histogram
}

// NewCollector creates the relay metrics and registers them with reg.
// Passing nil registers nothing, which is what tests usually want.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "connections",
			Help:      "Currently registered connections.",
		}),
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "connects_total",
			Help:      "Connections registered since start.",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "disconnects_total",
			Help:      "Connections unregistered since start.",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "events_received_total",
			Help:      "Events accepted for fan-out, by event name.",
		}, []string{"event"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "events_dropped_total",
			Help:      "Inbound events dropped before fan-out, by reason.",
		}, []string{"reason"}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "deliveries_total",
			Help:      "Messages handed to peer connections.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "delivery_failures_total",
			Help:      "Peer sends that failed during fan-out.",
		}),
		FanoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "fanout_duration_seconds",
			Help:      "Time spent delivering one event to all peers.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.Connections,
			c.Connects,
			c.Disconnects,
			c.EventsReceived,
			c.EventsDropped,
			c.Deliveries,
			c.DeliveryFailures,
			c.FanoutDuration,
		)
	}
	return c
}

// ConnectionOpened records a registration and the resulting registry size.
func (c *Collector) ConnectionOpened(size int) {
	if c == nil {
		return
	}
	c.Connects.Inc()
	c.Connections.Set(float64(size))
}

// ConnectionClosed records an unregistration and the resulting registry size.
func (c *Collector) ConnectionClosed(size int) {
	if c == nil {
		return
	}
	c.Disconnects.Inc()
	c.Connections.Set(float64(size))
}

// EventReceived counts an event accepted for fan-out.
func (c *Collector) EventReceived(event string) {
	if c == nil {
		return
	}
	c.EventsReceived.WithLabelValues(event).Inc()
}

// EventDropped counts an inbound event discarded for reason.
func (c *Collector) EventDropped(reason string) {
	if c == nil {
		return
	}
	c.EventsDropped.WithLabelValues(reason).Inc()
}

// Fanout records the outcome of a single fan-out.
func (c *Collector) Fanout(delivered, failed int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Deliveries.Add(float64(delivered))
	c.DeliveryFailures.Add(float64(failed))
	c.FanoutDuration.Observe(elapsed.Seconds())
}
