package metrics

import (
	"net/http"

	"market-dashboard/src/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------------

// Collector holds every metric the stream client, gateway and feeds report.
// All methods are safe on a nil *Collector so metrics stay optional.
type Collector struct {
	Registry *prometheus.Registry

	EventsIngested    *prometheus.CounterVec
	ParseErrors       prometheus.Counter
	AcksReceived      prometheus.Counter
	MessagesSent      prometheus.Counter
	SendsDropped      prometheus.Counter
	ReconnectAttempts prometheus.Counter
	ConnectionState   prometheus.Gauge

	GatewayConnections prometheus.Gauge
	GatewayRouted      prometheus.Counter
	GatewayDropped     prometheus.Counter
	FeedEvents         *prometheus.CounterVec
}

// -----------------------------------------------------------------------------

// New creates the collectors on a private registry
func New(service string) *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "stream_events_total",
			Help:      "Market events ingested into the latest-state cache",
		}, []string{"event_type"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "stream_parse_errors_total",
			Help:      "Inbound messages discarded as unparseable",
		}),
		AcksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "stream_acks_total",
			Help:      "Subscription acknowledgements received",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "stream_messages_sent_total",
			Help:      "Control messages written to the transport",
		}),
		SendsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "stream_sends_dropped_total",
			Help:      "Control messages dropped because the transport was not connected",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "stream_reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "stream_connection_state",
			Help:      "0 disconnected, 1 connecting, 2 connected, 3 error",
		}),
		GatewayConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "gateway_connections",
			Help:      "Open data plane websocket connections",
		}),
		GatewayRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "gateway_events_routed_total",
			Help:      "Events delivered to subscribed connections",
		}),
		GatewayDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "gateway_slow_consumers_total",
			Help:      "Connections dropped for not keeping up",
		}),
		FeedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: service,
			Name:      "feed_events_total",
			Help:      "Events produced by feed adapters",
		}, []string{"source"}),
	}

	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.EventsIngested, c.ParseErrors, c.AcksReceived, c.MessagesSent, c.SendsDropped,
		c.ReconnectAttempts, c.ConnectionState,
		c.GatewayConnections, c.GatewayRouted, c.GatewayDropped, c.FeedEvents,
	)
	return c
}

// -----------------------------------------------------------------------------

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// -----------------------------------------------------------------------------
// Stream client
// -----------------------------------------------------------------------------

func (c *Collector) ObserveEvent(t models.MEventType) {
	if c != nil {
		c.EventsIngested.WithLabelValues(string(t)).Inc()
	}
}

func (c *Collector) ObserveParseError() {
	if c != nil {
		c.ParseErrors.Inc()
	}
}

func (c *Collector) ObserveAck() {
	if c != nil {
		c.AcksReceived.Inc()
	}
}

func (c *Collector) ObserveSend(delivered bool) {
	if c == nil {
		return
	}
	if delivered {
		c.MessagesSent.Inc()
	} else {
		c.SendsDropped.Inc()
	}
}

func (c *Collector) ObserveReconnect() {
	if c != nil {
		c.ReconnectAttempts.Inc()
	}
}

func (c *Collector) ObserveState(s models.MConnectionState) {
	if c != nil {
		c.ConnectionState.Set(float64(s))
	}
}

// -----------------------------------------------------------------------------
// Data plane
// -----------------------------------------------------------------------------

func (c *Collector) SetGatewayConnections(n int) {
	if c != nil {
		c.GatewayConnections.Set(float64(n))
	}
}

func (c *Collector) ObserveRouted(n int) {
	if c != nil && n > 0 {
		c.GatewayRouted.Add(float64(n))
	}
}

func (c *Collector) ObserveSlowConsumer() {
	if c != nil {
		c.GatewayDropped.Inc()
	}
}

func (c *Collector) ObserveFeedEvent(source string) {
	if c != nil {
		c.FeedEvents.WithLabelValues(source).Inc()
	}
}
