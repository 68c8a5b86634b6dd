package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Ticks          *prometheus.CounterVec
	Signals        *prometheus.CounterVec
	SignalsSkipped *prometheus.CounterVec
	Orders         *prometheus.CounterVec
	Exits          *prometheus.CounterVec
	ConnectorState prometheus.Gauge
	Reconnects     prometheus.Counter
	RequestSeconds *prometheus.HistogramVec
	SessionPnL     prometheus.Gauge

	OrderLatency *LatencyHistogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "deriv_ticks_total", Help: "Ticks received per symbol"},
			[]string{"symbol"},
		),
		Signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "deriv_signals_total", Help: "Directional signals produced by strategies"},
			[]string{"symbol", "action"},
		),
		SignalsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "deriv_signals_skipped_total", Help: "Signals skipped per pipeline stage"},
			[]string{"symbol", "stage"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "deriv_orders_total", Help: "Order submissions by result"},
			[]string{"symbol", "side", "result"},
		),
		Exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "deriv_exits_total", Help: "Exit requests by reason"},
			[]string{"reason"},
		),
		ConnectorState: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "deriv_connector_state", Help: "Connector lifecycle state (4 = live)"},
		),
		Reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "deriv_reconnects_total", Help: "Connector reconnect attempts"},
		),
		RequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deriv_request_seconds",
				Help:    "Correlated request round trip time",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"msg_type"},
		),
		SessionPnL: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "deriv_session_pnl", Help: "Realized profit and loss of the session"},
		),
		OrderLatency: NewLatencyHistogram(1000),
	}
	m.registry.MustRegister(
		m.Ticks, m.Signals, m.SignalsSkipped, m.Orders, m.Exits,
		m.ConnectorState, m.Reconnects, m.RequestSeconds, m.SessionPnL,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for gathering in tests and tooling.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one correlated round trip. It matches the
// connector's OnRequest hook.
func (m *Metrics) ObserveRequest(msgType string, elapsed time.Duration, err error) {
	if msgType == "" {
		msgType = "unknown"
	}
	m.RequestSeconds.WithLabelValues(msgType).Observe(elapsed.Seconds())
}
