package monitor

import (
	"context"

	"github.com/rs/zerolog"

	"deriv-core/internal/events"
	"deriv-core/pkg/deriv"
)

// Monitor turns telemetry events into metrics and raises error
// notifications to the log.
type Monitor struct {
	Bus     *events.Bus
	Metrics *Metrics
	Log     zerolog.Logger
}

var watched = []events.Event{
	events.EventTick,
	events.EventSignalSkipped,
	events.EventTradeExecution,
	events.EventConnectorState,
	events.EventNotification,
}

// Start subscribes to the bus and records until ctx ends. The returned
// channel closes once the subscription is drained.
func (m *Monitor) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if m.Bus == nil || m.Metrics == nil {
		m.Log.Warn().Msg("monitor not fully configured; skipping")
		close(done)
		return done
	}
	stream, unsub := m.Bus.Subscribe(1024, watched...)
	go func() {
		defer close(done)
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				m.record(msg)
			}
		}
	}()
	return done
}

func (m *Monitor) record(msg events.Message) {
	switch p := msg.Data.(type) {
	case events.Tick:
		m.Metrics.Ticks.WithLabelValues(p.Symbol).Inc()
	case events.SignalSkipped:
		m.Metrics.SignalsSkipped.WithLabelValues(p.Symbol, p.Stage).Inc()
	case events.TradeExecution:
		m.Metrics.Orders.WithLabelValues(p.Symbol, p.Side, p.Result).Inc()
	case events.ConnectorState:
		m.Metrics.ConnectorState.Set(float64(stateValue(p.State)))
		if p.State == deriv.StateReconnecting.String() {
			m.Metrics.Reconnects.Inc()
		}
	case events.Notification:
		if p.Level == "error" {
			m.Log.Error().Str("title", p.Title).Msg(p.Message)
		}
	}
}

func stateValue(name string) deriv.State {
	for s := deriv.StateDisconnected; s <= deriv.StateReconnecting; s++ {
		if s.String() == name {
			return s
		}
	}
	return deriv.StateDisconnected
}
