package monitor

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"deriv-core/internal/events"
)

func TestMonitorRecordsEvents(t *testing.T) {
	bus := events.NewBus()
	m := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	done := (&Monitor{Bus: bus, Metrics: m, Log: zerolog.Nop()}).Start(ctx)

	bus.Publish(events.EventTick, events.Tick{Symbol: "R_100", Price: 1})
	bus.Publish(events.EventTick, events.Tick{Symbol: "R_100", Price: 2})
	bus.Publish(events.EventSignalSkipped, events.SignalSkipped{Symbol: "R_100", Stage: "risk", Reason: "x"})
	bus.Publish(events.EventTradeExecution, events.TradeExecution{Symbol: "R_100", Side: "BUY", Result: "ok"})
	bus.Publish(events.EventConnectorState, events.ConnectorState{State: "reconnecting"})
	bus.Publish(events.EventConnectorState, events.ConnectorState{State: "live"})

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(m.ConnectorState) != 4 {
		if time.Now().After(deadline) {
			t.Fatal("connector state never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if v := testutil.ToFloat64(m.Ticks.WithLabelValues("R_100")); v != 2 {
		t.Fatalf("ticks=%v, expected 2", v)
	}
	if v := testutil.ToFloat64(m.SignalsSkipped.WithLabelValues("R_100", "risk")); v != 1 {
		t.Fatalf("skipped=%v, expected 1", v)
	}
	if v := testutil.ToFloat64(m.Orders.WithLabelValues("R_100", "BUY", "ok")); v != 1 {
		t.Fatalf("orders=%v, expected 1", v)
	}
	if v := testutil.ToFloat64(m.Reconnects); v != 1 {
		t.Fatalf("reconnects=%v, expected 1", v)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest("buy", 120*time.Millisecond, nil)
	m.SessionPnL.Set(-1.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{`deriv_request_seconds_count{msg_type="buy"} 1`, "deriv_session_pnl -1.5"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestLatencyHistogram(t *testing.T) {
	h := NewLatencyHistogram(3)
	for _, v := range []float64{100, 1, 2, 3} {
		h.Record(v)
	}
	st := h.Stats()
	if st.Count != 3 || st.Min != 1 || st.Max != 3 || st.Avg != 2 {
		t.Fatalf("stats=%+v", st)
	}
}
