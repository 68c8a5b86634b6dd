package exit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"deriv-core/internal/execution"
	"deriv-core/internal/market"
	"deriv-core/internal/position"
	"deriv-core/internal/signal"
	"deriv-core/pkg/config"
	"deriv-core/pkg/deriv"
)

var defaultParams = ParamsFrom(config.DefaultSettings())

func newBook() *position.Book {
	return position.NewBook(zerolog.Nop()).WithClock(func() time.Time {
		return time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	})
}

func open(b *position.Book, id int64, side market.Side, scalper bool) position.Position {
	p, _ := b.Open(position.Open{
		Symbol:      "R_100",
		Side:        side,
		Price:       100,
		SLDistance:  1,
		TPDistance:  2,
		ScalperExit: scalper,
		EntryState:  string(signal.RSINormal),
		Receipt:     deriv.BuyReceipt{ContractID: id, BuyPrice: 1},
	})
	return p
}

func TestEvaluate(t *testing.T) {
	b := newBook()
	buy := open(b, 1, market.Buy, false)
	sell := open(b, 2, market.Sell, false)

	tests := []struct {
		name      string
		pos       position.Position
		price     float64
		close     bool
		reason    Reason
		stop      float64
		trailing  bool
		breakeven bool
	}{
		{name: "buy untouched", pos: buy, price: 100.5},
		{name: "buy stop", pos: buy, price: 99, close: true, reason: ReasonStopLoss},
		{name: "buy target", pos: buy, price: 102, close: true, reason: ReasonTakeProfit},
		{name: "buy breakeven", pos: buy, price: 101, stop: 100, breakeven: true},
		{name: "buy trailing", pos: buy, price: 101.8, stop: 101.2, trailing: true, breakeven: true},
		{name: "sell stop", pos: sell, price: 101, close: true, reason: ReasonStopLoss},
		{name: "sell target", pos: sell, price: 98, close: true, reason: ReasonTakeProfit},
		{name: "sell breakeven", pos: sell, price: 99, stop: 100, breakeven: true},
		{name: "sell trailing", pos: sell, price: 98.2, stop: 98.8, trailing: true, breakeven: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.pos, tt.price, defaultParams)
			if d.Close != tt.close || d.Reason != tt.reason {
				t.Fatalf("Close=%v Reason=%q, expected %v %q", d.Close, d.Reason, tt.close, tt.reason)
			}
			if diff := d.NewStop - tt.stop; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("NewStop=%v, expected %v", d.NewStop, tt.stop)
			}
			if d.Trailing != tt.trailing || d.Breakeven != tt.breakeven {
				t.Fatalf("Trailing=%v Breakeven=%v, expected %v %v", d.Trailing, d.Breakeven, tt.trailing, tt.breakeven)
			}
		})
	}

	adopted := position.Position{Adopted: true, Side: market.Buy, EntryPrice: 100}
	if d := Evaluate(adopted, 50, defaultParams); d.Close || d.Moved() {
		t.Fatalf("position without stops evaluated: %+v", d)
	}
}

type fakeCloser struct {
	calls []int64
	fail  int
}

func (f *fakeCloser) Close(_ context.Context, symbol string, id int64, reason string) execution.Result {
	f.calls = append(f.calls, id)
	if f.fail > 0 {
		f.fail--
		return execution.Result{Kind: execution.KindTimeout, Symbol: symbol, Err: errors.New("timeout"), Reason: "timeout"}
	}
	return execution.Result{Kind: execution.KindOK, Symbol: symbol}
}

func TestMonitorStopOnlyTightens(t *testing.T) {
	b := newBook()
	open(b, 1, market.Buy, false)
	m := NewMonitor("R_100", b, &fakeCloser{}, defaultParams, false, zerolog.Nop())

	prices := []float64{100.4, 101, 100.6, 101.7, 101.9, 101.5, 101.75}
	last := 99.0
	for _, px := range prices {
		if exits := m.OnTick(context.Background(), px, View{}); len(exits) != 0 {
			t.Fatalf("unexpected exit at %v: %+v", px, exits)
		}
		p, _ := b.Get(1)
		if p.StopLoss < last {
			t.Fatalf("stop loosened at %v: %v < %v", px, p.StopLoss, last)
		}
		last = p.StopLoss
	}
	p, _ := b.Get(1)
	if diff := p.StopLoss - 101.3; diff > 1e-9 || diff < -1e-9 || !p.Trailing || !p.Breakeven {
		t.Fatalf("final position=%+v, expected trailing stop 101.3", p)
	}

	exits := m.OnTick(context.Background(), 101.3, View{})
	if len(exits) != 1 || exits[0].Reason != ReasonStopLoss {
		t.Fatalf("exits=%+v, expected trailing stop hit", exits)
	}
}

func TestMonitorRetriesFailedClose(t *testing.T) {
	b := newBook()
	open(b, 1, market.Buy, false)
	closer := &fakeCloser{fail: 1}
	m := NewMonitor("R_100", b, closer, defaultParams, false, zerolog.Nop())

	exits := m.OnTick(context.Background(), 102, View{})
	if len(exits) != 1 || exits[0].Result.OK() {
		t.Fatalf("first attempt=%+v", exits)
	}
	if p, _ := b.Get(1); p.Status != position.StatusOpen {
		t.Fatalf("failed close left status %q", p.Status)
	}

	exits = m.OnTick(context.Background(), 102.1, View{})
	if len(exits) != 1 || !exits[0].Result.OK() {
		t.Fatalf("retry=%+v", exits)
	}
	if p, _ := b.Get(1); p.Status != position.StatusClosing {
		t.Fatalf("status=%q, expected closing", p.Status)
	}
	if exits := m.OnTick(context.Background(), 102.2, View{}); len(exits) != 0 {
		t.Fatalf("closing position resold: %+v", exits)
	}
	if len(closer.calls) != 2 {
		t.Fatalf("close calls=%d, expected 2", len(closer.calls))
	}
}

func TestScalperOverlay(t *testing.T) {
	tests := []struct {
		name   string
		side   market.Side
		slopes []float64
		candle *market.Candle
		state  signal.RSIState
		reason Reason
	}{
		{name: "momentum flip", side: market.Buy, slopes: []float64{1, -0.8}, state: signal.RSINormal, reason: ReasonRSIFlip},
		{name: "flip below noise", side: market.Buy, slopes: []float64{1, -0.2}, state: signal.RSINormal},
		{name: "flat slope keeps direction", side: market.Buy, slopes: []float64{1, 0, 0.7}, state: signal.RSINormal},
		{
			name:   "buy reversal wick",
			side:   market.Buy,
			slopes: []float64{0.1},
			candle: &market.Candle{Open: 100, Close: 100.1, High: 100.15, Low: 99.7},
			state:  signal.RSINormal,
			reason: ReasonMicroReversal,
		},
		{
			name:   "sell reversal wick",
			side:   market.Sell,
			slopes: []float64{-0.1},
			candle: &market.Candle{Open: 100.1, Close: 100, High: 100.5, Low: 99.95},
			state:  signal.RSINormal,
			reason: ReasonMicroReversal,
		},
		{name: "volatility collapse", side: market.Sell, slopes: []float64{-0.1}, state: signal.RSIFlat, reason: ReasonVolatilityCollapse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBook()
			p := open(b, 1, tt.side, true)
			s := NewScalper()

			var (
				ok     bool
				reason Reason
			)
			for _, slope := range tt.slopes {
				ok, reason, _ = s.Check(p, signal.Indicators{RSISlope: slope, RSIState: tt.state}, tt.candle)
			}
			if tt.reason == "" && ok {
				t.Fatalf("unexpected exit %q", reason)
			}
			if tt.reason != "" && (!ok || reason != tt.reason) {
				t.Fatalf("exit=%v reason=%q, expected %q", ok, reason, tt.reason)
			}
		})
	}
}

func TestMonitorSmartExit(t *testing.T) {
	b := newBook()
	open(b, 1, market.Buy, false)
	closer := &fakeCloser{}
	m := NewMonitor("R_100", b, closer, defaultParams, true, zerolog.Nop())

	calm := &market.Analysis{Mode: market.ModeTrend}
	if exits := m.OnTick(context.Background(), 100.2, View{Analysis: calm}); len(exits) != 0 {
		t.Fatalf("exit in calm market: %+v", exits)
	}
	chaos := &market.Analysis{Mode: market.ModeChaotic}
	m.Update(defaultParams, false)
	if exits := m.OnTick(context.Background(), 100.2, View{Analysis: chaos}); len(exits) != 0 {
		t.Fatalf("smart exit fired while disabled")
	}
	m.Update(defaultParams, true)
	exits := m.OnTick(context.Background(), 100.2, View{Analysis: chaos})
	if len(exits) != 1 || exits[0].Reason != ReasonSmartExit {
		t.Fatalf("exits=%+v, expected smart exit", exits)
	}
}

func TestScalperRetainDropsSettled(t *testing.T) {
	b := newBook()
	p1 := open(b, 1, market.Buy, true)
	p2 := open(b, 2, market.Buy, true)
	s := NewScalper()
	s.Check(p1, signal.Indicators{RSISlope: 1, RSIState: signal.RSINormal}, nil)
	s.Check(p2, signal.Indicators{RSISlope: 1, RSIState: signal.RSINormal}, nil)

	s.Retain([]position.Position{p2})
	if _, ok := s.last[1]; ok {
		t.Fatal("settled contract state kept")
	}
	if _, ok := s.last[2]; !ok {
		t.Fatal("open contract state dropped")
	}
}
