package strategy

import (
	"math"
	"strings"
	"testing"

	"deriv-core/internal/market"
	"deriv-core/internal/market/markettest"
	"deriv-core/internal/signal"
	"deriv-core/pkg/config"
)

type harness struct {
	engine *market.Engine
	input  Input
}

func replay(t *testing.T, symbol string, ticks []markettest.Tick, settings config.Settings) harness {
	t.Helper()
	e := market.NewEngine(symbol)
	ms := signal.NewMarketStructure()
	var st signal.Structure
	for _, tk := range ticks {
		e.Update(tk.Price, tk.Time)
		st = ms.Update(tk.Price)
	}
	last := ticks[len(ticks)-1]
	return harness{engine: e, input: Input{
		Symbol:     symbol,
		Price:      last.Price,
		Time:       last.Time,
		Engine:     e,
		Analysis:   e.Analyze(),
		Structure:  st,
		Indicators: signal.ComputeIndicators(e.Candles("1m"), last.Price),
		Settings:   settings,
	}}
}

func rising() []markettest.Tick {
	return markettest.Staircase(100, 60, 0.3, 0.28)
}

func falling() []markettest.Tick {
	return markettest.Mirror(rising(), 100)
}

func TestTrendBuysRisingMarket(t *testing.T) {
	h := replay(t, "R_100", rising(), config.DefaultSettings())
	sig := Trend{}.Analyze(h.input)
	if sig.Skipped() {
		t.Fatalf("expected a BUY, skipped at %s: %s", sig.Stage, sig.Reason)
	}
	if sig.Action != market.Buy || sig.Confidence != 80 {
		t.Fatalf("action=%s confidence=%v, expected BUY 80", sig.Action, sig.Confidence)
	}
	if math.Abs(sig.SLDistance-1.5*h.input.Analysis.ATR) > 1e-9 {
		t.Fatalf("sl=%v, expected 1.5 x ATR (%v)", sig.SLDistance, h.input.Analysis.ATR)
	}
	if math.Abs(sig.TPDistance-sig.SLDistance*1.4) > 1e-9 {
		t.Fatalf("tp=%v, expected sl x 1.4", sig.TPDistance)
	}
	if sig.Confluence != 4 {
		t.Fatalf("confluence=%d, expected 4", sig.Confluence)
	}
	if got := h.engine.Memory().Confidences(); len(got) != 1 || got[0] != 80 {
		t.Fatalf("memory confidences=%v", got)
	}
}

func TestTrendSellsFallingMarket(t *testing.T) {
	h := replay(t, "R_100", falling(), config.DefaultSettings())
	sig := Trend{}.Analyze(h.input)
	if sig.Action != market.Sell || sig.Confidence != 80 {
		t.Fatalf("got %+v, expected SELL 80", sig)
	}
}

func TestTrendSkips(t *testing.T) {
	tests := []struct {
		name      string
		ticks     []markettest.Tick
		mutate    func(*config.Settings)
		wantStage string
	}{
		{"warmup", markettest.Staircase(100, 30, 0.3, 0.28), nil, StageWarmup},
		{"atr above bound", rising(), func(s *config.Settings) { s.MaxATRPct = 0.001 }, StageVolatility},
		{"rsi outside band", rising(), func(s *config.Settings) { s.RSIBuyMax = 60 }, StageSetup},
		{"confidence threshold", rising(), func(s *config.Settings) { s.ConfidenceThreshold = 90 }, StageConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.DefaultSettings()
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			h := replay(t, "R_100", tt.ticks, s)
			sig := Trend{}.Analyze(h.input)
			if !sig.Skipped() || sig.Stage != tt.wantStage {
				t.Fatalf("stage=%q action=%q, expected skip at %q", sig.Stage, sig.Action, tt.wantStage)
			}
			if sig.Reason == "" {
				t.Fatalf("skip without reason")
			}
		})
	}
}

func TestTrendLowConfidenceCountsRejection(t *testing.T) {
	s := config.DefaultSettings()
	s.ConfidenceThreshold = 95
	h := replay(t, "R_100", rising(), s)
	Trend{}.Analyze(h.input)
	if h.engine.Memory().Rejections() != 1 {
		t.Fatalf("rejections=%d, expected 1", h.engine.Memory().Rejections())
	}
}

func TestTrendValidatorVeto(t *testing.T) {
	h := replay(t, "R_100", rising(), config.DefaultSettings())
	h.input.Structure = signal.Structure{Score: 20, Trend: signal.Bearish}
	sig := Trend{}.Analyze(h.input)
	if sig.Stage != StageValidator || !strings.Contains(sig.Reason, "contradictory") {
		t.Fatalf("stage=%s reason=%q, expected validator contradiction", sig.Stage, sig.Reason)
	}
}

func TestSpikeDirections(t *testing.T) {
	tests := []struct {
		name      string
		symbol    string
		ticks     []markettest.Tick
		want      market.Side
		wantStage string
	}{
		{"boom sells a falling drift", "BOOM300N", falling(), market.Sell, ""},
		{"boom never buys", "BOOM300N", rising(), "", StageTrend},
		{"crash buys a rising drift", "CRASH500", rising(), market.Buy, ""},
		{"crash never sells", "CRASH500", falling(), "", StageTrend},
	}
	reg := NewRegistry(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := replay(t, tt.symbol, tt.ticks, config.DefaultSettings())
			sig := reg.Strategy(tt.symbol).Analyze(h.input)
			if sig.Action != tt.want || sig.Stage != tt.wantStage {
				t.Fatalf("action=%q stage=%q reason=%q, expected %q/%q", sig.Action, sig.Stage, sig.Reason, tt.want, tt.wantStage)
			}
			if !sig.Skipped() && math.Abs(sig.TPDistance-sig.SLDistance*1.5) > 1e-9 {
				t.Fatalf("tp=%v sl=%v, expected 1.5 reward/risk", sig.TPDistance, sig.SLDistance)
			}
		})
	}
}

func TestRecentSpike(t *testing.T) {
	candles := []market.Candle{{High: 101, Low: 100}, {High: 101, Low: 100}, {High: 104, Low: 100}}
	if !recentSpike(candles, 1) {
		t.Fatalf("4-point candle with ATR 1 should count as a spike")
	}
	if recentSpike(candles[:2], 1) || recentSpike(candles, 0) {
		t.Fatalf("unexpected spike")
	}
}

func TestStopDistances(t *testing.T) {
	s := config.DefaultSettings()
	sl, tp := stopDistances(1000, 0.1, 1.4, s)
	if sl != 0.5 || math.Abs(tp-0.7) > 1e-12 {
		t.Fatalf("sl=%v tp=%v, expected the 0.05%% price floor", sl, tp)
	}
	s.StopLossPointsMax = 0.3
	s.TakeProfitPointsMin = 1
	sl, tp = stopDistances(1000, 0.1, 1.4, s)
	if sl != 0.3 || tp != 1 {
		t.Fatalf("sl=%v tp=%v, expected clamped to 0.3/1", sl, tp)
	}
}
