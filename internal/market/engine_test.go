package market_test

import (
	"math"
	"testing"

	"deriv-core/internal/market"
	"deriv-core/internal/market/markettest"
)

func risingEngine(t *testing.T) *market.Engine {
	t.Helper()
	e := market.NewEngine("R_100")
	markettest.Feed(e, markettest.Staircase(100, 60, 0.3, 0.28))
	return e
}

func TestEngineAnalyzeRisingMarket(t *testing.T) {
	e := risingEngine(t)

	if n := len(e.Candles("1m")); n != 60 {
		t.Fatalf("1m candles=%d, expected 60", n)
	}
	if n := len(e.Candles("5m")); n != 12 {
		t.Fatalf("5m candles=%d, expected 12", n)
	}

	a := e.Analyze()
	if a.Mode != market.ModeStrongTrend {
		t.Fatalf("mode=%s, expected strong_trend", a.Mode)
	}
	if a.Noise {
		t.Fatalf("unexpected noise")
	}
	if a.Trend != market.TrendStrongUp || a.MTF.Trend != market.TrendStrongUp {
		t.Fatalf("trend=%s mtf=%s, expected strong_up", a.Trend, a.MTF.Trend)
	}
	if a.Volatility != market.VolNormal {
		t.Fatalf("volatility=%s, expected normal", a.Volatility)
	}
	if math.Abs(a.RSI-68.16) > 0.05 {
		t.Fatalf("rsi=%.3f, expected ~68.16", a.RSI)
	}
	if len(a.Patterns) != 0 {
		t.Fatalf("unexpected patterns %v", a.Patterns)
	}

	if got := e.Confidence(market.Buy, a); got != 80 {
		t.Fatalf("buy confidence=%d, expected 80", got)
	}
	if got := e.Confidence(market.Sell, a); got != 20 {
		t.Fatalf("sell confidence=%d, expected 20", got)
	}
}

func TestEngineConfidenceUsesMemory(t *testing.T) {
	e := risingEngine(t)
	a := e.Analyze()
	e.Memory().RecordResult(market.OutcomeWin)
	e.Memory().RecordResult(market.OutcomeWin)
	if got := e.Confidence(market.Sell, a); got != 24 {
		t.Fatalf("confidence=%d, expected 24 after two wins", got)
	}
	for i := 0; i < 4; i++ {
		e.Memory().RecordRejection()
	}
	if got := e.Confidence(market.Sell, a); got != 19 {
		t.Fatalf("confidence=%d, expected 19 with rejections", got)
	}
	e.Memory().ResetRejections()
	if e.Memory().Rejections() != 0 {
		t.Fatalf("rejections not reset")
	}
}

func TestEngineMTFConflictIsNeutral(t *testing.T) {
	e := market.NewEngine("R_100")
	e.Seed("1m", markettest.Linear(100, -0.3, 0.05, 30))
	e.Seed("1h", markettest.Linear(100, 0.3, 0.05, 30))
	mtf := e.MTF()
	if mtf.Trend != market.TrendNeutral {
		t.Fatalf("mtf=%s, expected neutral on conflict", mtf.Trend)
	}
	if mtf.Details["1m"] != market.TrendStrongDown || mtf.Details["1h"] != market.TrendStrongUp {
		t.Fatalf("unexpected details %v", mtf.Details)
	}

	e.Seed("1m", nil)
	if got := e.MTF(); got.Trend != market.TrendStrongUp || got.Score != 100 {
		t.Fatalf("mtf=%+v, expected strong_up from 1h alone", got)
	}
}

func TestEngineFallingMarketFavoursSell(t *testing.T) {
	e := market.NewEngine("R_100")
	markettest.Feed(e, markettest.Mirror(markettest.Staircase(100, 60, 0.3, 0.28), 100))
	a := e.Analyze()
	if a.MTF.Trend != market.TrendStrongDown {
		t.Fatalf("mtf=%s, expected strong_down", a.MTF.Trend)
	}
	if got := e.Confidence(market.Sell, a); got != 80 {
		t.Fatalf("sell confidence=%d, expected 80", got)
	}
}

func TestAdaptThresholds(t *testing.T) {
	e := market.NewEngine("R_100")
	base := market.Thresholds{RSIBuyMin: 45, RSIBuyMax: 75, RSISellMin: 25, RSISellMax: 55, Confidence: 60}

	got := e.AdaptThresholds(base, market.ModeStrongTrend)
	if got.RSIBuyMin != 40 || got.RSIBuyMax != 80 || got.RSISellMin != 20 || got.RSISellMax != 60 {
		t.Fatalf("strong trend bounds not widened: %+v", got)
	}
	if got.Confidence != 60 {
		t.Fatalf("confidence=%v, expected unchanged", got.Confidence)
	}

	e.Memory().RecordResult(market.OutcomeLoss)
	e.Memory().RecordResult(market.OutcomeLoss)
	if got := e.AdaptThresholds(base, market.ModeRange); got.Confidence != 70 || got.RSIBuyMin != 45 {
		t.Fatalf("unexpected thresholds after losses: %+v", got)
	}
}

func TestSmartExit(t *testing.T) {
	tests := []struct {
		name string
		side market.Side
		a    market.Analysis
		want bool
	}{
		{"chaotic closes any side", market.Buy, market.Analysis{Mode: market.ModeChaotic}, true},
		{"bearish engulfing closes buy", market.Buy, market.Analysis{Patterns: []market.Pattern{market.PatternBearishEngulfing}}, true},
		{"bearish engulfing keeps sell", market.Sell, market.Analysis{Patterns: []market.Pattern{market.PatternBearishEngulfing}}, false},
		{"bullish engulfing closes sell", market.SideOf("MULTDOWN"), market.Analysis{Patterns: []market.Pattern{market.PatternBullishEngulfing}}, true},
		{"quiet market", market.Buy, market.Analysis{Mode: market.ModeTrend}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := market.SmartExit(tt.side, tt.a); got != tt.want {
				t.Fatalf("SmartExit=%v, expected %v", got, tt.want)
			}
		})
	}
}

func TestMemoryKeepsLastFive(t *testing.T) {
	m := &market.Memory{}
	for i := 0; i < 8; i++ {
		m.RecordConfidence(i)
		m.RecordResult(market.OutcomeLoss)
	}
	m.RecordResult(market.OutcomeWin)
	if got := m.Confidences(); len(got) != 5 || got[0] != 3 {
		t.Fatalf("confidences=%v, expected last five", got)
	}
	if m.Wins() != 1 || m.Losses() != 4 {
		t.Fatalf("wins=%d losses=%d, expected 1/4", m.Wins(), m.Losses())
	}
}
