package signal

import (
	"math"
	"strings"
	"testing"

	"deriv-core/internal/market"
	"deriv-core/internal/market/markettest"
)

func feedStructure(ticks []markettest.Tick) []Structure {
	m := NewMarketStructure()
	out := make([]Structure, 0, len(ticks))
	for _, tk := range ticks {
		out = append(out, m.Update(tk.Price))
	}
	return out
}

func TestMarketStructureWarmup(t *testing.T) {
	m := NewMarketStructure()
	for i := 0; i < 9; i++ {
		s := m.Update(100 + float64(i))
		if s.Score != 50 || s.Trend != Neutral {
			t.Fatalf("tick %d: got %+v, expected neutral 50 during warmup", i, s)
		}
	}
}

func TestMarketStructureBreakouts(t *testing.T) {
	up := feedStructure(markettest.Staircase(100, 60, 0.3, 0.28))
	last := up[len(up)-1]
	if last.Score != 95 || last.Trend != Bullish || !last.BOSBull || !last.IBOSBull {
		t.Fatalf("rising structure=%+v, expected score 95 bullish with BOS and iBOS", last)
	}

	down := feedStructure(markettest.Mirror(markettest.Staircase(100, 60, 0.3, 0.28), 100))
	last = down[len(down)-1]
	if last.Score != 5 || last.Trend != Bearish || !last.BOSBear || !last.IBOSBear {
		t.Fatalf("falling structure=%+v, expected score 5 bearish with BOS and iBOS", last)
	}
}

func TestMarketStructureBufferBound(t *testing.T) {
	m := NewMarketStructure()
	for i := 0; i < 500; i++ {
		m.Update(100 + math.Sin(float64(i)))
	}
	if len(m.prices) != structureBuffer {
		t.Fatalf("buffer=%d, expected %d", len(m.prices), structureBuffer)
	}
	m.Reset()
	if len(m.prices) != 0 || m.trend != Neutral {
		t.Fatalf("reset did not clear state")
	}
}

func risingCandles(t *testing.T) ([]market.Candle, float64) {
	t.Helper()
	e := market.NewEngine("R_100")
	ticks := markettest.Staircase(100, 60, 0.3, 0.28)
	markettest.Feed(e, ticks)
	return e.Candles("1m"), ticks[len(ticks)-1].Price
}

func TestComputeIndicatorsRising(t *testing.T) {
	candles, price := risingCandles(t)
	ind := ComputeIndicators(candles, price)
	if ind.Score != 80 || ind.Bias != Bullish {
		t.Fatalf("score=%d bias=%s, expected 80 bullish", ind.Score, ind.Bias)
	}
	if ind.MATrend != Bullish {
		t.Fatalf("ma trend=%s, expected bullish", ind.MATrend)
	}
	if ind.ADX < 90 {
		t.Fatalf("adx=%.2f, expected a strong trend reading", ind.ADX)
	}
	if ind.MASlope < 0.0002 {
		t.Fatalf("ma slope=%.6f, expected above 0.0002", ind.MASlope)
	}
	if ind.RSISlope <= 0 || ind.RSIState != RSIExpanding {
		t.Fatalf("rsi slope=%.3f state=%s", ind.RSISlope, ind.RSIState)
	}
}

func TestComputeIndicatorsShortHistory(t *testing.T) {
	candles, price := risingCandles(t)
	ind := ComputeIndicators(candles[:30], price)
	if ind.Score != 50 || ind.Bias != Neutral || ind.ADX != 0 {
		t.Fatalf("short history=%+v, expected neutral", ind)
	}
	if ComputeIndicators(nil, 0).RSI != 50 {
		t.Fatalf("empty history should report RSI 50")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		structure int
		indicator int
		want      market.Side
		wantErr   string
	}{
		{"both bullish", 70, 60, market.Buy, ""},
		{"strong structure alone", 80, 50, market.Buy, ""},
		{"both bearish", 30, 40, market.Sell, ""},
		{"strong bearish indicator", 50, 20, market.Sell, ""},
		{"contradiction", 65, 35, "", "contradictory"},
		{"undecided", 52, 50, "", "no directional"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Validate(Structure{Score: tt.structure}, Indicators{Score: tt.indicator})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err=%v, expected %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Action != tt.want {
				t.Fatalf("action=%s, expected %s", v.Action, tt.want)
			}
			if v.Confidence < 0.1 || v.Confidence > 0.99 {
				t.Fatalf("confidence=%v out of range", v.Confidence)
			}
		})
	}
}

func TestCheckCandle(t *testing.T) {
	tests := []struct {
		name    string
		candle  market.Candle
		side    market.Side
		slope   float64
		wantErr bool
	}{
		{"clean bullish", market.Candle{Open: 100, Close: 100.3, High: 100.35, Low: 99.95}, market.Buy, 1, false},
		{"clean bearish", market.Candle{Open: 100, Close: 99.7, High: 100.05, Low: 99.65}, market.Sell, -1, false},
		{"doji", market.Candle{Open: 100, Close: 100.01, High: 100.5, Low: 99.5}, market.Buy, 1, true},
		{"marubozu", market.Candle{Open: 100, Close: 101, High: 101.01, Low: 99.99}, market.Buy, 1, true},
		{"low spread", market.Candle{Open: 100, Close: 100.18, High: 100.6, Low: 99.6}, market.Buy, 1, true},
		{"buy on bearish candle", market.Candle{Open: 100, Close: 99.7, High: 100.05, Low: 99.65}, market.Buy, 1, true},
		{"buy against rsi", market.Candle{Open: 100, Close: 100.3, High: 100.35, Low: 99.95}, market.Buy, -1, true},
		{"sell with long upper wick", market.Candle{Open: 100, Close: 99.8, High: 100.7, Low: 99.75}, market.Sell, -1, true},
		{"flat candle", market.Candle{Open: 100, Close: 100, High: 100, Low: 100}, market.Buy, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCandle(tt.candle, tt.side, tt.slope)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}
