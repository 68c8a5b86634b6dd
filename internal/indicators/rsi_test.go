package indicators

import (
	"math"
	"testing"
)

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestRSIMonotonicSeries(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "rising", values: ramp(100, 0.5, 60), want: 100},
		{name: "falling", values: ramp(100, -0.5, 60), want: 0},
		{name: "flat", values: ramp(100, 0, 60), want: 50},
		{name: "too short", values: ramp(100, 1, 10), want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RSI(tt.values, 14); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("RSI = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRSIMixedInRange(t *testing.T) {
	values := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00}
	got := RSI(values, 14)
	if got <= 0 || got >= 100 {
		t.Fatalf("RSI out of range: %v", got)
	}
	// first Wilder value of the classic example is ~70.5
	if first := RSISeries(values, 14)[14]; math.Abs(first-70.46) > 0.1 {
		t.Fatalf("seed RSI = %v, want ~70.46", first)
	}
}

func TestEMASeededAtFirstValue(t *testing.T) {
	s := EMASeries([]float64{10, 20}, 3)
	if s[0] != 10 || s[1] != 15 {
		t.Fatalf("unexpected EMA %v", s)
	}
}

func TestATRWilder(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 100
		highs[i] = 101
		lows[i] = 99
	}
	atr := ATRSeries(highs, lows, closes, 14)
	if atr[13] != 0 {
		t.Fatalf("warm-up should be zero, got %v", atr[13])
	}
	if atr[14] != 2 || atr[19] != 2 {
		t.Fatalf("constant range ATR should be 2, got %v %v", atr[14], atr[19])
	}
	if len(Valid(atr)) != 6 {
		t.Fatalf("expected 6 valid values, got %d", len(Valid(atr)))
	}
}

func TestADXTrendVsFlat(t *testing.T) {
	n := 60
	up := ramp(100, 1, n)
	hi := make([]float64, n)
	lo := make([]float64, n)
	for i, c := range up {
		hi[i] = c + 0.5
		lo[i] = c - 0.5
	}
	if adx := ADX(hi, lo, up, 14); adx < 90 {
		t.Fatalf("steady trend ADX = %v, want high", adx)
	}

	if adx := ADX(hi[:20], lo[:20], up[:20], 14); adx != 0 {
		t.Fatalf("short input should give 0, got %v", adx)
	}
}

func TestMACDSign(t *testing.T) {
	if m := MACD(ramp(100, 1, 60), 12, 26, 9); m.MACD <= 0 || m.Histogram < 0 {
		t.Fatalf("rising series MACD = %+v", m)
	}
	if m := MACD(ramp(100, -1, 60), 12, 26, 9); m.MACD >= 0 {
		t.Fatalf("falling series MACD = %+v", m)
	}
	if m := MACD(ramp(100, 1, 10), 12, 26, 9); m != (MACDResult{}) {
		t.Fatalf("short series should be zero, got %+v", m)
	}
}
