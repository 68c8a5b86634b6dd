package market

import (
	"testing"
	"time"
)

func linear(base, step, wick float64, n int) []Candle {
	out := make([]Candle, n)
	price := base
	for i := range out {
		open := price
		closing := open + step
		out[i] = Candle{
			Start: t0.Add(time.Duration(i) * time.Minute),
			Open:  open,
			High:  max(open, closing) + wick,
			Low:   min(open, closing) - wick,
			Close: closing,
		}
		price = closing
	}
	return out
}

func TestTrendOf(t *testing.T) {
	tests := []struct {
		name    string
		candles []Candle
		want    Trend
	}{
		{"short history", linear(100, 0.3, 0.05, 10), TrendNeutral},
		{"rising", linear(100, 0.3, 0.05, 60), TrendStrongUp},
		{"falling", linear(100, -0.3, 0.05, 60), TrendStrongDown},
		{"flat", linear(100, 0, 0.05, 60), TrendNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrendOf(tt.candles, 0.0002); got != tt.want {
				t.Fatalf("TrendOf=%s, expected %s", got, tt.want)
			}
		})
	}
}

func TestDetectMarketMode(t *testing.T) {
	p := ProfileFor("R_100")
	if got := DetectMarketMode(linear(100, 0.3, 0.05, 40), p); got != ModeRange {
		t.Fatalf("short history mode=%s, expected range", got)
	}
	if got := DetectMarketMode(linear(100, 0.3, 0.05, 60), p); got != ModeStrongTrend {
		t.Fatalf("rising mode=%s, expected strong_trend", got)
	}

	// A wide history followed by ten tight bars collapses ATR.
	candles := linear(100, 0.3, 0.5, 50)
	candles = append(candles, linear(candles[len(candles)-1].Close, 0.01, 0.001, 10)...)
	if got := DetectMarketMode(candles, p); got != ModeCompression {
		t.Fatalf("tight bars mode=%s, expected compression", got)
	}
}

func TestDetectNoise(t *testing.T) {
	p := ProfileFor("frxEURUSD")
	clean := linear(100, 0.3, 0.05, 30)
	if DetectNoise(clean, p) {
		t.Fatalf("steady trend flagged as noise")
	}
	wicky := append(linear(100, 0.3, 0.05, 29), Candle{Open: 108.7, Close: 108.71, High: 110, Low: 107})
	if !DetectNoise(wicky, p) {
		t.Fatalf("wick-dominated candle not flagged")
	}
	if DetectNoise(wicky[:10], p) {
		t.Fatalf("short history must not be noisy")
	}
}

func TestDetectPatternsEngulfing(t *testing.T) {
	base := linear(100, 0, 0.05, 18)
	bull := append(append([]Candle{}, base...),
		Candle{Open: 101, Close: 100, High: 101.05, Low: 99.95},
		Candle{Open: 99.9, Close: 101.2, High: 101.25, Low: 99.85},
	)
	if !hasPattern(DetectPatterns(bull), PatternBullishEngulfing) {
		t.Fatalf("bullish engulfing not detected: %v", DetectPatterns(bull))
	}
	bear := append(append([]Candle{}, base...),
		Candle{Open: 100, Close: 101, High: 101.05, Low: 99.95},
		Candle{Open: 101.1, Close: 99.8, High: 101.15, Low: 99.75},
	)
	got := DetectPatterns(bear)
	if !hasPattern(got, PatternBearishEngulfing) || hasPattern(got, PatternBullishEngulfing) {
		t.Fatalf("bearish engulfing not detected: %v", got)
	}
	if DetectPatterns(base[:5]) != nil {
		t.Fatalf("short history should yield no patterns")
	}
}

func TestVolatilityOf(t *testing.T) {
	candles := linear(100, 0.3, 0.05, 40)
	if got := VolatilityOf(candles); got != VolNormal {
		t.Fatalf("steady range=%s, expected normal", got)
	}
	spike := append(candles, Candle{Open: 112, Close: 125, High: 126, Low: 111})
	if got := VolatilityOf(spike); got != VolExtreme && got != VolHigh {
		t.Fatalf("range blowout=%s, expected high or extreme", got)
	}
}

func hasPattern(ps []Pattern, p Pattern) bool {
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}
