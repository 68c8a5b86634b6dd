package market

import (
	"math"
	"slices"

	"deriv-core/internal/indicators"
)

type Trend string

const (
	TrendStrongUp   Trend = "strong_up"
	TrendUp         Trend = "up"
	TrendNeutral    Trend = "neutral"
	TrendDown       Trend = "down"
	TrendStrongDown Trend = "strong_down"
)

// Score maps a trend onto the MTF scale.
func (t Trend) Score() float64 {
	switch t {
	case TrendStrongUp:
		return 100
	case TrendUp:
		return 50
	case TrendDown:
		return -50
	case TrendStrongDown:
		return -100
	}
	return 0
}

type Volatility string

const (
	VolLow     Volatility = "low"
	VolNormal  Volatility = "normal"
	VolHigh    Volatility = "high"
	VolExtreme Volatility = "extreme"
)

type Mode string

const (
	ModeStrongTrend Mode = "strong_trend"
	ModeTrend       Mode = "trend"
	ModeRange       Mode = "range"
	ModeCompression Mode = "compression"
	ModeChaotic     Mode = "chaotic"
)

type Pattern string

const (
	PatternBullishEngulfing Pattern = "bullish_engulfing"
	PatternBearishEngulfing Pattern = "bearish_engulfing"
	PatternCompression      Pattern = "compression"
	PatternDivergence       Pattern = "divergence"
)

const (
	minTrendCandles = 20
	minModeCandles  = 50
	atrPeriod       = 14
	rsiPeriod       = 14
)

// TrendOf classifies EMA20/EMA50 alignment. Fewer than 20 candles is neutral.
func TrendOf(candles []Candle, threshold float64) Trend {
	if len(candles) < minTrendCandles {
		return TrendNeutral
	}
	closes := Closes(candles)
	ema20 := indicators.EMASeries(closes, 20)
	ema50 := indicators.EMASeries(closes, 50)
	fast, slow := ema20[len(ema20)-1], ema50[len(ema50)-1]
	slope := fast - ema20[len(ema20)-2]
	sep := math.Abs(fast - slow)

	switch {
	case fast > slow:
		if slope > 0 && sep > slow*threshold {
			return TrendStrongUp
		}
		return TrendUp
	case fast < slow:
		if slope < 0 && sep > slow*threshold {
			return TrendStrongDown
		}
		return TrendDown
	}
	return TrendNeutral
}

// VolatilityOf compares the latest ATR with the mean of the last 20 ATR values.
func VolatilityOf(candles []Candle) Volatility {
	if len(candles) < minTrendCandles {
		return VolNormal
	}
	highs, lows, closes := HLC(candles)
	return volatilityFrom(indicators.ATRSeries(highs, lows, closes, atrPeriod))
}

func volatilityFrom(atr []float64) Volatility {
	valid := indicators.Valid(atr)
	if len(valid) == 0 {
		return VolNormal
	}
	current := valid[len(valid)-1]
	avg := indicators.Mean(tail(valid, 20))
	switch {
	case current > avg*2.5:
		return VolExtreme
	case current > avg*1.5:
		return VolHigh
	case current < avg*0.7:
		return VolLow
	}
	return VolNormal
}

// DetectNoise flags wick-dominated candles, ATR spikes and EMA20 whipsaws.
func DetectNoise(candles []Candle, p Profile) bool {
	if len(candles) < minTrendCandles {
		return false
	}
	last := candles[len(candles)-1]
	body := last.Body()
	if body == 0 {
		body = 0.00001
	}
	if (last.UpperWick()+last.LowerWick())/body > 3.0 {
		return true
	}

	highs, lows, closes := HLC(candles)
	valid := indicators.Valid(indicators.ATRSeries(highs, lows, closes, atrPeriod))
	if len(valid) > 0 {
		if valid[len(valid)-1] > indicators.Mean(tail(valid, 20))*p.NoiseThreshold()*p.ATRMultiplier {
			return true
		}
	}

	ema20 := indicators.EMASeries(closes, 20)
	crosses := 0
	n := len(closes)
	for i := 1; i <= 5 && n-i-1 >= 0; i++ {
		now := closes[n-i] > ema20[n-i]
		prev := closes[n-i-1] > ema20[n-i-1]
		if now != prev {
			crosses++
		}
	}
	return crosses >= 3
}

// DetectMarketMode classifies the regime. Fewer than 50 candles is a range.
func DetectMarketMode(candles []Candle, p Profile) Mode {
	if len(candles) < minModeCandles {
		return ModeRange
	}
	highs, lows, closes := HLC(candles)
	atr := indicators.ATRSeries(highs, lows, closes, atrPeriod)
	current := atr[len(atr)-1]
	avg := indicators.Mean(tail(atr, 20))

	if current > avg*2.0 && DetectNoise(candles, p) {
		return ModeChaotic
	}
	if current < avg*0.6 {
		return ModeCompression
	}

	ema20 := indicators.EMASeries(closes, 20)
	ema50 := indicators.EMASeries(closes, 50)
	n := len(closes)
	meanPrice := indicators.Mean(closes)
	if math.Abs(ema20[n-1]-ema50[n-1]) > meanPrice*p.TrendThreshold {
		if math.Abs(ema20[n-1]-ema20[n-5]) > meanPrice*0.001 {
			return ModeStrongTrend
		}
		return ModeTrend
	}
	return ModeRange
}

// DetectPatterns looks for engulfing bars, range compression and RSI divergence.
func DetectPatterns(candles []Candle) []Pattern {
	if len(candles) < minTrendCandles {
		return nil
	}
	var out []Pattern
	cur := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	switch {
	case prev.Bearish() && cur.Bullish():
		if cur.Close > prev.Open && cur.Open < prev.Close {
			out = append(out, PatternBullishEngulfing)
		}
	case prev.Bullish() && cur.Bearish():
		if cur.Close < prev.Open && cur.Open > prev.Close {
			out = append(out, PatternBearishEngulfing)
		}
	}

	highs, lows, closes := HLC(candles)
	tr := indicators.TrueRange(highs, lows, closes)
	recent := indicators.Mean(tail(tr, 5))
	avg := indicators.Mean(tail(indicators.Valid(indicators.ATRSeries(highs, lows, closes, atrPeriod)), 20))
	if avg > 0 && recent < avg*0.7 {
		out = append(out, PatternCompression)
	}

	rsi := indicators.RSISeries(closes, rsiPeriod)
	n := len(closes)
	priceSlope := closes[n-1] - closes[n-5]
	rsiSlope := rsi[n-1] - rsi[n-5]
	if (priceSlope > 0 && rsiSlope < 0) || (priceSlope < 0 && rsiSlope > 0) {
		out = append(out, PatternDivergence)
	}
	return out
}

// MTF is the weighted multi-timeframe trend.
type MTF struct {
	Trend   Trend            `json:"trend"`
	Score   float64          `json:"weighted_score"`
	Details map[string]Trend `json:"details"`
}

// Analysis is a snapshot of the 1m view plus the MTF trend.
type Analysis struct {
	Symbol     string     `json:"symbol"`
	Price      float64    `json:"price"`
	Candles    int        `json:"candles"`
	Mode       Mode       `json:"mode"`
	Noise      bool       `json:"noise"`
	Patterns   []Pattern  `json:"patterns"`
	Trend      Trend      `json:"trend"`
	MTF        MTF        `json:"mtf"`
	Volatility Volatility `json:"volatility"`
	RSI        float64    `json:"rsi"`
	ATR        float64    `json:"atr"`
	EMA20      float64    `json:"ema20"`
	EMA50      float64    `json:"ema50"`
}

// HasPattern reports whether p was detected.
func (a Analysis) HasPattern(p Pattern) bool {
	return slices.Contains(a.Patterns, p)
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
