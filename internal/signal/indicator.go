package signal

import (
	"math"

	"deriv-core/internal/indicators"
	"deriv-core/internal/market"
)

// RSIState classifies how much RSI has been moving lately.
type RSIState string

const (
	RSIFlat      RSIState = "flat"
	RSINormal    RSIState = "normal"
	RSIExpanding RSIState = "expanding"
)

const (
	minIndicatorCandles = 50
	rsiOverbought       = 70.0
	rsiOversold         = 30.0
)

// Indicators is the candle-based indicator read for one symbol.
type Indicators struct {
	Score    int                   `json:"score"`
	Bias     Bias                  `json:"bias"`
	RSI      float64               `json:"rsi"`
	RSISlope float64               `json:"rsi_slope"`
	RSIState RSIState              `json:"rsi_state"`
	MACD     indicators.MACDResult `json:"macd"`
	MATrend  Bias                  `json:"ma_trend"`
	MASlope  float64               `json:"ma_slope"`
	ADX      float64               `json:"adx"`
	Price    float64               `json:"price"`
}

// ComputeIndicators scores closed 1m candles against the live price. With
// fewer than 50 candles the score stays neutral.
func ComputeIndicators(candles []market.Candle, price float64) Indicators {
	highs, lows, closes := market.HLC(candles)
	rsi := indicators.RSISeries(closes, 14)
	out := Indicators{
		Score:    50,
		Bias:     Neutral,
		RSI:      indicators.Last(rsi),
		RSIState: rsiState(rsi),
		MATrend:  Neutral,
		Price:    price,
	}
	if len(rsi) == 0 {
		out.RSI = 50
	}
	if len(rsi) >= 2 {
		out.RSISlope = rsi[len(rsi)-1] - rsi[len(rsi)-2]
	}
	if len(candles) < minIndicatorCandles {
		return out
	}

	out.MACD = indicators.MACD(closes, 12, 26, 9)
	out.ADX = indicators.ADX(highs, lows, closes, 14)
	ema20 := indicators.EMASeries(closes, 20)
	fast, slow := indicators.Last(ema20), indicators.EMA(closes, 50)
	if prev := ema20[len(ema20)-2]; prev != 0 {
		out.MASlope = (fast - prev) / prev
	}
	switch {
	case price > fast && fast > slow:
		out.MATrend = Bullish
	case price < fast && fast < slow:
		out.MATrend = Bearish
	}

	score := 50
	switch {
	case out.RSI > rsiOverbought:
		score -= 10
	case out.RSI < rsiOversold:
		score += 10
	}
	if out.MACD.Histogram > 0 {
		score += 10
		if out.MACD.MACD > out.MACD.Signal {
			score += 5
		}
	} else {
		score -= 10
		if out.MACD.Histogram < 0 && out.MACD.MACD < out.MACD.Signal {
			score -= 5
		}
	}
	switch out.MATrend {
	case Bullish:
		score += 15
	case Bearish:
		score -= 15
	}
	out.Score = min(100, max(0, score))
	switch {
	case out.Score > 55:
		out.Bias = Bullish
	case out.Score < 45:
		out.Bias = Bearish
	}
	return out
}

// rsiState averages the absolute RSI change over the last five steps.
func rsiState(rsi []float64) RSIState {
	if len(rsi) < 6 {
		return RSINormal
	}
	var sum float64
	for i := len(rsi) - 5; i < len(rsi); i++ {
		sum += math.Abs(rsi[i] - rsi[i-1])
	}
	switch avg := sum / 5; {
	case avg < 0.5:
		return RSIFlat
	case avg > 3:
		return RSIExpanding
	}
	return RSINormal
}
