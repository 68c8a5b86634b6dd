package market

import "strings"

// MarketType classifies a symbol for analysis tuning.
type MarketType string

const (
	MarketForex      MarketType = "forex"
	MarketBoomCrash  MarketType = "boomcrash"
	MarketVolatility MarketType = "volatility"
)

// Profile carries per-market analysis parameters.
type Profile struct {
	Type             MarketType         `json:"market_type"`
	ATRMultiplier    float64            `json:"atr_multiplier"`
	NoiseSensitivity string             `json:"noise_sensitivity"`
	TrendThreshold   float64            `json:"trend_threshold"`
	Weights          map[string]float64 `json:"trend_weight"`
	SpikeProtection  bool               `json:"spike_protection"`
}

// ProfileFor detects the market type from the symbol name.
func ProfileFor(symbol string) Profile {
	s := strings.ToUpper(symbol)
	switch {
	case strings.Contains(s, "BOOM") || strings.Contains(s, "CRASH"):
		return Profile{
			Type:             MarketBoomCrash,
			ATRMultiplier:    0.6,
			NoiseSensitivity: "low",
			TrendThreshold:   0.0003,
			Weights:          map[string]float64{"1m": 0.10, "5m": 0.20, "15m": 0.25, "1h": 0.45},
			SpikeProtection:  true,
		}
	case isVolatilityIndex(s):
		return Profile{
			Type:             MarketVolatility,
			ATRMultiplier:    5.0,
			NoiseSensitivity: "low",
			TrendThreshold:   0.0002,
			Weights:          map[string]float64{"1m": 0.15, "5m": 0.25, "15m": 0.25, "1h": 0.35},
		}
	}
	return Profile{
		Type:             MarketForex,
		ATRMultiplier:    1.0,
		NoiseSensitivity: "medium",
		TrendThreshold:   0.0005,
		Weights:          map[string]float64{"1m": 0.10, "5m": 0.20, "15m": 0.30, "1h": 0.40},
	}
}

func isVolatilityIndex(s string) bool {
	if strings.HasPrefix(s, "R_") {
		return true
	}
	if strings.Contains(s, "VOL") || strings.Contains(s, "_V") {
		return true
	}
	return strings.HasPrefix(s, "1HZ") && strings.Contains(s, "V")
}

// NoiseThreshold is the ATR spike multiple for the profile's sensitivity.
func (p Profile) NoiseThreshold() float64 {
	switch p.NoiseSensitivity {
	case "low":
		return 3.5
	case "high":
		return 2.0
	}
	return 2.5
}

// Weight returns the MTF weight of a timeframe.
func (p Profile) Weight(tf string) float64 {
	return p.Weights[tf]
}
