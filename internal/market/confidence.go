package market

// Confidence scores a candidate signal from 0 to 100.
func (e *Engine) Confidence(side Side, a Analysis) int {
	score := 0

	switch a.MTF.Trend {
	case aligned(side, true):
		score += 30
	case aligned(side, false):
		score += 20
	case TrendNeutral:
		score += 10
	case opposed(side, true):
		score -= 20
	}

	for _, p := range a.Patterns {
		if (side == Buy && p == PatternBullishEngulfing) || (side == Sell && p == PatternBearishEngulfing) {
			score += 15
		}
		if p == PatternCompression {
			score += 10
		}
	}

	switch a.Volatility {
	case VolNormal:
		score += 20
	case VolLow:
		score += 15
	case VolHigh:
		score += 10
	case VolExtreme:
		score -= 10
	}

	switch side {
	case Buy:
		if a.RSI >= 40 && a.RSI <= 70 {
			score += 10
		}
	case Sell:
		if a.RSI >= 30 && a.RSI <= 60 {
			score += 10
		}
	}

	score += e.memory.Wins() * 2
	if e.memory.Rejections() > 3 {
		score -= 5
	}

	switch a.Mode {
	case ModeStrongTrend:
		score += 20
	case ModeChaotic:
		score -= 50
	case ModeCompression:
		score -= 10
	}

	if e.profile.SpikeProtection && (a.Volatility == VolHigh || a.Volatility == VolExtreme) {
		score -= 10
	}
	return min(100, max(0, score))
}

func aligned(side Side, strong bool) Trend {
	switch {
	case side == Buy && strong:
		return TrendStrongUp
	case side == Buy:
		return TrendUp
	case strong:
		return TrendStrongDown
	}
	return TrendDown
}

func opposed(side Side, strong bool) Trend {
	return aligned(side.Opposite(), strong)
}

// Thresholds are the strategy gates that adapt to the regime.
type Thresholds struct {
	RSIBuyMin  float64
	RSIBuyMax  float64
	RSISellMin float64
	RSISellMax float64
	Confidence float64
}

// AdaptThresholds loosens RSI bands in strong trends and demands more
// confidence after repeated losses.
func (e *Engine) AdaptThresholds(t Thresholds, mode Mode) Thresholds {
	if mode == ModeStrongTrend {
		t.RSIBuyMin = max(0, t.RSIBuyMin-5)
		t.RSIBuyMax = min(100, t.RSIBuyMax+5)
		t.RSISellMin = max(0, t.RSISellMin-5)
		t.RSISellMax = min(100, t.RSISellMax+5)
	}
	if e.memory.Losses() >= 2 {
		t.Confidence += 10
	}
	return t
}

// SmartExit reports whether an open position on side should be closed now.
func SmartExit(side Side, a Analysis) (bool, string) {
	if a.Mode == ModeChaotic {
		return true, "chaotic market"
	}
	switch side {
	case Buy:
		if a.HasPattern(PatternBearishEngulfing) {
			return true, "bearish engulfing"
		}
	case Sell:
		if a.HasPattern(PatternBullishEngulfing) {
			return true, "bullish engulfing"
		}
	}
	return false, ""
}
