package strategy

import (
	"fmt"

	"deriv-core/internal/market"
	"deriv-core/internal/signal"
)

const (
	spikeRewardRisk    = 1.5
	spikeMinConfidence = 40
	spikeLookback      = 3
	spikeRangeATR      = 3.0
)

// Spike trades Boom/Crash indices in one direction only: against the spike
// side, riding the drift between spikes.
type Spike struct {
	Side market.Side
}

func (s Spike) Name() string { return string(KindSpike) }

func (s Spike) Analyze(in Input) Signal {
	a := in.Analysis
	name := s.Name()
	if a.Candles < 50 {
		return skip(name, in, StageWarmup, fmt.Sprintf("%d of 50 candles", a.Candles))
	}
	if a.Noise || a.Mode == market.ModeChaotic {
		return skip(name, in, StageRegime, fmt.Sprintf("unsafe regime (mode %s, noise %t)", a.Mode, a.Noise))
	}

	ind := in.Indicators
	want, slopeOK := signal.Bearish, ind.MASlope < 0
	if s.Side == market.Buy {
		want, slopeOK = signal.Bullish, ind.MASlope > 0
	}
	if ind.MATrend != want || !slopeOK {
		return skip(name, in, StageTrend, fmt.Sprintf("%s only, MA trend %s", s.Side, ind.MATrend))
	}

	if c, ok := lastClosed(in.Engine); ok {
		if err := signal.CheckCandle(c, s.Side, ind.RSISlope); err != nil {
			return skip(name, in, StageCandle, err.Error())
		}
	}
	if a.Volatility == market.VolExtreme {
		return skip(name, in, StageVolatility, "extreme volatility")
	}
	if recentSpike(in.Engine.Candles(market.TF1m.Name), a.ATR) {
		return skip(name, in, StageVolatility, "spike in the last candles")
	}

	conf := float64(in.Engine.Confidence(s.Side, a))
	if conf < spikeMinConfidence {
		in.Engine.Memory().RecordRejection()
		return skip(name, in, StageConfidence, fmt.Sprintf("low confidence (%.0f < %d)", conf, spikeMinConfidence))
	}
	in.Engine.Memory().RecordConfidence(int(conf))

	sl, tp := stopDistances(in.Price, a.ATR, spikeRewardRisk, in.Settings)
	return Signal{
		Symbol:     in.Symbol,
		Strategy:   name,
		Action:     s.Side,
		Confidence: conf,
		SLDistance: sl,
		TPDistance: tp,
		Price:      in.Price,
		Mode:       a.Mode,
		Volatility: a.Volatility,
		Confluence: confluence(s.Side, in),
		Time:       in.Time,
	}
}

// recentSpike reports a candle in the lookback whose range exceeds 3x ATR.
func recentSpike(candles []market.Candle, atr float64) bool {
	if atr <= 0 {
		return false
	}
	start := max(0, len(candles)-spikeLookback)
	for _, c := range candles[start:] {
		if c.Range() > spikeRangeATR*atr {
			return true
		}
	}
	return false
}
