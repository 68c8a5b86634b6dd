package strategy

import (
	"fmt"
	"math"

	"deriv-core/internal/market"
	"deriv-core/internal/signal"
)

const (
	sidewaysSlope = 0.0001
	minMASlope    = 0.0002
	mtfPenalty    = 15
)

// Trend follows EMA alignment on volatility indices and forex, gated by
// ADX, ATR bounds, the entry validator and candle quality.
type Trend struct{}

func (Trend) Name() string { return string(KindTrend) }

func (t Trend) Analyze(in Input) Signal {
	a := in.Analysis
	name := t.Name()
	if a.Candles < 50 {
		return skip(name, in, StageWarmup, fmt.Sprintf("%d of 50 candles", a.Candles))
	}
	if a.Noise {
		return skip(name, in, StageRegime, "noise detected")
	}
	if a.Mode == market.ModeChaotic {
		return skip(name, in, StageRegime, "chaotic market")
	}

	s := in.Settings
	th := in.Engine.AdaptThresholds(market.Thresholds{
		RSIBuyMin:  s.RSIBuyMin,
		RSIBuyMax:  s.RSIBuyMax,
		RSISellMin: s.RSISellMin,
		RSISellMax: s.RSISellMax,
		Confidence: s.ConfidenceThreshold,
	}, a.Mode)

	ind := in.Indicators
	slope := math.Abs(ind.MASlope)
	switch {
	case slope < sidewaysSlope:
		return skip(name, in, StageTrend, fmt.Sprintf("sideways market (slope %.6f)", ind.MASlope))
	case ind.ADX < s.ADXMin:
		return skip(name, in, StageTrend, fmt.Sprintf("weak trend (ADX %.1f)", ind.ADX))
	case slope < minMASlope:
		return skip(name, in, StageTrend, fmt.Sprintf("flat MA slope (%.6f)", ind.MASlope))
	}

	if in.Price > 0 {
		atrPct := a.ATR / in.Price
		if atrPct < s.MinATRPct || atrPct > s.MaxATRPct {
			return skip(name, in, StageVolatility, fmt.Sprintf("ATR %.5f%% outside bounds", atrPct*100))
		}
	}

	var side market.Side
	switch {
	case ind.MATrend == signal.Bullish && ind.RSI >= th.RSIBuyMin && ind.RSI <= th.RSIBuyMax:
		side = market.Buy
	case ind.MATrend == signal.Bearish && ind.RSI >= th.RSISellMin && ind.RSI <= th.RSISellMax:
		side = market.Sell
	default:
		return skip(name, in, StageSetup, fmt.Sprintf("no setup (MA %s, RSI %.1f)", ind.MATrend, ind.RSI))
	}

	verdict, err := signal.Validate(in.Structure, ind)
	if err != nil {
		return skip(name, in, StageValidator, err.Error())
	}
	if verdict.Action != side {
		return skip(name, in, StageValidator, fmt.Sprintf("layers favour %s over %s", verdict.Action, side))
	}

	if c, ok := lastClosed(in.Engine); ok {
		if err := signal.CheckCandle(c, side, ind.RSISlope); err != nil {
			return skip(name, in, StageCandle, err.Error())
		}
	}

	conf := float64(in.Engine.Confidence(side, a))
	if mtfOpposes(side, a.MTF.Trend) {
		conf -= mtfPenalty
	}
	if conf < th.Confidence {
		in.Engine.Memory().RecordRejection()
		return skip(name, in, StageConfidence, fmt.Sprintf("low confidence (%.0f < %.0f)", conf, th.Confidence))
	}
	in.Engine.Memory().RecordConfidence(int(conf))

	sl, tp := stopDistances(in.Price, a.ATR, s.RewardRisk, s)
	return Signal{
		Symbol:     in.Symbol,
		Strategy:   name,
		Action:     side,
		Confidence: conf,
		SLDistance: sl,
		TPDistance: tp,
		Price:      in.Price,
		Mode:       a.Mode,
		Volatility: a.Volatility,
		Confluence: confluence(side, in),
		Time:       in.Time,
	}
}
