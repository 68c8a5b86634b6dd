package strategy

import (
	"time"

	"deriv-core/internal/market"
	"deriv-core/internal/signal"
	"deriv-core/pkg/config"
)

// Skip stages reported when a strategy declines to trade.
const (
	StageWarmup     = "warmup"
	StageRegime     = "regime"
	StageTrend      = "trend"
	StageVolatility = "volatility"
	StageSetup      = "setup"
	StageValidator  = "validator"
	StageCandle     = "candle"
	StageConfidence = "confidence"
)

// Signal is a strategy decision. An empty Action means no trade; Stage and
// Reason then say why.
type Signal struct {
	Symbol     string            `json:"symbol"`
	Strategy   string            `json:"strategy"`
	Action     market.Side       `json:"action,omitempty"`
	Confidence float64           `json:"confidence"`
	SLDistance float64           `json:"sl_distance"`
	TPDistance float64           `json:"tp_distance"`
	Price      float64           `json:"price"`
	Mode       market.Mode       `json:"market_mode"`
	Volatility market.Volatility `json:"volatility"`
	Confluence int               `json:"confluence"`
	Stage      string            `json:"stage,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Time       time.Time         `json:"time"`
}

// Skipped reports whether the strategy declined to trade.
func (s Signal) Skipped() bool { return s.Action == "" }

// Input bundles what a strategy sees on one tick.
type Input struct {
	Symbol     string
	Price      float64
	Time       time.Time
	Engine     *market.Engine
	Analysis   market.Analysis
	Structure  signal.Structure
	Indicators signal.Indicators
	Settings   config.Settings
}

// Strategy turns one tick's analysis into a Signal.
type Strategy interface {
	Name() string
	Analyze(in Input) Signal
}

func skip(name string, in Input, stage, reason string) Signal {
	return Signal{
		Symbol:     in.Symbol,
		Strategy:   name,
		Price:      in.Price,
		Mode:       in.Analysis.Mode,
		Volatility: in.Analysis.Volatility,
		Stage:      stage,
		Reason:     reason,
		Time:       in.Time,
	}
}

// stopDistances sizes SL from ATR with a price floor and derives TP from the
// reward/risk ratio. Non-zero point bounds in settings clamp both.
func stopDistances(price, atr, rewardRisk float64, s config.Settings) (sl, tp float64) {
	sl = max(1.5*atr, 0.0005*price)
	sl = clampPoints(sl, s.StopLossPointsMin, s.StopLossPointsMax)
	tp = clampPoints(sl*rewardRisk, s.TakeProfitPointsMin, s.TakeProfitPointsMax)
	return sl, tp
}

func clampPoints(v, lo, hi float64) float64 {
	v = max(v, lo)
	if hi > 0 {
		v = min(v, hi)
	}
	return v
}

// confluence counts the layers agreeing with side.
func confluence(side market.Side, in Input) int {
	n := 0
	want := signal.Bullish
	up := in.Analysis.MTF.Trend == market.TrendUp || in.Analysis.MTF.Trend == market.TrendStrongUp
	down := in.Analysis.MTF.Trend == market.TrendDown || in.Analysis.MTF.Trend == market.TrendStrongDown
	if side == market.Sell {
		want = signal.Bearish
		up, down = down, up
	}
	if up {
		n++
	}
	if in.Structure.Trend == want {
		n++
	}
	if in.Indicators.Bias == want {
		n++
	}
	if in.Indicators.MATrend == want {
		n++
	}
	return n
}

// mtfOpposes reports whether the MTF trend points against side.
func mtfOpposes(side market.Side, t market.Trend) bool {
	if side == market.Buy {
		return t == market.TrendDown || t == market.TrendStrongDown
	}
	return t == market.TrendUp || t == market.TrendStrongUp
}

func lastClosed(e *market.Engine) (market.Candle, bool) {
	candles := e.Candles(market.TF1m.Name)
	if len(candles) == 0 {
		return market.Candle{}, false
	}
	return candles[len(candles)-1], true
}
