package exit

import (
	"math"

	"deriv-core/internal/market"
	"deriv-core/internal/position"
	"deriv-core/pkg/config"
)

// Reason names why a position was closed.
type Reason string

const (
	ReasonStopLoss           Reason = "stop_loss"
	ReasonTakeProfit         Reason = "take_profit"
	ReasonRSIFlip            Reason = "rsi_flip"
	ReasonMicroReversal      Reason = "micro_reversal"
	ReasonVolatilityCollapse Reason = "volatility_collapse"
	ReasonSmartExit          Reason = "smart_exit"
)

// Params are the stop management fractions, all of the TP distance.
type Params struct {
	BreakevenFraction    float64
	TrailTriggerFraction float64
	TrailOffsetFraction  float64
}

func ParamsFrom(s config.Settings) Params {
	return Params{
		BreakevenFraction:    s.BreakevenFraction,
		TrailTriggerFraction: s.TrailTriggerFraction,
		TrailOffsetFraction:  s.TrailOffsetFraction,
	}
}

// Decision is the stop evaluation for one position at one price.
type Decision struct {
	Close     bool
	Reason    Reason
	Detail    string
	NewStop   float64
	Breakeven bool
	Trailing  bool
}

// Moved reports whether the decision tightens the stop.
func (d Decision) Moved() bool { return d.NewStop > 0 }

// Evaluate checks SL/TP at price and otherwise computes a tighter stop:
// entry once the move reaches the breakeven fraction, then price minus the
// trail offset past the trail trigger. Positions without stops are skipped.
func Evaluate(p position.Position, price float64, prm Params) Decision {
	if !p.HasStops() || price <= 0 {
		return Decision{}
	}

	if p.Side == market.Sell {
		switch {
		case price >= p.StopLoss:
			return Decision{Close: true, Reason: ReasonStopLoss}
		case price <= p.TakeProfit:
			return Decision{Close: true, Reason: ReasonTakeProfit}
		}
	} else {
		switch {
		case price <= p.StopLoss:
			return Decision{Close: true, Reason: ReasonStopLoss}
		case price >= p.TakeProfit:
			return Decision{Close: true, Reason: ReasonTakeProfit}
		}
	}

	tpd := p.TPDistance
	if tpd <= 0 {
		tpd = math.Abs(p.TakeProfit - p.EntryPrice)
	}
	fav := p.Favorable(price)
	dir := 1.0
	if p.Side == market.Sell {
		dir = -1
	}

	var d Decision
	candidate := 0.0
	switch {
	case fav >= prm.TrailTriggerFraction*tpd:
		candidate = price - dir*prm.TrailOffsetFraction*tpd
		d.Trailing = true
		d.Breakeven = true
	case fav >= prm.BreakevenFraction*tpd:
		candidate = p.EntryPrice
		d.Breakeven = true
	default:
		return Decision{}
	}

	if dir*(candidate-p.StopLoss) > 0 {
		d.NewStop = candidate
	}
	return d
}
