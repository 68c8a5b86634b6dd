package exit

import (
	"fmt"
	"math"

	"deriv-core/internal/market"
	"deriv-core/internal/position"
	"deriv-core/internal/signal"
)

const (
	defaultFlipDelta = 0.5
	minWickBody      = 0.0001
	reversalWickMul  = 2.0
)

type momentum int

const (
	flat momentum = iota
	up
	down
)

func (m momentum) String() string {
	switch m {
	case up:
		return "up"
	case down:
		return "down"
	}
	return "flat"
}

// Scalper forces fast exits on an RSI momentum flip, a reversal wick
// against the trade or volatility collapsing to flat. It remembers the last
// momentum direction per contract.
type Scalper struct {
	MinFlipDelta float64
	last         map[int64]momentum
}

func NewScalper() *Scalper {
	return &Scalper{MinFlipDelta: defaultFlipDelta, last: make(map[int64]momentum)}
}

// Check evaluates the overlay. candle is the forming 1m candle and may be
// nil.
func (s *Scalper) Check(p position.Position, ind signal.Indicators, candle *market.Candle) (bool, Reason, string) {
	if ok, detail := s.flip(p.ContractID, ind.RSISlope); ok {
		return true, ReasonRSIFlip, detail
	}
	if candle != nil {
		body := math.Max(candle.Body(), minWickBody)
		switch {
		case p.Side == market.Buy && candle.LowerWick() > reversalWickMul*body:
			return true, ReasonMicroReversal, fmt.Sprintf("lower wick %.4f > 2x body %.4f", candle.LowerWick(), body)
		case p.Side == market.Sell && candle.UpperWick() > reversalWickMul*body:
			return true, ReasonMicroReversal, fmt.Sprintf("upper wick %.4f > 2x body %.4f", candle.UpperWick(), body)
		}
	}
	if p.EntryState != "" && p.EntryState != string(signal.RSIFlat) && ind.RSIState == signal.RSIFlat {
		return true, ReasonVolatilityCollapse, fmt.Sprintf("volatility collapsed from %s to flat", p.EntryState)
	}
	return false, "", ""
}

func (s *Scalper) flip(id int64, slope float64) (bool, string) {
	cur := flat
	switch {
	case slope > 0:
		cur = up
	case slope < 0:
		cur = down
	}
	prev, seen := s.last[id]
	if cur == flat {
		return false, ""
	}
	s.last[id] = cur
	if !seen || prev == cur || math.Abs(slope) < s.MinFlipDelta {
		return false, ""
	}
	return true, fmt.Sprintf("RSI momentum flipped from %s to %s (%.2f)", prev, cur, slope)
}

// Forget drops the state of a closed contract.
func (s *Scalper) Forget(id int64) { delete(s.last, id) }

// Retain drops the state of every contract not in open.
func (s *Scalper) Retain(open []position.Position) {
	if len(s.last) == 0 {
		return
	}
	keep := make(map[int64]bool, len(open))
	for _, p := range open {
		keep[p.ContractID] = true
	}
	for id := range s.last {
		if !keep[id] {
			delete(s.last, id)
		}
	}
}
