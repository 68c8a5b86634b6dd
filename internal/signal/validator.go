package signal

import (
	"fmt"

	"deriv-core/internal/market"
)

// Verdict is the combined structure and indicator decision.
type Verdict struct {
	Action         market.Side `json:"action"`
	Confidence     float64     `json:"confidence"`
	StructureScore int         `json:"structure_score"`
	IndicatorScore int         `json:"indicator_score"`
	StructureTrend Bias        `json:"structure_trend"`
	IndicatorBias  Bias        `json:"indicator_bias"`
}

// Validate cross-checks the structure and indicator scores. It returns an
// error describing the rejection when the layers disagree or are undecided.
func Validate(s Structure, ind Indicators) (Verdict, error) {
	ss, is := s.Score, ind.Score
	v := Verdict{StructureScore: ss, IndicatorScore: is, StructureTrend: s.Trend, IndicatorBias: ind.Bias}

	if (ss > 60 && is < 40) || (ss < 40 && is > 60) {
		return v, fmt.Errorf("contradictory layers: structure %d vs indicators %d", ss, is)
	}
	bullish := (ss > 55 && is > 55) || ss > 75 || is > 75
	bearish := (ss < 45 && is < 45) || ss < 25 || is < 25

	avg := float64(ss+is) / 2
	switch {
	case bullish:
		v.Action = market.Buy
		v.Confidence = (avg - 55) / 45
	case bearish:
		v.Action = market.Sell
		v.Confidence = (45 - avg) / 45
	default:
		return v, fmt.Errorf("no directional agreement: structure %d, indicators %d", ss, is)
	}
	v.Confidence = min(0.99, max(0.1, v.Confidence))
	return v, nil
}
