package signal

import (
	"errors"
	"fmt"

	"deriv-core/internal/market"
)

const (
	minBodyPct         = 0.15
	maxBodyPct         = 0.85
	minSpreadPct       = 0.20
	maxOppositeWickMul = 2.0
)

// CheckCandle rejects entries on indecisive, overextended or opposing
// candles. rsiSlope is the latest RSI change; a slope against side rejects.
func CheckCandle(c market.Candle, side market.Side, rsiSlope float64) error {
	rng := c.Range()
	if rng <= 0 {
		return errors.New("invalid candle range")
	}
	body := c.Body()
	bodyPct := body / rng
	switch {
	case bodyPct < minBodyPct:
		return fmt.Errorf("indecision candle: body %.1f%% of range", bodyPct*100)
	case bodyPct > maxBodyPct:
		return fmt.Errorf("overextended candle: body %.1f%% of range", bodyPct*100)
	case bodyPct < minSpreadPct:
		return fmt.Errorf("low spread: %.1f%% of range", bodyPct*100)
	}

	switch side {
	case market.Buy:
		if !c.Bullish() {
			return errors.New("BUY against a bearish candle")
		}
		if rsiSlope < 0 {
			return errors.New("BUY against falling RSI")
		}
		if c.LowerWick() > maxOppositeWickMul*body {
			return fmt.Errorf("BUY with lower wick %.4f over 2x body %.4f", c.LowerWick(), body)
		}
	case market.Sell:
		if !c.Bearish() {
			return errors.New("SELL against a bullish candle")
		}
		if rsiSlope > 0 {
			return errors.New("SELL against rising RSI")
		}
		if c.UpperWick() > maxOppositeWickMul*body {
			return fmt.Errorf("SELL with upper wick %.4f over 2x body %.4f", c.UpperWick(), body)
		}
	}
	return nil
}
