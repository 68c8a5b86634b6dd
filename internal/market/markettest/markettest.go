// Package markettest builds deterministic tick and candle fixtures.
package markettest

import (
	"time"

	"deriv-core/internal/market"
)

// Epoch is the fixed start time used by fixtures.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Tick is a single price sample.
type Tick struct {
	Price float64
	Time  time.Time
}

// Staircase returns ticks for n one-minute candles starting at base. Every
// third candle (i%3 == 1) moves down by down; the rest move up by up. Each
// candle gets four ticks at 0/15/30/45s with wicks of 0.05 beyond the body,
// and a final tick at minute n closes the last candle.
func Staircase(base float64, n int, up, down float64) []Tick {
	const wick = 0.05
	var out []Tick
	price := base
	for i := 0; i < n; i++ {
		open := price
		delta := up
		if i%3 == 1 {
			delta = -down
		}
		closing := open + delta
		seq := []float64{open, open - wick, closing + wick, closing}
		if delta < 0 {
			seq = []float64{open, open + wick, closing - wick, closing}
		}
		start := Epoch.Add(time.Duration(i) * time.Minute)
		for k, p := range seq {
			out = append(out, Tick{Price: p, Time: start.Add(time.Duration(k) * 15 * time.Second)})
		}
		price = closing
	}
	return append(out, Tick{Price: price + 0.1, Time: Epoch.Add(time.Duration(n) * time.Minute)})
}

// Mirror flips ticks around base so an uptrend becomes a downtrend.
func Mirror(ticks []Tick, base float64) []Tick {
	out := make([]Tick, len(ticks))
	for i, t := range ticks {
		out[i] = Tick{Price: 2*base - t.Price, Time: t.Time}
	}
	return out
}

// Feed pushes ticks into the engine.
func Feed(e *market.Engine, ticks []Tick) {
	for _, t := range ticks {
		e.Update(t.Price, t.Time)
	}
}

// Linear returns n candles whose close moves by step each bar, with a body
// of step and wicks of wick on both sides.
func Linear(base, step, wick float64, n int) []market.Candle {
	out := make([]market.Candle, n)
	price := base
	for i := range out {
		open := price
		closing := open + step
		out[i] = market.Candle{
			Start: Epoch.Add(time.Duration(i) * time.Minute),
			Open:  open,
			High:  max(open, closing) + wick,
			Low:   min(open, closing) - wick,
			Close: closing,
			Ticks: 4,
		}
		price = closing
	}
	return out
}
