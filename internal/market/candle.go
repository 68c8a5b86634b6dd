package market

import (
	"math"
	"time"
)

// Timeframe describes one candle aggregation window.
type Timeframe struct {
	Name     string
	Period   time.Duration
	Capacity int
}

var (
	TF1m  = Timeframe{Name: "1m", Period: time.Minute, Capacity: 200}
	TF5m  = Timeframe{Name: "5m", Period: 5 * time.Minute, Capacity: 200}
	TF15m = Timeframe{Name: "15m", Period: 15 * time.Minute, Capacity: 200}
	TF1h  = Timeframe{Name: "1h", Period: time.Hour, Capacity: 100}
)

// Timeframes is ordered from shortest to longest.
var Timeframes = []Timeframe{TF1m, TF5m, TF15m, TF1h}

// Start returns the period start containing ts.
func (tf Timeframe) Start(ts time.Time) time.Time {
	return ts.UTC().Truncate(tf.Period)
}

// Candle is an OHLC bar built from ticks.
type Candle struct {
	Start time.Time `json:"start"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Ticks int       `json:"ticks"`
}

func newCandle(start time.Time, price float64) Candle {
	return Candle{Start: start, Open: price, High: price, Low: price, Close: price, Ticks: 1}
}

func (c *Candle) add(price float64) {
	c.High = math.Max(c.High, price)
	c.Low = math.Min(c.Low, price)
	c.Close = price
	c.Ticks++
}

func (c Candle) Range() float64 { return c.High - c.Low }
func (c Candle) Body() float64 { return math.Abs(c.Close - c.Open) }
func (c Candle) Bullish() bool { return c.Close > c.Open }
func (c Candle) Bearish() bool { return c.Close < c.Open }
func (c Candle) UpperWick() float64 { return c.High - math.Max(c.Open, c.Close) }
func (c Candle) LowerWick() float64 { return math.Min(c.Open, c.Close) - c.Low }

// series keeps the closed candles and the in-progress candle for one timeframe.
type series struct {
	tf      Timeframe
	closed  []Candle
	current *Candle
}

// update folds a tick in and reports whether a candle was closed. Ticks older
// than the in-progress candle are ignored.
func (s *series) update(price float64, ts time.Time) bool {
	start := s.tf.Start(ts)
	if s.current == nil {
		c := newCandle(start, price)
		s.current = &c
		return false
	}
	switch {
	case start.Before(s.current.Start):
		return false
	case start.Equal(s.current.Start):
		s.current.add(price)
		return false
	}
	s.push(*s.current)
	c := newCandle(start, price)
	s.current = &c
	return true
}

func (s *series) push(c Candle) {
	s.closed = append(s.closed, c)
	if over := len(s.closed) - s.tf.Capacity; over > 0 {
		s.closed = append(s.closed[:0], s.closed[over:]...)
	}
}

func (s *series) snapshot() []Candle {
	out := make([]Candle, len(s.closed))
	copy(out, s.closed)
	return out
}

// ohlc splits candles into parallel price slices.
func ohlc(candles []Candle) (opens, highs, lows, closes []float64) {
	opens = make([]float64, len(candles))
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closes = make([]float64, len(candles))
	for i, c := range candles {
		opens[i], highs[i], lows[i], closes[i] = c.Open, c.High, c.Low, c.Close
	}
	return
}

// Closes returns the close prices of candles.
func Closes(candles []Candle) []float64 {
	_, _, _, closes := ohlc(candles)
	return closes
}

// HLC returns highs, lows and closes of candles.
func HLC(candles []Candle) (highs, lows, closes []float64) {
	_, highs, lows, closes = ohlc(candles)
	return
}
