// Package signal scores tick structure and candle indicators and gates
// entries before a strategy commits to a side.
package signal

import (
	"math"
	"slices"
)

// Bias is a directional read of a signal layer.
type Bias string

const (
	Bullish Bias = "bullish"
	Bearish Bias = "bearish"
	Neutral Bias = "neutral"
)

const (
	structureBuffer = 50
	structureRecent = 10
	swingWindow     = 5
)

// Structure is the result of one MarketStructure update.
type Structure struct {
	Score    int  `json:"score"`
	Trend    Bias `json:"trend"`
	BOSBull  bool `json:"bos_bull"`
	BOSBear  bool `json:"bos_bear"`
	IBOSBull bool `json:"ibos_bull"`
	IBOSBear bool `json:"ibos_bear"`
	FVG      bool `json:"fvg"`
}

// MarketStructure tracks breaks of structure over a rolling tick buffer.
// It is not safe for concurrent use; each symbol owns one.
type MarketStructure struct {
	prices  []float64
	bosHigh float64
	bosLow  float64
	trend   Bias
}

func NewMarketStructure() *MarketStructure {
	m := &MarketStructure{}
	m.Reset()
	return m
}

func (m *MarketStructure) Reset() {
	m.prices = m.prices[:0]
	m.bosHigh = 0
	m.bosLow = math.Inf(1)
	m.trend = Neutral
}

// Update appends a tick price and rescores the structure.
func (m *MarketStructure) Update(price float64) Structure {
	m.prices = append(m.prices, price)
	if len(m.prices) > structureBuffer {
		m.prices = m.prices[len(m.prices)-structureBuffer:]
	}
	if len(m.prices) < structureRecent {
		return Structure{Score: 50, Trend: Neutral}
	}

	recent := m.prices[len(m.prices)-structureRecent:]
	recentMax, recentMin := slices.Max(recent), slices.Min(recent)
	prevMax, prevMin := recentMax, recentMin
	if len(m.prices) >= 2*structureRecent {
		prev := m.prices[:len(m.prices)-structureRecent]
		prevMax, prevMin = slices.Max(prev), slices.Min(prev)
	}

	var out Structure
	out.BOSBull = recentMax > m.bosHigh && m.bosHigh > 0
	out.BOSBear = recentMin < m.bosLow && !math.IsInf(m.bosLow, 1)
	m.bosHigh = math.Max(m.bosHigh, recentMax)
	m.bosLow = math.Min(m.bosLow, recentMin)

	if high, low, ok := m.swings(); ok {
		out.IBOSBull = !math.IsNaN(high) && price > high
		out.IBOSBear = !math.IsNaN(low) && price < low
	}
	out.FVG = m.fvg()

	score := 50
	switch {
	case price > prevMax:
		score += 20
		m.trend = Bullish
	case price < prevMin:
		score -= 20
		m.trend = Bearish
	}
	if out.BOSBull {
		score += 15
	}
	if out.BOSBear {
		score -= 15
	}
	if out.IBOSBull {
		score += 10
	}
	if out.IBOSBear {
		score -= 10
	}
	if out.FVG {
		switch m.trend {
		case Bullish:
			score += 5
		case Bearish:
			score -= 5
		}
	}
	out.Score = min(100, max(0, score))
	out.Trend = m.trend
	return out
}

// swings returns the last pivot high and low in the buffer; NaN marks a side
// with no pivot.
func (m *MarketStructure) swings() (high, low float64, ok bool) {
	if len(m.prices) < swingWindow*2+3 {
		return 0, 0, false
	}
	high, low = math.NaN(), math.NaN()
	for i := swingWindow; i < len(m.prices)-swingWindow; i++ {
		window := m.prices[i-swingWindow : i+swingWindow+1]
		pivot := m.prices[i]
		if pivot == slices.Max(window) {
			high = pivot
		}
		if pivot == slices.Min(window) {
			low = pivot
		}
	}
	return high, low, true
}

// fvg approximates a fair value gap from three equal chunks of the buffer.
func (m *MarketStructure) fvg() bool {
	if len(m.prices) < 9 {
		return false
	}
	chunk := len(m.prices) / 3
	c1, c2, c3 := m.prices[:chunk], m.prices[chunk:2*chunk], m.prices[2*chunk:]
	h1, l1 := slices.Max(c1), slices.Min(c1)
	h2, l2 := slices.Max(c2), slices.Min(c2)
	h3, l3 := slices.Max(c3), slices.Min(c3)
	if h1 < l3 && h2 > h1 && h2 > h3 {
		return true
	}
	return l1 > h3 && l2 < l1 && l2 < l3
}
