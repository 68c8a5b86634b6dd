package market

import (
	"sync"
	"time"

	"deriv-core/internal/indicators"
)

// Engine aggregates ticks for one symbol into 1m/5m/15m/1h candles and
// derives trend, regime and confidence from them.
type Engine struct {
	mu      sync.RWMutex
	symbol  string
	profile Profile
	series  []*series
	last    float64
	lastAt  time.Time
	ticks   int64
	memory  *Memory
}

func NewEngine(symbol string) *Engine {
	e := &Engine{
		symbol:  symbol,
		profile: ProfileFor(symbol),
		memory:  &Memory{},
	}
	for _, tf := range Timeframes {
		e.series = append(e.series, &series{tf: tf})
	}
	return e
}

func (e *Engine) Symbol() string { return e.symbol }
func (e *Engine) Profile() Profile { return e.profile }
func (e *Engine) Memory() *Memory { return e.memory }

// Update folds a tick into every timeframe and returns the timeframes whose
// candle closed on this tick.
func (e *Engine) Update(price float64, ts time.Time) []Timeframe {
	e.mu.Lock()
	defer e.mu.Unlock()
	var closed []Timeframe
	for _, s := range e.series {
		if s.update(price, ts) {
			closed = append(closed, s.tf)
		}
	}
	if !ts.Before(e.lastAt) {
		e.last, e.lastAt = price, ts
	}
	e.ticks++
	return closed
}

// Seed replaces the closed history of a timeframe, e.g. with broker candles.
func (e *Engine) Seed(tf string, candles []Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.lookup(tf); s != nil {
		s.closed = nil
		for _, c := range candles {
			s.push(c)
		}
	}
}

// Candles returns a copy of the closed candles for tf.
func (e *Engine) Candles(tf string) []Candle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s := e.lookup(tf); s != nil {
		return s.snapshot()
	}
	return nil
}

// Current returns the in-progress candle for tf.
func (e *Engine) Current(tf string) (Candle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.lookup(tf)
	if s == nil || s.current == nil {
		return Candle{}, false
	}
	return *s.current, true
}

// LastPrice returns the most recent tick price.
func (e *Engine) LastPrice() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

func (e *Engine) Ticks() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ticks
}

func (e *Engine) Trend(tf string) Trend {
	return TrendOf(e.Candles(tf), e.profile.TrendThreshold)
}

func (e *Engine) Volatility(tf string) Volatility {
	return VolatilityOf(e.Candles(tf))
}

// Momentum is the RSI(14) of tf closes, 50 without enough data.
func (e *Engine) Momentum(tf string) float64 {
	return indicators.RSI(Closes(e.Candles(tf)), rsiPeriod)
}

// MTF weights the per-timeframe trends by the symbol profile. Timeframes
// without enough candles are left out and the remaining weights normalized.
func (e *Engine) MTF() MTF {
	out := MTF{Trend: TrendNeutral, Details: make(map[string]Trend, len(Timeframes))}
	var sum, weights float64
	var first, last Trend
	for _, tf := range Timeframes {
		candles := e.Candles(tf.Name)
		t := TrendOf(candles, e.profile.TrendThreshold)
		out.Details[tf.Name] = t
		if len(candles) < minTrendCandles {
			continue
		}
		w := e.profile.Weight(tf.Name)
		sum += t.Score() * w
		weights += w
		if t != TrendNeutral {
			if first == "" {
				first = t
			}
			last = t
		}
	}
	if weights == 0 {
		return out
	}
	out.Score = sum / weights
	if first != "" && first.Score()*last.Score() < 0 {
		return out
	}
	switch {
	case out.Score > 60:
		out.Trend = TrendStrongUp
	case out.Score > 20:
		out.Trend = TrendUp
	case out.Score < -60:
		out.Trend = TrendStrongDown
	case out.Score < -20:
		out.Trend = TrendDown
	}
	return out
}

// Analyze builds the 1m snapshot used by strategies and exits.
func (e *Engine) Analyze() Analysis {
	candles := e.Candles(TF1m.Name)
	highs, lows, closes := HLC(candles)
	a := Analysis{
		Symbol:     e.symbol,
		Price:      e.LastPrice(),
		Candles:    len(candles),
		Mode:       DetectMarketMode(candles, e.profile),
		Noise:      DetectNoise(candles, e.profile),
		Patterns:   DetectPatterns(candles),
		Trend:      TrendOf(candles, e.profile.TrendThreshold),
		MTF:        e.MTF(),
		Volatility: VolatilityOf(candles),
		RSI:        indicators.RSI(closes, rsiPeriod),
		ATR:        indicators.ATR(highs, lows, closes, atrPeriod),
	}
	if len(closes) > 0 {
		a.EMA20 = indicators.EMA(closes, 20)
		a.EMA50 = indicators.EMA(closes, 50)
	}
	return a
}

func (e *Engine) lookup(tf string) *series {
	for _, s := range e.series {
		if s.tf.Name == tf {
			return s
		}
	}
	return nil
}
