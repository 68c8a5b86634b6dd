package market

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// SyntheticFeed generates random-walk ticks for offline runs.
type SyntheticFeed struct {
	Symbols    []string
	StartPrice float64
	Step       float64
	Interval   time.Duration
	Seed       uint64
	Log        zerolog.Logger
}

// Run emits one tick per symbol every Interval until ctx is done.
func (m *SyntheticFeed) Run(ctx context.Context, emit func(symbol string, price float64, ts time.Time)) {
	if len(m.Symbols) == 0 {
		m.Log.Warn().Msg("synthetic feed: no symbols")
		return
	}
	start := m.StartPrice
	if start == 0 {
		start = 1000.0
	}
	if m.Step == 0 {
		m.Step = 0.5
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}
	rng := rand.New(rand.NewPCG(m.Seed, m.Seed^0x9e3779b97f4a7c15))
	prices := make(map[string]float64, len(m.Symbols))
	for _, sym := range m.Symbols {
		prices[sym] = start
	}

	m.Log.Info().Strs("symbols", m.Symbols).Dur("interval", m.Interval).Msg("synthetic feed started")
	t := time.NewTicker(m.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			for _, sym := range m.Symbols {
				p := prices[sym] + (rng.Float64()*2-1)*m.Step
				if p <= 0 {
					p = m.Step
				}
				prices[sym] = p
				emit(sym, p, now)
			}
		}
	}
}
