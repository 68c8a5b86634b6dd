// Package processor owns the per-symbol pipeline state and runs each
// symbol's ticks in arrival order on its own goroutine.
package processor

import (
	"sync"
	"sync/atomic"

	"deriv-core/internal/exit"
	"deriv-core/internal/market"
	"deriv-core/internal/signal"
	"deriv-core/internal/strategy"
	"deriv-core/pkg/deriv"
)

// Processor is everything one symbol owns. Engine, Structure and the exit
// overlay state are only touched from the symbol's mailbox goroutine.
type Processor struct {
	Symbol    string
	Engine    *market.Engine
	Structure *signal.MarketStructure
	Exit      *exit.Monitor

	mu       sync.RWMutex
	profile  strategy.Profile
	strategy strategy.Strategy

	mailbox chan deriv.Tick
	handled atomic.Int64
	dropped atomic.Int64
	panics  atomic.Int64
}

func New(symbol string, prof strategy.Profile, mon *exit.Monitor) *Processor {
	return &Processor{
		Symbol:    symbol,
		Engine:    market.NewEngine(symbol),
		Structure: signal.NewMarketStructure(),
		Exit:      mon,
		profile:   prof,
		strategy:  strategy.New(prof),
	}
}

func (p *Processor) Profile() strategy.Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

func (p *Processor) Strategy() strategy.Strategy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.strategy
}

// SetProfile swaps the strategy after a profile reload.
func (p *Processor) SetProfile(prof strategy.Profile) {
	p.mu.Lock()
	p.profile = prof
	p.strategy = strategy.New(prof)
	p.mu.Unlock()
}

// Stats reports mailbox counters.
type Stats struct {
	Symbol  string `json:"symbol"`
	Handled int64  `json:"handled"`
	Dropped int64  `json:"dropped"`
	Panics  int64  `json:"panics"`
	Queued  int    `json:"queued"`
}

func (p *Processor) Stats() Stats {
	return Stats{
		Symbol:  p.Symbol,
		Handled: p.handled.Load(),
		Dropped: p.dropped.Load(),
		Panics:  p.panics.Load(),
		Queued:  len(p.mailbox),
	}
}
