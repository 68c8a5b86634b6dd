package exit

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"deriv-core/internal/execution"
	"deriv-core/internal/market"
	"deriv-core/internal/position"
	"deriv-core/internal/signal"
)

// Closer sells a contract at market.
type Closer interface {
	Close(ctx context.Context, symbol string, contractID int64, reason string) execution.Result
}

// View is the per-tick market read the overlays use. Every field is
// optional.
type View struct {
	Indicators *signal.Indicators
	Candle     *market.Candle
	Analysis   *market.Analysis
}

// Exit is one close attempt.
type Exit struct {
	ContractID int64            `json:"contract_id"`
	Symbol     string           `json:"symbol"`
	Reason     Reason           `json:"reason"`
	Detail     string           `json:"detail,omitempty"`
	Price      float64          `json:"price"`
	Result     execution.Result `json:"result"`
}

// Monitor manages the open positions of one symbol on each of its ticks.
// OnTick must be called from a single goroutine.
type Monitor struct {
	symbol  string
	book    *position.Book
	closer  Closer
	scalper *Scalper
	log     zerolog.Logger

	mu     sync.RWMutex
	params Params
	smart  bool
}

func NewMonitor(symbol string, book *position.Book, closer Closer, prm Params, smart bool, log zerolog.Logger) *Monitor {
	return &Monitor{
		symbol:  symbol,
		book:    book,
		closer:  closer,
		scalper: NewScalper(),
		log:     log.With().Str("component", "exit_monitor").Str("symbol", symbol).Logger(),
		params:  prm,
		smart:   smart,
	}
}

// Update applies new stop fractions and the smart exit switch.
func (m *Monitor) Update(prm Params, smart bool) {
	m.mu.Lock()
	m.params = prm
	m.smart = smart
	m.mu.Unlock()
}

// OnTick walks every open position on the symbol. Stops are tightened in
// the book; exits are requested through the closer. A failed close returns
// the position to monitoring so the next tick retries it.
func (m *Monitor) OnTick(ctx context.Context, price float64, v View) []Exit {
	m.mu.RLock()
	prm, smart := m.params, m.smart
	m.mu.RUnlock()

	var exits []Exit
	positions := m.book.ForSymbol(m.symbol)
	m.scalper.Retain(positions)
	for _, p := range positions {
		if p.Status != position.StatusOpen {
			continue
		}
		m.book.Mark(p.ContractID, price)

		closeNow, reason, detail := m.evaluate(p, price, prm, smart, v)
		if !closeNow {
			continue
		}
		if !m.book.MarkClosing(p.ContractID) {
			continue
		}
		res := m.closer.Close(ctx, m.symbol, p.ContractID, string(reason))
		if !res.OK() {
			m.book.ReopenClosing(p.ContractID)
			m.log.Warn().Int64("contract_id", p.ContractID).Str("reason", string(reason)).Str("kind", string(res.Kind)).Msg("close failed, will retry")
		} else {
			m.scalper.Forget(p.ContractID)
			m.log.Info().Int64("contract_id", p.ContractID).Str("reason", string(reason)).Str("detail", detail).Float64("price", price).Msg("exit requested")
		}
		exits = append(exits, Exit{ContractID: p.ContractID, Symbol: m.symbol, Reason: reason, Detail: detail, Price: price, Result: res})
	}
	return exits
}

func (m *Monitor) evaluate(p position.Position, price float64, prm Params, smart bool, v View) (bool, Reason, string) {
	d := Evaluate(p, price, prm)
	if d.Close {
		return true, d.Reason, d.Detail
	}
	if d.Moved() && m.book.MoveStop(p.ContractID, d.NewStop, d.Breakeven, d.Trailing) {
		m.log.Info().
			Int64("contract_id", p.ContractID).
			Float64("stop", d.NewStop).
			Bool("breakeven", d.Breakeven).
			Bool("trailing", d.Trailing).
			Msg("stop tightened")
	}
	if p.Adopted {
		return false, "", ""
	}
	if p.ScalperExit && v.Indicators != nil {
		if ok, reason, detail := m.scalper.Check(p, *v.Indicators, v.Candle); ok {
			return true, reason, detail
		}
	}
	if smart && v.Analysis != nil {
		if ok, detail := market.SmartExit(p.Side, *v.Analysis); ok {
			return true, ReasonSmartExit, detail
		}
	}
	return false, "", ""
}
