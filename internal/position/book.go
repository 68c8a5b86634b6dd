package position

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deriv-core/internal/market"
	"deriv-core/pkg/deriv"
)

// ProcessedCapacity bounds the settled-id memory.
const ProcessedCapacity = 1000

// Open describes a contract the gateway just bought.
type Open struct {
	Symbol       string
	Side         market.Side
	ContractType string
	Strategy     string
	Price        float64
	SLDistance   float64
	TPDistance   float64
	ScalperExit  bool
	EntryState   string
	Receipt      deriv.BuyReceipt
}

// Book is the open position table. Records are created optimistically from
// buy acknowledgments, reconciled from contract updates and removed exactly
// once on settlement.
type Book struct {
	mu        sync.RWMutex
	positions map[int64]*Position
	processed *processedSet
	stats     SessionStats
	log       zerolog.Logger
	now       func() time.Time
}

func NewBook(log zerolog.Logger) *Book {
	return &Book{
		positions: make(map[int64]*Position),
		processed: newProcessedSet(ProcessedCapacity),
		log:       log.With().Str("component", "positions").Logger(),
		now:       time.Now,
	}
}

// WithClock swaps the time source.
func (b *Book) WithClock(now func() time.Time) *Book {
	b.now = now
	return b
}

// Open records a bought contract with SL/TP placed around the signal price.
// A contract whose settlement was already processed is not recorded and
// Open returns false.
func (b *Book) Open(o Open) (Position, bool) {
	opened := b.now()
	if o.Receipt.StartTime > 0 {
		opened = time.Unix(o.Receipt.StartTime, 0).UTC()
	}
	p := &Position{
		ID:           uuid.NewString(),
		ContractID:   o.Receipt.ContractID,
		Symbol:       o.Symbol,
		Side:         o.Side,
		ContractType: o.ContractType,
		Strategy:     o.Strategy,
		Stake:        o.Receipt.BuyPrice,
		EntryPrice:   o.Price,
		CurrentPrice: o.Price,
		SLDistance:   o.SLDistance,
		TPDistance:   o.TPDistance,
		Status:       StatusOpen,
		ScalperExit:  o.ScalperExit,
		EntryState:   o.EntryState,
		OpenedAt:     opened,
	}
	p.StopLoss, p.TakeProfit = stops(o.Side, o.Price, o.SLDistance, o.TPDistance)

	b.mu.Lock()
	if b.processed.has(p.ContractID) {
		b.mu.Unlock()
		b.log.Info().Int64("contract_id", p.ContractID).Str("symbol", p.Symbol).Msg("contract already settled, not opened")
		return *p, false
	}
	b.positions[p.ContractID] = p
	b.mu.Unlock()

	b.log.Info().
		Int64("contract_id", p.ContractID).
		Str("symbol", p.Symbol).
		Str("side", string(p.Side)).
		Float64("entry", p.EntryPrice).
		Float64("sl", p.StopLoss).
		Float64("tp", p.TakeProfit).
		Msg("position opened")
	return *p, true
}

func stops(side market.Side, entry, sl, tp float64) (float64, float64) {
	if sl <= 0 || tp <= 0 {
		return 0, 0
	}
	if side == market.Sell {
		return entry + sl, entry - tp
	}
	return entry - sl, entry + tp
}

// Reconcile applies a contract update. Unknown open contracts are adopted.
// A terminal update returns its settlement once; replays return false.
func (b *Book) Reconcile(c deriv.OpenContract) (Settlement, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.processed.has(c.ContractID) {
		return Settlement{}, false
	}
	p, ok := b.positions[c.ContractID]
	if !ok {
		p = b.adopt(c.ContractID, c.Symbol, c.ContractType, c.BuyPrice, c.DateStart)
		p.EntryPrice = c.EntrySpot
		if c.Settled() {
			delete(b.positions, c.ContractID)
		}
	}

	if c.EntrySpot > 0 && !p.Confirmed {
		p.Confirmed = true
		if p.EntryPrice != c.EntrySpot && p.HasStops() && !p.Breakeven && !p.Trailing {
			p.EntryPrice = c.EntrySpot
			p.StopLoss, p.TakeProfit = stops(p.Side, p.EntryPrice, p.SLDistance, p.TPDistance)
		} else if p.EntryPrice == 0 {
			p.EntryPrice = c.EntrySpot
		}
	}
	if c.CurrentSpot > 0 {
		p.CurrentPrice = c.CurrentSpot
	}
	p.Profit = c.Profit

	if !c.Settled() {
		return Settlement{}, false
	}
	return b.settleLocked(p, c), true
}

func (b *Book) settleLocked(p *Position, c deriv.OpenContract) Settlement {
	delete(b.positions, p.ContractID)
	b.processed.add(p.ContractID)

	won := c.Status == "won" || (c.Status != "lost" && c.Profit > 0)
	exit := c.ExitSpot
	if exit == 0 {
		exit = p.CurrentPrice
	}
	s := Settlement{
		Position:  *p,
		Status:    c.Status,
		Profit:    c.Profit,
		Won:       won,
		ExitPrice: exit,
		ClosedAt:  b.now(),
	}
	if s.Status == "" {
		s.Status = "expired"
	}

	b.stats.Trades++
	b.stats.PnL += c.Profit
	if won {
		b.stats.Wins++
	} else {
		b.stats.Losses++
	}

	b.log.Info().
		Int64("contract_id", p.ContractID).
		Str("symbol", p.Symbol).
		Str("status", s.Status).
		Float64("profit", c.Profit).
		Float64("session_pnl", b.stats.PnL).
		Msg("position settled")
	return s
}

// Adopt registers portfolio contracts this process did not open. It returns
// how many were new.
func (b *Book) Adopt(contracts []deriv.PortfolioContract) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range contracts {
		if _, ok := b.positions[c.ContractID]; ok || b.processed.has(c.ContractID) {
			continue
		}
		b.adopt(c.ContractID, c.Symbol, c.ContractType, c.BuyPrice, c.PurchaseTime)
		n++
	}
	return n
}

func (b *Book) adopt(id int64, symbol, contractType string, stake float64, start int64) *Position {
	opened := b.now()
	if start > 0 {
		opened = time.Unix(start, 0).UTC()
	}
	p := &Position{
		ID:           uuid.NewString(),
		ContractID:   id,
		Symbol:       symbol,
		Side:         market.SideOf(contractType),
		ContractType: contractType,
		Stake:        stake,
		Status:       StatusOpen,
		Adopted:      true,
		OpenedAt:     opened,
	}
	b.positions[id] = p
	b.log.Info().Int64("contract_id", id).Str("symbol", symbol).Str("contract_type", contractType).Msg("contract adopted")
	return p
}

// Mark records the latest price for a position.
func (b *Book) Mark(contractID int64, price float64) {
	b.mu.Lock()
	if p, ok := b.positions[contractID]; ok {
		p.CurrentPrice = price
	}
	b.mu.Unlock()
}

// MoveStop tightens the stop loss. Loosening moves are ignored, so a BUY
// stop only rises and a SELL stop only falls. It reports whether the stop
// changed.
func (b *Book) MoveStop(contractID int64, sl float64, breakeven, trailing bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[contractID]
	if !ok {
		return false
	}
	tighter := sl > p.StopLoss
	if p.Side == market.Sell {
		tighter = sl < p.StopLoss
	}
	if !tighter {
		return false
	}
	p.StopLoss = sl
	p.Breakeven = p.Breakeven || breakeven
	p.Trailing = p.Trailing || trailing
	return true
}

// MarkClosing flags a position as being sold. It returns false when the
// position is unknown or already closing.
func (b *Book) MarkClosing(contractID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[contractID]
	if !ok || p.Status == StatusClosing {
		return false
	}
	p.Status = StatusClosing
	return true
}

// ReopenClosing returns a position whose sell failed to monitoring.
func (b *Book) ReopenClosing(contractID int64) {
	b.mu.Lock()
	if p, ok := b.positions[contractID]; ok {
		p.Status = StatusOpen
	}
	b.mu.Unlock()
}

// Drop removes a position without settling it.
func (b *Book) Drop(contractID int64) {
	b.mu.Lock()
	delete(b.positions, contractID)
	b.mu.Unlock()
}

// Get returns a copy of one position.
func (b *Book) Get(contractID int64) (Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[contractID]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// ForSymbol returns copies of the positions on symbol.
func (b *Book) ForSymbol(symbol string) []Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Position
	for _, p := range b.positions {
		if p.Symbol == symbol {
			out = append(out, *p)
		}
	}
	sortByOpen(out)
	return out
}

// All returns copies of every position, oldest first.
func (b *Book) All() []Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	sortByOpen(out)
	return out
}

// Count is the number of tracked positions.
func (b *Book) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// Stats returns the session counters.
func (b *Book) Stats() SessionStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

func sortByOpen(ps []Position) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].OpenedAt.Equal(ps[j].OpenedAt) {
			return ps[i].ContractID < ps[j].ContractID
		}
		return ps[i].OpenedAt.Before(ps[j].OpenedAt)
	})
}
