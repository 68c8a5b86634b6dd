package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deriv-core/pkg/deriv"
)

// PaperPayout is the profit ratio a winning paper option pays on its stake.
const PaperPayout = 0.95

type paperQuote struct {
	params deriv.ProposalParams
	spot   float64
}

type paperContract struct {
	id     int64
	params deriv.ProposalParams
	entry  float64
	spot   float64
	ticks  int
	start  time.Time
}

// Paper is an in-memory broker for dry runs. It prices contracts off the
// ticks it is fed and reports contract updates the same way the live stream
// does.
type Paper struct {
	mu        sync.Mutex
	log       zerolog.Logger
	nextID    int64
	balance   float64
	currency  string
	prices    map[string]float64
	quotes    map[string]paperQuote
	contracts map[int64]*paperContract
	onUpdate  func(deriv.OpenContract)
	onBalance func(deriv.Balance)
	now       func() time.Time
}

func NewPaper(balance float64, currency string, log zerolog.Logger) *Paper {
	return &Paper{
		log:       log.With().Str("component", "paper_broker").Logger(),
		nextID:    1000,
		balance:   balance,
		currency:  currency,
		prices:    make(map[string]float64),
		quotes:    make(map[string]paperQuote),
		contracts: make(map[int64]*paperContract),
		now:       time.Now,
	}
}

// OnUpdate registers the contract update callback.
func (p *Paper) OnUpdate(fn func(deriv.OpenContract)) {
	p.mu.Lock()
	p.onUpdate = fn
	p.mu.Unlock()
}

// OnBalance registers the balance callback.
func (p *Paper) OnBalance(fn func(deriv.Balance)) {
	p.mu.Lock()
	p.onBalance = fn
	p.mu.Unlock()
}

// Balance returns the paper account balance.
func (p *Paper) Balance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

// Tick marks every open contract on symbol to price and expires tick
// duration options.
func (p *Paper) Tick(symbol string, price float64) {
	p.mu.Lock()
	p.prices[symbol] = price
	var updates []deriv.OpenContract
	settled := false
	for id, c := range p.contracts {
		if c.params.Symbol != symbol {
			continue
		}
		c.spot = price
		c.ticks++
		status, profit := p.mark(c, false)
		if status != "open" {
			delete(p.contracts, id)
			p.balance += c.params.Amount + profit
			settled = true
		}
		updates = append(updates, p.snapshot(c, status, profit))
	}
	bal := deriv.Balance{Balance: p.balance, Currency: p.currency}
	onUpdate, onBalance := p.onUpdate, p.onBalance
	p.mu.Unlock()

	p.emit(onUpdate, updates)
	if settled && onBalance != nil {
		onBalance(bal)
	}
}

func (p *Paper) ContractsFor(_ context.Context, symbol string) ([]deriv.ContractSpec, error) {
	return []deriv.ContractSpec{
		{ContractType: "CALL", ContractCategory: "callput", MinStake: 0.35, MaxStake: 5000},
		{ContractType: "PUT", ContractCategory: "callput", MinStake: 0.35, MaxStake: 5000},
		{ContractType: "MULTUP", ContractCategory: "multiplier", MinStake: 1, MaxStake: 2000, Multipliers: []float64{20, 40, 60, 100, 200}},
		{ContractType: "MULTDOWN", ContractCategory: "multiplier", MinStake: 1, MaxStake: 2000, Multipliers: []float64{20, 40, 60, 100, 200}},
	}, nil
}

func (p *Paper) Proposal(_ context.Context, params deriv.ProposalParams) (deriv.Quote, *deriv.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	spot, ok := p.prices[params.Symbol]
	if !ok {
		return deriv.Quote{}, nil, &deriv.APIError{Code: "MarketIsClosed", Message: fmt.Sprintf("no price for %s", params.Symbol)}
	}
	id := uuid.NewString()
	p.quotes[id] = paperQuote{params: params, spot: spot}
	return deriv.Quote{ID: id, AskPrice: params.Amount, Payout: params.Amount * (1 + PaperPayout), Spot: spot}, nil, nil
}

func (p *Paper) Buy(_ context.Context, proposalID string, price float64) (deriv.BuyReceipt, *deriv.Response, error) {
	p.mu.Lock()
	q, ok := p.quotes[proposalID]
	if !ok {
		p.mu.Unlock()
		return deriv.BuyReceipt{}, nil, &deriv.APIError{Code: "InvalidContractProposal", Message: "unknown proposal"}
	}
	delete(p.quotes, proposalID)
	if q.params.Amount > price {
		p.mu.Unlock()
		return deriv.BuyReceipt{}, nil, &deriv.APIError{Code: "PriceMoved", Message: "ask above price ceiling"}
	}
	if q.params.Amount > p.balance {
		p.mu.Unlock()
		return deriv.BuyReceipt{}, nil, &deriv.APIError{Code: "InsufficientBalance", Message: "insufficient balance"}
	}
	p.nextID++
	c := &paperContract{id: p.nextID, params: q.params, entry: q.spot, spot: q.spot, start: p.now()}
	p.contracts[c.id] = c
	p.balance -= q.params.Amount
	receipt := deriv.BuyReceipt{
		ContractID:    c.id,
		TransactionID: c.id * 10,
		BuyPrice:      q.params.Amount,
		BalanceAfter:  p.balance,
		StartTime:     c.start.Unix(),
		Longcode:      fmt.Sprintf("paper %s on %s", q.params.ContractType, q.params.Symbol),
	}
	p.mu.Unlock()
	p.log.Debug().Int64("contract_id", c.id).Str("symbol", q.params.Symbol).Float64("entry", q.spot).Msg("paper contract opened")
	return receipt, nil, nil
}

func (p *Paper) Sell(_ context.Context, contractID int64) (deriv.SellReceipt, *deriv.Response, error) {
	p.mu.Lock()
	c, ok := p.contracts[contractID]
	if !ok {
		p.mu.Unlock()
		return deriv.SellReceipt{}, nil, &deriv.APIError{Code: "InvalidSellContractProposal", Message: "contract not open"}
	}
	_, profit := p.mark(c, true)
	delete(p.contracts, contractID)
	soldFor := c.params.Amount + profit
	p.balance += soldFor
	update := p.snapshot(c, "sold", profit)
	receipt := deriv.SellReceipt{ContractID: contractID, TransactionID: contractID*10 + 1, SoldFor: soldFor, BalanceAfter: p.balance}
	bal := deriv.Balance{Balance: p.balance, Currency: p.currency}
	onUpdate, onBalance := p.onUpdate, p.onBalance
	p.mu.Unlock()

	p.emit(onUpdate, []deriv.OpenContract{update})
	if onBalance != nil {
		onBalance(bal)
	}
	return receipt, nil, nil
}

// mark prices c at its current spot. Options pay out at expiry; an early
// sale returns half the outcome. Multipliers are stopped out at the stake or
// at their limit order amounts.
func (p *Paper) mark(c *paperContract, selling bool) (string, float64) {
	up := c.spot > c.entry
	down := c.spot < c.entry
	ct := strings.ToUpper(c.params.ContractType)

	if deriv.IsMultiplier(ct) {
		move := (c.spot - c.entry) / c.entry
		if ct == "MULTDOWN" {
			move = -move
		}
		profit := c.params.Amount * float64(c.params.Multiplier) * move
		switch {
		case profit <= -c.params.Amount:
			return "lost", -c.params.Amount
		case c.params.StopLoss > 0 && profit <= -c.params.StopLoss:
			return "lost", profit
		case c.params.TakeProfit > 0 && profit >= c.params.TakeProfit:
			return "won", profit
		}
		return "open", profit
	}

	favourable := (ct == "CALL" && up) || (ct == "PUT" && down)
	expired := c.params.DurationUnit == "t" && c.ticks >= c.params.Duration
	switch {
	case selling && favourable:
		return "sold", c.params.Amount * PaperPayout / 2
	case selling:
		return "sold", -c.params.Amount / 2
	case expired && favourable:
		return "won", c.params.Amount * PaperPayout
	case expired:
		return "lost", -c.params.Amount
	case favourable:
		return "open", c.params.Amount * PaperPayout
	default:
		return "open", -c.params.Amount
	}
}

func (p *Paper) snapshot(c *paperContract, status string, profit float64) deriv.OpenContract {
	oc := deriv.OpenContract{
		ContractID:   c.id,
		Symbol:       c.params.Symbol,
		ContractType: c.params.ContractType,
		BuyPrice:     c.params.Amount,
		EntrySpot:    c.entry,
		CurrentSpot:  c.spot,
		Profit:       profit,
		Status:       status,
		DateStart:    c.start.Unix(),
	}
	if status != "open" {
		oc.ExitSpot = c.spot
		oc.SellPrice = c.params.Amount + profit
		oc.IsSold = true
	}
	return oc
}

func (p *Paper) emit(fn func(deriv.OpenContract), updates []deriv.OpenContract) {
	if fn == nil {
		return
	}
	for _, u := range updates {
		fn(u)
	}
}
