package position

import (
	"time"

	"deriv-core/internal/market"
)

// Status is the local lifecycle of a contract.
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosing Status = "closing"
)

// Position is an open contract with its locally enforced stops. Adopted
// positions were found on the account rather than opened by this process and
// carry no stops.
type Position struct {
	ID           string      `json:"id"`
	ContractID   int64       `json:"contract_id"`
	Symbol       string      `json:"symbol"`
	Side         market.Side `json:"side"`
	ContractType string      `json:"contract_type"`
	Strategy     string      `json:"strategy,omitempty"`
	Stake        float64     `json:"stake"`
	EntryPrice   float64     `json:"entry_price"`
	CurrentPrice float64     `json:"current_price"`
	StopLoss     float64     `json:"stop_loss"`
	TakeProfit   float64     `json:"take_profit"`
	SLDistance   float64     `json:"sl_distance"`
	TPDistance   float64     `json:"tp_distance"`
	Breakeven    bool        `json:"breakeven"`
	Trailing     bool        `json:"trailing"`
	Profit       float64     `json:"profit"`
	Status       Status      `json:"status"`
	Adopted      bool        `json:"adopted"`
	Confirmed    bool        `json:"confirmed"`
	ScalperExit  bool        `json:"scalper_exit"`
	EntryState   string      `json:"entry_state,omitempty"`
	OpenedAt     time.Time   `json:"opened_at"`
}

// HasStops reports whether SL/TP are enforced locally.
func (p Position) HasStops() bool { return p.StopLoss > 0 && p.TakeProfit > 0 }

// Favorable is the signed price move in the position's direction.
func (p Position) Favorable(price float64) float64 {
	if p.Side == market.Sell {
		return p.EntryPrice - price
	}
	return price - p.EntryPrice
}

// Settlement is produced exactly once per contract.
type Settlement struct {
	Position  Position  `json:"position"`
	Status    string    `json:"status"`
	Profit    float64   `json:"profit"`
	Won       bool      `json:"won"`
	ExitPrice float64   `json:"exit_price"`
	ClosedAt  time.Time `json:"closed_at"`
}

// SessionStats accumulates settled results since start.
type SessionStats struct {
	PnL    float64 `json:"pnl"`
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
}

// WinRate in percent.
func (s SessionStats) WinRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades) * 100
}
