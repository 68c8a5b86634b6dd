// Package safety is the last approval step before an order reaches the
// gateway. The in-process engine is always available; a native co-engine
// can be reached over gRPC and is used when it answers at startup.
package safety

import (
	"context"
	"errors"
	"time"

	"deriv-core/pkg/config"
)

var ErrNotInitialized = errors.New("safety engine not initialized")

// Tick is one price update forwarded to the engine.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// Verdict is the engine's view of a tick.
type Verdict struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// TradeParams describe an order about to be submitted.
type TradeParams struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Stake      float64 `json:"stake"`
	Confidence float64 `json:"confidence"`
	OpenTrades int     `json:"open_trades"`
}

// Approval is the answer to ExecuteTrade.
type Approval struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// State is a point-in-time engine report.
type State struct {
	Engine        string  `json:"engine"`
	Running       bool    `json:"running"`
	Ticks         int64   `json:"ticks"`
	Trades        int64   `json:"trades"`
	Approved      int64   `json:"approved"`
	Rejected      int64   `json:"rejected"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Engine is the safety capability. Implementations must be safe for
// concurrent use.
type Engine interface {
	Name() string
	Init(ctx context.Context, s config.Settings) error
	ProcessTick(ctx context.Context, t Tick) (Verdict, error)
	ExecuteTrade(ctx context.Context, p TradeParams) (Approval, error)
	State(ctx context.Context) (State, error)
}
