package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deriv-core/internal/market"
	"deriv-core/pkg/config"
	"deriv-core/pkg/db"
)

// Store persists the per-day risk counters. *db.Database implements it.
type Store interface {
	UpsertRiskState(ctx context.Context, s db.RiskState) error
	GetRiskState(ctx context.Context, date string) (db.RiskState, error)
}

// Config holds the guard limits.
type Config struct {
	MaxDailyLossPct float64 `json:"max_daily_loss_pct"`
	MaxSLHits       int     `json:"max_sl_hits"`
	MaxActiveTrades int     `json:"max_active_trades"`
}

// DefaultConfig returns the shipped limits.
func DefaultConfig() Config {
	return Config{MaxDailyLossPct: 5, MaxSLHits: 3, MaxActiveTrades: 5}
}

// ConfigFrom extracts the guard limits from trading settings.
func ConfigFrom(s config.Settings) Config {
	return Config{MaxDailyLossPct: s.MaxDailyLossPct, MaxSLHits: s.MaxSLHits, MaxActiveTrades: s.MaxActiveTrades}
}

// Check is the account snapshot a trade is evaluated against.
type Check struct {
	Balance      float64
	StartBalance float64
	ActiveTrades int
	Volatility   market.Volatility
	Connected    bool
}

// Decision is the guard verdict.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

const lossStreak = 2

// Guard blocks trading on lost connectivity, daily drawdown, repeated stop
// losses, loss streaks and too many open contracts. Counters reset daily.
type Guard struct {
	mu     sync.Mutex
	cfg    Config
	store  Store
	log    zerolog.Logger
	now    func() time.Time
	state  db.RiskState
	volLog time.Time
}

// NewGuard builds a guard. store may be nil for an in-memory guard.
func NewGuard(cfg Config, store Store, log zerolog.Logger) *Guard {
	g := &Guard{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "risk_guard").Logger(),
		now:   time.Now,
	}
	g.state.Date = g.today()
	return g
}

// WithClock swaps the time source.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.mu.Lock()
	g.now = now
	g.state.Date = g.today()
	g.mu.Unlock()
	return g
}

// UpdateParams applies new limits.
func (g *Guard) UpdateParams(cfg Config) {
	g.mu.Lock()
	g.cfg = cfg
	g.mu.Unlock()
	g.log.Info().
		Float64("max_daily_loss_pct", cfg.MaxDailyLossPct).
		Int("max_sl_hits", cfg.MaxSLHits).
		Int("max_active_trades", cfg.MaxActiveTrades).
		Msg("risk parameters updated")
}

// Params returns the current limits.
func (g *Guard) Params() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// Check evaluates the rules in order and returns the first failure.
func (g *Guard) Check(c Check) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()

	if !c.Connected {
		return Decision{Reason: "broker connection unstable"}
	}
	loss := c.StartBalance - c.Balance
	maxLoss := c.StartBalance * g.cfg.MaxDailyLossPct / 100
	if c.StartBalance > 0 && loss >= maxLoss {
		g.log.Warn().
			Float64("start_balance", c.StartBalance).
			Float64("balance", c.Balance).
			Float64("max_loss", maxLoss).
			Msg("daily loss limit hit")
		return Decision{Reason: fmt.Sprintf("daily loss limit hit (-%.2f)", loss)}
	}
	if g.state.SLHits >= g.cfg.MaxSLHits {
		return Decision{Reason: fmt.Sprintf("max SL hits reached (%d)", g.state.SLHits)}
	}
	if c.Volatility == market.VolExtreme && g.now().Sub(g.volLog) > time.Minute {
		g.log.Warn().Msg("extreme volatility, proceeding with caution")
		g.volLog = g.now()
	}
	if g.state.ConsecutiveLosses >= lossStreak {
		return Decision{Reason: fmt.Sprintf("%d consecutive losses, cooldown required", g.state.ConsecutiveLosses)}
	}
	if c.ActiveTrades >= g.cfg.MaxActiveTrades {
		return Decision{Reason: fmt.Sprintf("max active trades reached (%d)", c.ActiveTrades)}
	}
	return Decision{Allowed: true, Reason: "OK"}
}

// RecordResult books a settled contract. Every loss counts as an SL hit.
func (g *Guard) RecordResult(ctx context.Context, won bool, profit float64) error {
	g.mu.Lock()
	g.rollover()
	g.state.Trades++
	g.state.DailyPnL += profit
	if won {
		g.state.Wins++
		g.state.ConsecutiveLosses = 0
	} else {
		g.state.Losses++
		g.state.SLHits++
		g.state.ConsecutiveLosses++
	}
	snap := g.state
	g.mu.Unlock()
	return g.persist(ctx, snap)
}

// SetStartBalance stores the start-of-day balance alongside the counters.
func (g *Guard) SetStartBalance(ctx context.Context, balance float64) error {
	g.mu.Lock()
	g.rollover()
	g.state.StartBalance = balance
	snap := g.state
	g.mu.Unlock()
	return g.persist(ctx, snap)
}

// Restore loads today's counters from the store.
func (g *Guard) Restore(ctx context.Context) (db.RiskState, error) {
	g.mu.Lock()
	date := g.today()
	g.mu.Unlock()
	if g.store == nil {
		return db.RiskState{Date: date}, nil
	}
	s, err := g.store.GetRiskState(ctx, date)
	if errors.Is(err, db.ErrNotFound) {
		return db.RiskState{Date: date}, nil
	}
	if err != nil {
		return db.RiskState{}, fmt.Errorf("restore risk state: %w", err)
	}
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
	g.log.Info().Str("date", date).Int("sl_hits", s.SLHits).Int("consecutive_losses", s.ConsecutiveLosses).Msg("risk state restored")
	return s, nil
}

// State returns a copy of today's counters.
func (g *Guard) State() db.RiskState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()
	return g.state
}

// ConsecutiveLosses is the current loss streak.
func (g *Guard) ConsecutiveLosses() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.ConsecutiveLosses
}

func (g *Guard) rollover() {
	today := g.today()
	if today == g.state.Date {
		return
	}
	g.log.Info().Str("previous", g.state.Date).Float64("daily_pnl", g.state.DailyPnL).Msg("risk counters reset for new day")
	g.state = db.RiskState{Date: today}
}

func (g *Guard) today() string {
	return g.now().UTC().Format("2006-01-02")
}

func (g *Guard) persist(ctx context.Context, s db.RiskState) error {
	if g.store == nil {
		return nil
	}
	if err := g.store.UpsertRiskState(ctx, s); err != nil {
		return fmt.Errorf("persist risk state: %w", err)
	}
	return nil
}
