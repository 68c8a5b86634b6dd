package risk

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"deriv-core/internal/market"
	"deriv-core/pkg/db"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestGuard(cfg Config) (*Guard, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)}
	return NewGuard(cfg, nil, zerolog.Nop()).WithClock(clk.now), clk
}

func healthy() Check {
	return Check{Balance: 1000, StartBalance: 1000, Volatility: market.VolNormal, Connected: true}
}

func TestGuardCheck(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Check)
		allowed bool
	}{
		{name: "healthy", mutate: func(*Check) {}, allowed: true},
		{name: "disconnected", mutate: func(c *Check) { c.Connected = false }},
		{name: "loss at limit", mutate: func(c *Check) { c.Balance = 950 }},
		{name: "loss below limit", mutate: func(c *Check) { c.Balance = 951 }, allowed: true},
		{name: "active at max", mutate: func(c *Check) { c.ActiveTrades = 5 }},
		{name: "active below max", mutate: func(c *Check) { c.ActiveTrades = 4 }, allowed: true},
		{name: "extreme volatility only logs", mutate: func(c *Check) { c.Volatility = market.VolExtreme }, allowed: true},
		{name: "unknown start balance", mutate: func(c *Check) { c.StartBalance = 0; c.Balance = 10 }, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGuard(DefaultConfig())
			c := healthy()
			tt.mutate(&c)
			d := g.Check(c)
			if d.Allowed != tt.allowed {
				t.Fatalf("Allowed=%v (%s), expected %v", d.Allowed, d.Reason, tt.allowed)
			}
			if !d.Allowed && d.Reason == "" {
				t.Fatalf("blocked without a reason")
			}
		})
	}
}

func TestGuardLossStreakAndDailyReset(t *testing.T) {
	ctx := context.Background()
	g, clk := newTestGuard(DefaultConfig())

	if err := g.RecordResult(ctx, false, -1); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if d := g.Check(healthy()); !d.Allowed {
		t.Fatalf("single loss blocked: %s", d.Reason)
	}
	_ = g.RecordResult(ctx, false, -1)
	if d := g.Check(healthy()); d.Allowed {
		t.Fatalf("two consecutive losses allowed")
	}
	if got := g.ConsecutiveLosses(); got != 2 {
		t.Fatalf("ConsecutiveLosses=%d, expected 2", got)
	}

	clk.t = clk.t.Add(24 * time.Hour)
	if d := g.Check(healthy()); !d.Allowed {
		t.Fatalf("still blocked after day rollover: %s", d.Reason)
	}
	st := g.State()
	if st.Date != "2026-01-03" || st.SLHits != 0 || st.Trades != 0 {
		t.Fatalf("state not reset: %+v", st)
	}
}

func TestGuardSLHits(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGuard(DefaultConfig())

	for _, won := range []bool{false, true, false, true, false} {
		_ = g.RecordResult(ctx, won, 0)
	}
	st := g.State()
	if st.SLHits != 3 || st.ConsecutiveLosses != 1 || st.Wins != 2 || st.Losses != 3 {
		t.Fatalf("unexpected counters: %+v", st)
	}
	if d := g.Check(healthy()); d.Allowed {
		t.Fatalf("max SL hits not enforced")
	}

	g.UpdateParams(Config{MaxDailyLossPct: 5, MaxSLHits: 4, MaxActiveTrades: 5})
	if d := g.Check(healthy()); !d.Allowed {
		t.Fatalf("raised SL limit still blocks: %s", d.Reason)
	}
}

func TestGuardPersistsToSQLite(t *testing.T) {
	ctx := context.Background()
	database, err := db.New(filepath.Join(t.TempDir(), "risk.db"))
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	clk := &fakeClock{t: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)}
	g := NewGuard(DefaultConfig(), database, zerolog.Nop()).WithClock(clk.now)
	if err := g.SetStartBalance(ctx, 1000); err != nil {
		t.Fatalf("SetStartBalance: %v", err)
	}
	if err := g.RecordResult(ctx, false, -2.5); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}

	restored := NewGuard(DefaultConfig(), database, zerolog.Nop()).WithClock(clk.now)
	st, err := restored.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if st.StartBalance != 1000 || st.SLHits != 1 || st.DailyPnL != -2.5 || st.ConsecutiveLosses != 1 {
		t.Fatalf("restored state=%+v", st)
	}

	clk.t = clk.t.Add(24 * time.Hour)
	fresh, err := restored.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore next day: %v", err)
	}
	if fresh.SLHits != 0 || fresh.Date != "2026-01-03" {
		t.Fatalf("next day state=%+v", fresh)
	}
}
