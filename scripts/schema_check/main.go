package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"deriv-core/pkg/config"
	"deriv-core/pkg/db"
)

// This script opens DB_PATH, applies migrations and reports the tables the
// trading core writes to, with row counts and today's risk counters.
//
// Usage:
//   go run ./scripts/schema_check

var tables = []string{"audit_log", "trade_results", "risk_state"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fail("load config: %v", err)
	}
	fmt.Printf("Verifying database at: %s\n", cfg.DBPath)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		fail("open DB: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		fail("migrations: %v", err)
	}

	missing := 0
	for _, name := range tables {
		var found string
		err := database.DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&found)
		if err != nil {
			fmt.Printf("MISSING %s (%v)\n", name, err)
			missing++
			continue
		}
		var n int
		if err := database.DB.QueryRow("SELECT COUNT(*) FROM " + name).Scan(&n); err != nil {
			fail("count %s: %v", name, err)
		}
		fmt.Printf("ok      %-14s %d rows\n", name, n)
	}

	today := time.Now().UTC().Format("2006-01-02")
	st, err := database.GetRiskState(context.Background(), today)
	switch {
	case err == nil:
		fmt.Printf("\nrisk %s: start=%.2f pnl=%+.2f trades=%d wins=%d losses=%d sl_hits=%d streak=%d\n",
			st.Date, st.StartBalance, st.DailyPnL, st.Trades, st.Wins, st.Losses, st.SLHits, st.ConsecutiveLosses)
	case errors.Is(err, db.ErrNotFound):
		fmt.Printf("\nno risk state for %s\n", today)
	default:
		fail("risk state: %v", err)
	}
	if missing > 0 {
		os.Exit(1)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
