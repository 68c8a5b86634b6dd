package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"deriv-core/pkg/config"
	"deriv-core/pkg/deriv"
	"deriv-core/pkg/logger"
)

// This script connects to Deriv, authorizes when DERIV_TOKEN is set and
// prints the contracts_for limits of every configured symbol: the values the
// execution gateway clamps stakes against.
//
// Usage:
//   go run ./scripts/contracts_check
//   DERIV_SYMBOLS=BOOM1000,frxEURUSD go run ./scripts/contracts_check

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := deriv.NewClient(deriv.Options{
		URL:               cfg.EndpointURL(),
		Token:             cfg.Token,
		RequestTimeout:    cfg.RequestTimeout,
		ReconnectDelay:    cfg.ReconnectDelay,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, deriv.Handlers{}, log)
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	if auth, ok := client.Authorization(); ok {
		log.Info().Str("loginid", auth.LoginID).Str("currency", auth.Currency).Float64("balance", auth.Balance).Msg("authorized")
	} else {
		log.Info().Msg("no DERIV_TOKEN, running unauthenticated")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tCONTRACT\tCATEGORY\tMIN STAKE\tMAX STAKE\tMULTIPLIERS")
	failed := 0
	for _, sym := range cfg.Symbols {
		specs, err := client.ContractsFor(ctx, strings.ToUpper(sym))
		if err != nil {
			log.Error().Err(err).Str("symbol", sym).Msg("contracts_for failed")
			failed++
			continue
		}
		for _, s := range specs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%v\n", sym, s.ContractType, s.ContractCategory, s.MinStake, s.MaxStake, s.Multipliers)
		}
	}
	_ = w.Flush()
	if failed > 0 {
		os.Exit(1)
	}
}
