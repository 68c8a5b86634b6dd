package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"deriv-core/internal/api"
	"deriv-core/internal/engine"
	"deriv-core/internal/events"
	"deriv-core/internal/execution"
	"deriv-core/internal/market"
	"deriv-core/internal/monitor"
	"deriv-core/internal/persistence"
	"deriv-core/internal/position"
	"deriv-core/internal/safety"
	"deriv-core/internal/strategy"
	"deriv-core/pkg/config"
	"deriv-core/pkg/db"
	"deriv-core/pkg/deriv"
	"deriv-core/pkg/logger"
)

var buildVersion = "dev"

type runOptions struct {
	symbols      string
	settings     string
	dryRun       bool
	paper        bool
	offline      bool
	paperBalance float64
}

// apply lets flags override the environment.
func (o runOptions) apply(cfg *config.Config) {
	if o.symbols != "" {
		cfg.Symbols = config.SplitSymbols(o.symbols)
	}
	if o.settings != "" {
		cfg.SettingsPath = o.settings
	}
	if o.dryRun {
		cfg.ExecutionEnabled = false
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "deriv-core",
		Short:        "Automated trading engine for Deriv synthetic and forex markets",
		SilenceUsage: true,
		Version:      buildVersion,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the broker and trade the configured symbols",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.offline && !opts.paper {
				return errors.New("--offline needs --paper")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, os.Stdout)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.symbols, "symbols", "", "comma separated symbols (overrides DERIV_SYMBOLS)")
	f.StringVar(&opts.settings, "settings", "", "trading settings YAML, reloaded on change (overrides SETTINGS_PATH)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "analyse and report signals without submitting orders")
	f.BoolVar(&opts.paper, "paper", false, "route orders to the in-memory paper broker")
	f.BoolVar(&opts.offline, "offline", false, "with --paper, replace the broker feed by a synthetic random walk")
	f.Float64Var(&opts.paperBalance, "paper-balance", 1000, "starting balance of the paper account")
	return cmd
}

func run(ctx context.Context, opts runOptions, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.apply(cfg)

	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	bus := events.NewBus()
	log := logger.NewWithWriter(zerolog.MultiLevelWriter(out, events.NewLogWriter(bus)), cfg.LogLevel)

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	mirror := persistence.NewBatchWriter(database.DB, 100, time.Second, log)
	defer func() {
		if err := mirror.Close(); err != nil {
			log.Error().Err(err).Msg("flush audit mirror")
		}
	}()
	audit, err := execution.OpenAudit(cfg.AuditLogPath, mirror, log)
	if err != nil {
		return err
	}
	defer audit.Shutdown()

	var overrides map[string]strategy.Config
	if cfg.StrategyProfilesPath != "" {
		if overrides, err = strategy.LoadConfig(cfg.StrategyProfilesPath); err != nil {
			return fmt.Errorf("load strategy profiles: %w", err)
		}
	}

	safetyEngine, closeSafety := safety.Select(ctx, cfg.SafetyEngineAddr, settings, log)
	defer closeSafety()

	metrics := monitor.NewMetrics()

	var (
		broker execution.Broker
		paper  *execution.Paper
		client *deriv.Client
	)
	if opts.paper {
		paper = execution.NewPaper(opts.paperBalance, settings.Currency, log)
		broker = paper
	}
	if !opts.offline {
		client = deriv.NewClient(deriv.Options{
			URL:               cfg.EndpointURL(),
			Token:             cfg.Token,
			Symbols:           cfg.Symbols,
			RequestTimeout:    cfg.RequestTimeout,
			ReconnectDelay:    cfg.ReconnectDelay,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, deriv.Handlers{}, log)
		defer client.Close()
		if broker == nil {
			if client.ReadOnly() && cfg.ExecutionEnabled {
				log.Warn().Msg("DERIV_TOKEN not set: execution disabled")
				cfg.ExecutionEnabled = false
			}
			broker = client
		}
	}

	rt := engine.New(ctx, engine.Deps{
		Settings:         settings,
		Broker:           broker,
		Audit:            audit,
		Strategies:       strategy.NewRegistry(overrides),
		Safety:           safetyEngine,
		RiskStore:        database,
		Trades:           database,
		Mirror:           mirror,
		Bus:              bus,
		Metrics:          metrics,
		ExecutionEnabled: cfg.ExecutionEnabled,
		Paper:            paper,
		Log:              log,
	})
	defer rt.Close()

	mon := &monitor.Monitor{Bus: bus, Metrics: metrics, Log: log}
	monDone := mon.Start(ctx)

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}

	if cfg.SettingsPath != "" {
		go func() {
			err := config.Watch(ctx, cfg.SettingsPath, func(s config.Settings) {
				if err := rt.ReplaceSettings(ctx, s); err != nil {
					log.Warn().Err(err).Msg("reloaded settings rejected")
				}
			}, log)
			if err != nil {
				log.Error().Err(err).Msg("settings watcher stopped")
			}
		}()
	}

	if cfg.StrategyProfilesPath != "" {
		go func() {
			err := config.WatchFile(ctx, cfg.StrategyProfilesPath, func() error {
				next, err := strategy.LoadConfig(cfg.StrategyProfilesPath)
				if err != nil {
					return err
				}
				rt.ReloadStrategies(next)
				return nil
			}, log)
			if err != nil {
				log.Error().Err(err).Msg("strategy profile watcher stopped")
			}
		}()
	}

	if client != nil {
		h := rt.Handlers()
		if paper != nil {
			// Account pushes belong to the paper broker.
			h.OnAuthorize, h.OnBalance, h.OnPortfolio, h.OnOpenContract = nil, nil, nil, nil
		}
		client.SetHandlers(h)
		rt.Bind(client)

		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := client.Connect(connectCtx)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded):
			log.Warn().Msg("broker not live yet, still retrying in the background")
		default:
			return fmt.Errorf("connect: %w", err)
		}

		if paper == nil && !client.ReadOnly() {
			rec := position.NewReconciler(client, rt.Book(), cfg.ReconcileInterval, log)
			rec.SetAutoSync(cfg.ReconcileAutoSync)
			rec.Start(ctx)
		}
	} else {
		feed := &market.SyntheticFeed{Symbols: cfg.Symbols, Log: log}
		go feed.Run(ctx, func(symbol string, price float64, ts time.Time) {
			rt.OnTick(deriv.Tick{Symbol: symbol, Quote: price, Epoch: ts.Unix()})
		})
	}

	server := api.NewServer(rt, bus, metrics, api.SystemMeta{
		DryRun:  !cfg.ExecutionEnabled || paper != nil,
		Symbols: cfg.Symbols,
		Version: buildVersion,
	}, log)
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start(cfg.HTTPAddr) }()

	log.Info().
		Strs("symbols", cfg.Symbols).
		Bool("execution", cfg.ExecutionEnabled).
		Bool("paper", paper != nil).
		Str("safety", safetyEngine.Name()).
		Str("mode", mode(cfg, paper != nil, client == nil)).
		Msg("deriv-core running")

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("telemetry server failed")
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("telemetry server shutdown")
	}
	stats := rt.Book().Stats()
	log.Info().
		Int("trades", stats.Trades).
		Int("wins", stats.Wins).
		Int("losses", stats.Losses).
		Float64("pnl", stats.PnL).
		Int("open_positions", rt.Book().Count()).
		Msg("session summary")
	cancelRun()
	<-monDone
	return nil
}

func mode(cfg *config.Config, paper, offline bool) string {
	var parts []string
	switch {
	case offline:
		parts = append(parts, "offline")
	case cfg.Token == "":
		parts = append(parts, "read-only")
	default:
		parts = append(parts, "live")
	}
	if paper {
		parts = append(parts, "paper")
	}
	if !cfg.ExecutionEnabled {
		parts = append(parts, "dry-run")
	}
	return strings.Join(parts, "+")
}
