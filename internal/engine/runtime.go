package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deriv-core/internal/balance"
	"deriv-core/internal/events"
	"deriv-core/internal/execution"
	"deriv-core/internal/exit"
	"deriv-core/internal/monitor"
	"deriv-core/internal/persistence"
	"deriv-core/internal/position"
	"deriv-core/internal/processor"
	"deriv-core/internal/risk"
	"deriv-core/internal/safety"
	"deriv-core/internal/strategy"
	"deriv-core/pkg/config"
	"deriv-core/pkg/db"
	"deriv-core/pkg/deriv"
)

// Connector reports the broker connection state. *deriv.Client
// implements it.
type Connector interface {
	State() deriv.State
}

// MirrorStats reports audit mirror health. *persistence.BatchWriter
// implements it.
type MirrorStats interface {
	Stats() persistence.Stats
}

// TradeStore records settled contracts. *db.Database implements it.
type TradeStore interface {
	InsertTradeResult(ctx context.Context, t db.TradeResult) error
}

// Deps are the collaborators a Runtime is built from. Only Broker and
// Settings are required.
type Deps struct {
	Settings         config.Settings
	Broker           execution.Broker
	Audit            *execution.AuditLog
	Strategies       *strategy.Registry
	Safety           safety.Engine
	RiskStore        risk.Store
	Trades           TradeStore
	Mirror           MirrorStats
	Bus              *events.Bus
	Metrics          *monitor.Metrics
	ExecutionEnabled bool
	// Paper, when set, is marked to market on every tick.
	Paper   *execution.Paper
	Mailbox int
	Log     zerolog.Logger
	Clock   func() time.Time
}

// Runtime wires connector pushes into the per-symbol pipeline and keeps the
// account level state: balance, risk counters, cooldown and positions.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
	now    func() time.Time

	bus        *events.Bus
	metrics    *monitor.Metrics
	gateway    *execution.Gateway
	strategies *strategy.Registry
	safety     safety.Engine
	trades     TradeStore
	mirror     MirrorStats
	paper      *execution.Paper
	execution  bool

	book     *position.Book
	guard    *risk.Guard
	cooldown *risk.Cooldown
	balance  *balance.Manager
	procs    *processor.Registry

	connMu sync.RWMutex
	conn   Connector

	settingsMu sync.RWMutex
	settings   config.Settings

	entryMu sync.Mutex

	started time.Time
}

// New builds the runtime. Processors are created lazily on first tick.
func New(ctx context.Context, d Deps) *Runtime {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Strategies == nil {
		d.Strategies = strategy.NewRegistry(nil)
	}
	if d.Bus == nil {
		d.Bus = events.NewBus()
	}
	if d.Metrics == nil {
		d.Metrics = monitor.NewMetrics()
	}
	if d.Safety == nil {
		local := safety.NewInProcess()
		_ = local.Init(ctx, d.Settings)
		d.Safety = local
	}
	log := d.Log.With().Str("component", "runtime").Logger()
	ctx, cancel := context.WithCancel(ctx)

	r := &Runtime{
		ctx:        ctx,
		cancel:     cancel,
		log:        log,
		now:        d.Clock,
		bus:        d.Bus,
		metrics:    d.Metrics,
		gateway:    execution.NewGateway(d.Broker, d.Settings, d.Audit, d.Log),
		strategies: d.Strategies,
		safety:     d.Safety,
		trades:     d.Trades,
		mirror:     d.Mirror,
		paper:      d.Paper,
		execution:  d.ExecutionEnabled,
		book:       position.NewBook(d.Log).WithClock(d.Clock),
		guard:      risk.NewGuard(risk.ConfigFrom(d.Settings), d.RiskStore, d.Log).WithClock(d.Clock),
		cooldown:   risk.NewCooldown(d.Settings.Cooldown(), risk.WindowsFrom(d.Settings)).WithClock(d.Clock),
		balance:    balance.NewManager(d.Log).WithClock(d.Clock),
		settings:   d.Settings,
		started:    d.Clock(),
	}
	r.procs = processor.NewRegistry(ctx, r.newProcessor, r.handleTick, d.Mailbox, d.Log)

	if d.Paper != nil {
		d.Paper.OnUpdate(r.onOpenContract)
		d.Paper.OnBalance(r.onBalance)
	}
	return r
}

func (r *Runtime) newProcessor(symbol string) *processor.Processor {
	s := r.Settings()
	mon := exit.NewMonitor(symbol, r.book, r.gateway, exit.ParamsFrom(s), s.SmartExit, r.log)
	return processor.New(symbol, r.strategies.Resolve(symbol), mon)
}

// Bind attaches the broker connection once it exists.
func (r *Runtime) Bind(c Connector) {
	r.connMu.Lock()
	r.conn = c
	r.connMu.Unlock()
}

// connected is true when no connector is bound, which is the offline
// paper mode.
func (r *Runtime) connected() bool {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	return r.conn == nil || r.conn.State() == deriv.StateLive
}

// Start restores today's risk counters and the start-of-day balance. In
// paper mode the paper account then seeds the balance.
func (r *Runtime) Start(ctx context.Context) error {
	st, err := r.guard.Restore(ctx)
	if err != nil {
		return err
	}
	if st.StartBalance > 0 {
		r.balance.Seed(st.StartBalance, st.Date)
	}
	if r.paper != nil {
		r.onBalance(deriv.Balance{Balance: r.paper.Balance(), Currency: r.Settings().Currency})
	}
	r.log.Info().
		Str("date", st.Date).
		Float64("daily_pnl", st.DailyPnL).
		Int("sl_hits", st.SLHits).
		Int("consecutive_losses", st.ConsecutiveLosses).
		Bool("execution", r.execution).
		Msg("runtime started")
	return nil
}

// Close drains the symbol mailboxes.
func (r *Runtime) Close() {
	r.cancel()
	r.procs.Close()
}

// Handlers returns the connector push callbacks.
func (r *Runtime) Handlers() deriv.Handlers {
	return deriv.Handlers{
		OnTick:         r.OnTick,
		OnBalance:      r.onBalance,
		OnPortfolio:    r.onPortfolio,
		OnOpenContract: r.onOpenContract,
		OnAuthorize:    r.onAuthorize,
		OnStateChange:  r.onStateChange,
		OnRequest:      r.metrics.ObserveRequest,
	}
}

// OnTick queues a tick on its symbol's mailbox without blocking.
func (r *Runtime) OnTick(t deriv.Tick) {
	if t.Quote <= 0 || t.Symbol == "" {
		return
	}
	r.procs.Dispatch(t)
}

func (r *Runtime) onAuthorize(a deriv.Authorization) {
	r.onBalance(deriv.Balance{Balance: a.Balance, Currency: a.Currency})
}

func (r *Runtime) onBalance(b deriv.Balance) {
	if r.balance.Update(b.Balance, b.Currency) {
		if err := r.guard.SetStartBalance(r.ctx, b.Balance); err != nil {
			r.log.Error().Err(err).Msg("persist start balance")
		}
	}
	snap := r.balance.GetBalance()
	r.bus.Publish(events.EventBalance, events.Balance{
		Balance:      snap.Balance,
		Currency:     snap.Currency,
		StartBalance: snap.StartBalance,
	})
}

func (r *Runtime) onPortfolio(contracts []deriv.PortfolioContract) {
	if n := r.book.Adopt(contracts); n > 0 {
		r.log.Info().Int("adopted", n).Msg("open contracts adopted from portfolio")
		r.publishPositions()
	}
}

func (r *Runtime) onStateChange(s deriv.State) {
	r.bus.Publish(events.EventConnectorState, events.ConnectorState{State: s.String()})
	if s == deriv.StateReconnecting {
		r.notify("warning", "Connection lost", "reconnecting to broker")
	}
}

func (r *Runtime) publishPositions() {
	r.bus.Publish(events.EventPositions, r.book.All())
}

func (r *Runtime) notify(level, title, msg string) {
	r.bus.Publish(events.EventNotification, events.Notification{Level: level, Title: title, Message: msg})
}

// Book exposes the position book.
func (r *Runtime) Book() *position.Book { return r.book }

// Settings returns the live settings.
func (r *Runtime) Settings() config.Settings {
	r.settingsMu.RLock()
	defer r.settingsMu.RUnlock()
	return r.settings
}

// ApplySettings merges p onto the live settings and pushes the result to
// every component.
func (r *Runtime) ApplySettings(ctx context.Context, p config.Patch) (config.Settings, error) {
	if p.Empty() {
		return r.Settings(), errors.New("empty settings patch")
	}
	r.settingsMu.Lock()
	next, err := r.settings.Apply(p)
	if err != nil {
		r.settingsMu.Unlock()
		return r.settings, err
	}
	r.settings = next
	r.settingsMu.Unlock()
	r.propagate(ctx, next)
	return next, nil
}

// ReplaceSettings installs a full settings value, e.g. after a file reload.
func (r *Runtime) ReplaceSettings(ctx context.Context, s config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.settingsMu.Lock()
	r.settings = s
	r.settingsMu.Unlock()
	r.propagate(ctx, s)
	return nil
}

func (r *Runtime) propagate(ctx context.Context, s config.Settings) {
	r.gateway.UpdateSettings(s)
	r.guard.UpdateParams(risk.ConfigFrom(s))
	r.cooldown.Update(s.Cooldown(), risk.WindowsFrom(s))
	for _, p := range r.procs.All() {
		p.Exit.Update(exit.ParamsFrom(s), s.SmartExit)
	}
	if err := r.safety.Init(ctx, s); err != nil {
		r.log.Warn().Err(err).Msg("safety engine rejected settings")
	}
	r.log.Info().Float64("risk_percent", s.RiskPercent).Float64("confidence_threshold", s.ConfidenceThreshold).Msg("settings applied")
}

// ReloadStrategies swaps the per-symbol profile overrides and rebuilds the
// strategies of running processors.
func (r *Runtime) ReloadStrategies(overrides map[string]strategy.Config) {
	r.strategies.SetOverrides(overrides)
	for _, p := range r.procs.All() {
		p.SetProfile(r.strategies.Resolve(p.Symbol))
	}
}

// Positions returns the open positions.
func (r *Runtime) Positions() []position.Position { return r.book.All() }

// Status builds the /status snapshot.
func (r *Runtime) Status(ctx context.Context) Status {
	st := Status{
		Connector:         "offline",
		Connected:         r.connected(),
		ExecutionEnabled:  r.execution,
		Balance:           r.balance.GetBalance(),
		Risk:              r.guard.State(),
		CooldownRemaining: r.cooldown.Remaining().Seconds(),
		Positions:         r.book.All(),
		OrderLatency:      r.metrics.OrderLatency.Stats(),
		StartedAt:         r.started,
		UptimeSeconds:     r.now().Sub(r.started).Seconds(),
	}
	r.connMu.RLock()
	if r.conn != nil {
		st.Connector = r.conn.State().String()
	}
	r.connMu.RUnlock()

	stats := r.book.Stats()
	st.Session = SessionStatus{SessionStats: stats, WinRate: stats.WinRate()}
	for _, p := range r.procs.All() {
		st.Symbols = append(st.Symbols, p.Stats())
	}
	if s, err := r.safety.State(ctx); err == nil {
		st.Safety = s
	}
	if r.mirror != nil {
		m := r.mirror.Stats()
		st.AuditMirror = &m
	}
	return st
}
