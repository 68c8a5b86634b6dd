package engine

import (
	"context"
	"fmt"
	"slices"

	"deriv-core/internal/events"
	"deriv-core/internal/execution"
	"deriv-core/internal/exit"
	"deriv-core/internal/market"
	"deriv-core/internal/position"
	"deriv-core/internal/processor"
	"deriv-core/internal/risk"
	"deriv-core/internal/safety"
	"deriv-core/internal/signal"
	"deriv-core/internal/strategy"
	"deriv-core/pkg/deriv"
)

// Skip stages added by the runtime on top of the strategy stages.
const (
	StageExecution = "execution"
	StageCooldown  = "cooldown"
	StageRisk      = "risk"
	StageSafety    = "safety"
	StageGateway   = "gateway"
)

// handleTick is one pass of the symbol pipeline: candles and indicators,
// exits for open positions, then a possible new entry. It runs on the
// symbol's mailbox goroutine.
func (r *Runtime) handleTick(ctx context.Context, p *processor.Processor, t deriv.Tick) {
	price, ts := t.Quote, t.Time()
	if r.paper != nil {
		r.paper.Tick(t.Symbol, price)
	}
	r.bus.Publish(events.EventTick, events.Tick{Symbol: t.Symbol, Price: price, Time: ts})

	closed := p.Engine.Update(price, ts)
	structure := p.Structure.Update(price)
	ind := signal.ComputeIndicators(p.Engine.Candles(market.TF1m.Name), price)
	a := p.Engine.Analyze()

	if slices.ContainsFunc(closed, func(tf market.Timeframe) bool { return tf.Name == market.TF1m.Name }) {
		r.bus.Publish(events.EventMarketStatus, events.MarketStatus{
			Symbol:     t.Symbol,
			Mode:       string(a.Mode),
			Trend:      string(a.Trend),
			MTFTrend:   string(a.MTF.Trend),
			Volatility: string(a.Volatility),
			RSI:        a.RSI,
			Price:      price,
		})
	}

	if _, err := r.safety.ProcessTick(ctx, safety.Tick{Symbol: t.Symbol, Price: price, Time: ts}); err != nil {
		r.log.Debug().Err(err).Str("symbol", t.Symbol).Msg("safety tick failed")
	}

	view := exit.View{Indicators: &ind, Analysis: &a}
	if c, ok := p.Engine.Current(market.TF1m.Name); ok {
		view.Candle = &c
	}
	for _, e := range p.Exit.OnTick(ctx, price, view) {
		if !e.Result.OK() {
			continue
		}
		r.metrics.Exits.WithLabelValues(string(e.Reason)).Inc()
		r.notify("info", "Position closing", fmt.Sprintf("%s #%d closed on %s at %.5f", e.Symbol, e.ContractID, e.Reason, e.Price))
	}

	r.evaluateEntry(ctx, p, strategy.Input{
		Symbol:     t.Symbol,
		Price:      price,
		Time:       ts,
		Engine:     p.Engine,
		Analysis:   a,
		Structure:  structure,
		Indicators: ind,
		Settings:   r.Settings(),
	})
}

func (r *Runtime) evaluateEntry(ctx context.Context, p *processor.Processor, in strategy.Input) {
	sig := p.Strategy().Analyze(in)
	if sig.Skipped() {
		// Warmup skips fire on every tick of the first hour.
		if sig.Stage != strategy.StageWarmup {
			r.skip(in.Symbol, sig.Stage, sig.Reason)
		}
		return
	}
	r.metrics.Signals.WithLabelValues(in.Symbol, string(sig.Action)).Inc()

	if !r.execution {
		r.skip(in.Symbol, StageExecution, "execution disabled")
		return
	}

	// One entry at a time across symbols, from the cooldown check to Open.
	if !r.entryMu.TryLock() {
		r.skip(in.Symbol, StageGateway, "another entry in progress")
		return
	}
	defer r.entryMu.Unlock()

	if !r.cooldown.CanTrade() {
		r.skip(in.Symbol, StageCooldown, fmt.Sprintf("cooldown %.0fs remaining", r.cooldown.Remaining().Seconds()))
		return
	}

	snap := r.balance.GetBalance()
	open := r.book.Count()
	d := r.guard.Check(risk.Check{
		Balance:      snap.Balance,
		StartBalance: snap.StartBalance,
		ActiveTrades: open,
		Volatility:   sig.Volatility,
		Connected:    r.connected(),
	})
	if !d.Allowed {
		r.skip(in.Symbol, StageRisk, d.Reason)
		return
	}

	s := in.Settings
	lot := risk.Size(risk.LotInput{
		Symbol:     in.Symbol,
		Balance:    snap.Balance,
		RiskPct:    s.RiskPercent,
		Confidence: sig.Confidence,
		Mode:       sig.Mode,
		Confluence: sig.Confluence,
		Volatility: sig.Volatility,
	})
	stake := min(lot.Stake, s.MaxStake)

	approval, err := r.safety.ExecuteTrade(ctx, safety.TradeParams{
		Symbol:     in.Symbol,
		Side:       string(sig.Action),
		Stake:      stake,
		Confidence: sig.Confidence,
		OpenTrades: open,
	})
	if err != nil {
		r.skip(in.Symbol, StageSafety, err.Error())
		return
	}
	if !approval.Approved {
		r.skip(in.Symbol, StageSafety, approval.Reason)
		return
	}

	order := execution.Order{
		Symbol:     in.Symbol,
		Side:       sig.Action,
		Stake:      stake,
		Price:      in.Price,
		SLDistance: sig.SLDistance,
		TPDistance: sig.TPDistance,
		Strategy:   sig.Strategy,
		Confidence: int(sig.Confidence),
	}
	start := r.now()
	res := r.gateway.Submit(ctx, order)
	r.metrics.OrderLatency.RecordDuration(r.now().Sub(start))

	r.bus.Publish(events.EventTradeExecution, events.TradeExecution{
		Symbol:     in.Symbol,
		Side:       string(sig.Action),
		Result:     string(res.Kind),
		Stake:      res.Stake,
		ContractID: res.Receipt.ContractID,
		AuditID:    res.AuditID,
		Reason:     res.Reason,
	})
	if !res.OK() {
		if res.Kind == execution.KindBusy {
			r.skip(in.Symbol, StageGateway, res.Reason)
			return
		}
		r.notify("error", "Trade rejected", fmt.Sprintf("%s %s: %s (%s)", sig.Action, in.Symbol, res.Reason, res.Kind))
		return
	}

	r.cooldown.RecordTrade()
	pos, opened := r.book.Open(position.Open{
		Symbol:       in.Symbol,
		Side:         sig.Action,
		ContractType: res.ContractType,
		Strategy:     sig.Strategy,
		Price:        in.Price,
		SLDistance:   sig.SLDistance,
		TPDistance:   sig.TPDistance,
		ScalperExit:  p.Profile().ScalperExit,
		EntryState:   string(in.Indicators.RSIState),
		Receipt:      res.Receipt,
	})
	if !opened {
		return
	}
	r.notify("success", "Trade opened", fmt.Sprintf("%s %s stake %.2f at %.5f (confidence %.0f)",
		pos.Side, pos.Symbol, pos.Stake, pos.EntryPrice, sig.Confidence))
	r.publishPositions()
}

func (r *Runtime) skip(symbol, stage, reason string) {
	r.bus.Publish(events.EventSignalSkipped, events.SignalSkipped{Symbol: symbol, Stage: stage, Reason: reason})
}
