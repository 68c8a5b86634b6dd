package engine

import (
	"fmt"

	"deriv-core/internal/market"
	"deriv-core/internal/position"
	"deriv-core/pkg/db"
	"deriv-core/pkg/deriv"
)

// onOpenContract reconciles a contract push and settles it once.
func (r *Runtime) onOpenContract(c deriv.OpenContract) {
	s, ok := r.book.Reconcile(c)
	if !ok {
		return
	}
	r.settle(s)
}

// settle feeds one settlement to the risk counters, the cooldown, the
// symbol's engine memory, the trade store and telemetry.
func (r *Runtime) settle(s position.Settlement) {
	p := s.Position
	log := r.log.With().Int64("contract_id", p.ContractID).Str("symbol", p.Symbol).Logger()

	if err := r.guard.RecordResult(r.ctx, s.Won, s.Profit); err != nil {
		log.Error().Err(err).Msg("persist risk state")
	}
	window := r.cooldown.RecordOutcome(s.Won, r.guard.ConsecutiveLosses())

	if proc, ok := r.procs.Get(p.Symbol); ok {
		outcome := market.OutcomeLoss
		if s.Won {
			outcome = market.OutcomeWin
		}
		proc.Engine.Memory().RecordResult(outcome)
	}

	if r.trades != nil {
		err := r.trades.InsertTradeResult(r.ctx, db.TradeResult{
			ContractID: fmt.Sprint(p.ContractID),
			Symbol:     p.Symbol,
			Side:       string(p.Side),
			Strategy:   p.Strategy,
			Stake:      p.Stake,
			EntryPrice: p.EntryPrice,
			ExitPrice:  s.ExitPrice,
			Profit:     s.Profit,
			Status:     s.Status,
			OpenedAt:   p.OpenedAt,
			ClosedAt:   s.ClosedAt,
		})
		if err != nil {
			log.Error().Err(err).Msg("store trade result")
		}
	}

	stats := r.book.Stats()
	r.metrics.SessionPnL.Set(stats.PnL)

	level := "success"
	if !s.Won {
		level = "warning"
	}
	r.notify(level, "Trade closed", fmt.Sprintf("%s #%d %s %+.2f, session %+.2f (%d trades), next entry in %.0fs",
		p.Symbol, p.ContractID, s.Status, s.Profit, stats.PnL, stats.Trades, window.Seconds()))
	r.publishPositions()
}
