package execution

import (
	"github.com/shopspring/decimal"

	"deriv-core/pkg/config"
	"deriv-core/pkg/deriv"
)

// BuildProposal turns a validated order into quote parameters. Multiplier
// contracts carry the stop distances as a currency limit order; other
// contracts leave SL/TP to the local exit monitor.
func BuildProposal(s config.Settings, o Order, v Validation) deriv.ProposalParams {
	p := deriv.ProposalParams{
		Symbol:       o.Symbol,
		ContractType: v.ContractType,
		Amount:       v.AdjustedStake,
		Basis:        s.Basis,
		Currency:     s.Currency,
		Duration:     s.Duration,
		DurationUnit: s.DurationUnit,
		Multiplier:   s.Multiplier,
	}
	if deriv.IsMultiplier(v.ContractType) && o.Price > 0 {
		p.StopLoss = limitAmount(v.AdjustedStake, s.Multiplier, o.SLDistance, o.Price)
		p.TakeProfit = limitAmount(v.AdjustedStake, s.Multiplier, o.TPDistance, o.Price)
	}
	return p
}

// limitAmount is the profit or loss of a multiplier contract when price
// moves by distance.
func limitAmount(stake float64, multiplier int, distance, price float64) float64 {
	if distance <= 0 {
		return 0
	}
	amt := decimal.NewFromFloat(stake).
		Mul(decimal.NewFromInt(int64(multiplier))).
		Mul(decimal.NewFromFloat(distance)).
		Div(decimal.NewFromFloat(price)).
		Round(2)
	return amt.InexactFloat64()
}
