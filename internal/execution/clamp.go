package execution

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deriv-core/internal/market"
	"deriv-core/pkg/deriv"
)

const (
	defaultMinStake   = 0.35
	defaultMaxStake   = 5000.0
	multiplierMinimum = 1.0
)

// ErrNoContracts is returned when the broker lists nothing tradable.
var ErrNoContracts = errors.New("no tradable contracts for symbol")

// Validation records how a requested stake was adjusted against the fresh
// contract limits.
type Validation struct {
	ContractType  string     `json:"contract_type"`
	Requested     string     `json:"requested_contract_type"`
	Fallback      bool       `json:"fallback"`
	OriginalStake float64    `json:"original_stake"`
	AdjustedStake float64    `json:"adjusted_stake"`
	Range         [2]float64 `json:"range"`
}

// ContractTypeFor picks the contract for a side unless one was requested.
func ContractTypeFor(side market.Side, requested string) string {
	if requested != "" {
		return strings.ToUpper(requested)
	}
	if side == market.Sell {
		return "PUT"
	}
	return "CALL"
}

// ValidateAndClamp selects the spec entry for contractType, falling back to
// the first listed entry, and clamps stake into its limits rounded to cents.
// Rounding never leaves the limits: it floors at the maximum and ceils at
// the minimum.
func ValidateAndClamp(specs []deriv.ContractSpec, contractType string, stake float64, log zerolog.Logger) (Validation, error) {
	if len(specs) == 0 {
		return Validation{}, ErrNoContracts
	}

	v := Validation{Requested: contractType, OriginalStake: stake}
	spec := specs[0]
	matched := false
	for _, s := range specs {
		if strings.EqualFold(s.ContractType, contractType) {
			spec = s
			matched = true
			break
		}
	}
	if !matched {
		v.Fallback = true
		log.Warn().Str("requested", contractType).Str("fallback", spec.ContractType).Msg("exact contract type not listed, using first entry")
	}
	v.ContractType = strings.ToUpper(spec.ContractType)

	lo := spec.MinStake
	if lo <= 0 {
		lo = defaultMinStake
	}
	if deriv.IsMultiplier(v.ContractType) && lo < multiplierMinimum {
		lo = multiplierMinimum
	}
	hi := spec.MaxStake
	if hi <= 0 {
		hi = defaultMaxStake
	}
	v.Range = [2]float64{lo, hi}

	amount := decimal.NewFromFloat(stake)
	switch {
	case amount.LessThan(decimal.NewFromFloat(lo)):
		log.Info().Float64("stake", stake).Float64("min", lo).Msg("stake raised to contract minimum")
		amount = decimal.NewFromFloat(lo)
	case amount.GreaterThan(decimal.NewFromFloat(hi)):
		log.Warn().Float64("stake", stake).Float64("max", hi).Msg("stake lowered to contract maximum")
		amount = decimal.NewFromFloat(hi)
	}
	rounded := amount.Round(2)
	switch {
	case rounded.GreaterThan(decimal.NewFromFloat(hi)):
		rounded = amount.RoundFloor(2)
	case rounded.LessThan(decimal.NewFromFloat(lo)):
		rounded = amount.RoundCeil(2)
	}
	v.AdjustedStake = rounded.InexactFloat64()
	return v, nil
}
