package risk

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"deriv-core/internal/market"
)

const (
	defaultMinStake = 0.35
	maxRiskFactor   = 3.0
	maxConfluence   = 1.5
)

var regimeMultiplier = map[market.Mode]float64{
	market.ModeStrongTrend: 1.2,
	market.ModeTrend:       1.2,
	market.ModeRange:       0.8,
	market.ModeCompression: 0.8,
	market.ModeChaotic:     0.6,
}

// LotInput carries everything the sizer weighs.
type LotInput struct {
	Symbol     string
	Balance    float64
	RiskPct    float64
	Confidence float64 // 0..100
	Mode       market.Mode
	Confluence int
	Volatility market.Volatility
}

// Lot is a sized stake with the factors that produced it.
type Lot struct {
	Stake      float64 `json:"stake"`
	Base       float64 `json:"base"`
	Confidence float64 `json:"confidence_mult"`
	Regime     float64 `json:"regime_mult"`
	Confluence float64 `json:"confluence_mult"`
	Volatility float64 `json:"volatility_mult"`
}

// Size weights the base risk amount by confidence, regime, confluence and
// volatility. The result lies in [MinStake(symbol), 3 x base] unless the base
// itself is below the symbol minimum.
func Size(in LotInput) Lot {
	base := in.Balance * in.RiskPct / 100
	conf := math.Max(0, math.Min(100, in.Confidence))

	lot := Lot{
		Base:       base,
		Confidence: 0.5 + conf/100*0.5,
		Regime:     regime(in.Mode),
		Confluence: math.Min(1+0.1*float64(max(in.Confluence, 0)), maxConfluence),
		Volatility: volatilityMultiplier(in.Volatility),
	}

	stake := base * lot.Confidence * lot.Regime * lot.Confluence * lot.Volatility
	stake = math.Min(stake, base*maxRiskFactor)
	stake = math.Max(stake, MinStake(in.Symbol))
	lot.Stake = round(stake, 2)
	return lot
}

// MinStake is the smallest stake the broker accepts for the symbol family.
func MinStake(symbol string) float64 {
	s := strings.ToUpper(symbol)
	switch {
	case strings.HasPrefix(s, "RDBULL"), strings.HasPrefix(s, "RDBEAR"):
		return 0.50
	default:
		return defaultMinStake
	}
}

func regime(m market.Mode) float64 {
	if v, ok := regimeMultiplier[m]; ok {
		return v
	}
	return 0.5
}

func volatilityMultiplier(v market.Volatility) float64 {
	switch v {
	case market.VolExtreme:
		return 0.5
	case market.VolHigh:
		return 0.8
	default:
		return 1.0
	}
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
