package config

// Patch is a partial Settings update; nil fields are left untouched.
type Patch struct {
	GridSize            *int     `yaml:"grid_size" json:"grid_size"`
	RiskPercent         *float64 `yaml:"risk_percent" json:"risk_percent"`
	MaxStake            *float64 `yaml:"max_stake" json:"max_stake"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold" json:"confidence_threshold"`

	StopLossPointsMin   *float64 `yaml:"stop_loss_points_min" json:"stop_loss_points_min"`
	StopLossPointsMax   *float64 `yaml:"stop_loss_points_max" json:"stop_loss_points_max"`
	TakeProfitPointsMin *float64 `yaml:"take_profit_points_min" json:"take_profit_points_min"`
	TakeProfitPointsMax *float64 `yaml:"take_profit_points_max" json:"take_profit_points_max"`
	RewardRisk          *float64 `yaml:"reward_risk" json:"reward_risk"`

	MinATRPct *float64 `yaml:"min_atr_pct" json:"min_atr_pct"`
	MaxATRPct *float64 `yaml:"max_atr_pct" json:"max_atr_pct"`

	RSIBuyMin  *float64 `yaml:"rsi_buy_min" json:"rsi_buy_min"`
	RSIBuyMax  *float64 `yaml:"rsi_buy_max" json:"rsi_buy_max"`
	RSISellMin *float64 `yaml:"rsi_sell_min" json:"rsi_sell_min"`
	RSISellMax *float64 `yaml:"rsi_sell_max" json:"rsi_sell_max"`
	ADXMin     *float64 `yaml:"adx_min" json:"adx_min"`

	MaxDailyLossPct *float64 `yaml:"max_daily_loss_pct" json:"max_daily_loss_pct"`
	MaxSLHits       *int     `yaml:"max_sl_hits" json:"max_sl_hits"`
	MaxActiveTrades *int     `yaml:"max_active_trades" json:"max_active_trades"`

	CooldownSeconds       *int `yaml:"cooldown_seconds" json:"cooldown_seconds"`
	CooldownWinSeconds    *int `yaml:"cooldown_win_seconds" json:"cooldown_win_seconds"`
	CooldownLossSeconds   *int `yaml:"cooldown_loss_seconds" json:"cooldown_loss_seconds"`
	CooldownStreakSeconds *int `yaml:"cooldown_streak_seconds" json:"cooldown_streak_seconds"`

	BreakevenFraction    *float64 `yaml:"breakeven_fraction" json:"breakeven_fraction"`
	TrailTriggerFraction *float64 `yaml:"trail_trigger_fraction" json:"trail_trigger_fraction"`
	TrailOffsetFraction  *float64 `yaml:"trail_offset_fraction" json:"trail_offset_fraction"`
	ScalperExit          *bool    `yaml:"scalper_exit" json:"scalper_exit"`
	SmartExit            *bool    `yaml:"smart_exit" json:"smart_exit"`

	ContractSpecTTLSeconds *int     `yaml:"contract_spec_ttl_seconds" json:"contract_spec_ttl_seconds"`
	Currency               *string  `yaml:"currency" json:"currency"`
	Basis                  *string  `yaml:"basis" json:"basis"`
	Duration               *int     `yaml:"duration" json:"duration"`
	DurationUnit           *string  `yaml:"duration_unit" json:"duration_unit"`
	Multiplier             *int     `yaml:"multiplier" json:"multiplier"`
	BuyPriceCeiling        *float64 `yaml:"buy_price_ceiling" json:"buy_price_ceiling"`
}

// Apply merges p onto s and validates the result. On error s is returned
// unchanged alongside the error.
func (s Settings) Apply(p Patch) (Settings, error) {
	out := s

	setInt(&out.GridSize, p.GridSize)
	setFloat(&out.RiskPercent, p.RiskPercent)
	setFloat(&out.MaxStake, p.MaxStake)
	setFloat(&out.ConfidenceThreshold, p.ConfidenceThreshold)

	setFloat(&out.StopLossPointsMin, p.StopLossPointsMin)
	setFloat(&out.StopLossPointsMax, p.StopLossPointsMax)
	setFloat(&out.TakeProfitPointsMin, p.TakeProfitPointsMin)
	setFloat(&out.TakeProfitPointsMax, p.TakeProfitPointsMax)
	setFloat(&out.RewardRisk, p.RewardRisk)

	setFloat(&out.MinATRPct, p.MinATRPct)
	setFloat(&out.MaxATRPct, p.MaxATRPct)

	setFloat(&out.RSIBuyMin, p.RSIBuyMin)
	setFloat(&out.RSIBuyMax, p.RSIBuyMax)
	setFloat(&out.RSISellMin, p.RSISellMin)
	setFloat(&out.RSISellMax, p.RSISellMax)
	setFloat(&out.ADXMin, p.ADXMin)

	setFloat(&out.MaxDailyLossPct, p.MaxDailyLossPct)
	setInt(&out.MaxSLHits, p.MaxSLHits)
	setInt(&out.MaxActiveTrades, p.MaxActiveTrades)

	setInt(&out.CooldownSeconds, p.CooldownSeconds)
	setInt(&out.CooldownWinSeconds, p.CooldownWinSeconds)
	setInt(&out.CooldownLossSeconds, p.CooldownLossSeconds)
	setInt(&out.CooldownStreakSeconds, p.CooldownStreakSeconds)

	setFloat(&out.BreakevenFraction, p.BreakevenFraction)
	setFloat(&out.TrailTriggerFraction, p.TrailTriggerFraction)
	setFloat(&out.TrailOffsetFraction, p.TrailOffsetFraction)
	if p.ScalperExit != nil {
		out.ScalperExit = *p.ScalperExit
	}
	if p.SmartExit != nil {
		out.SmartExit = *p.SmartExit
	}

	setInt(&out.ContractSpecTTLSeconds, p.ContractSpecTTLSeconds)
	setString(&out.Currency, p.Currency)
	setString(&out.Basis, p.Basis)
	setInt(&out.Duration, p.Duration)
	setString(&out.DurationUnit, p.DurationUnit)
	setInt(&out.Multiplier, p.Multiplier)
	setFloat(&out.BuyPriceCeiling, p.BuyPriceCeiling)

	if err := out.Validate(); err != nil {
		return s, err
	}
	return out, nil
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
