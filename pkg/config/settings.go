package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Settings is the live-tunable trading configuration shared by the guards,
// strategies, gateway and exit monitor.
type Settings struct {
	GridSize            int     `yaml:"grid_size" json:"grid_size" validate:"gte=0"`
	RiskPercent         float64 `yaml:"risk_percent" json:"risk_percent" validate:"gt=0,lte=100"`
	MaxStake            float64 `yaml:"max_stake" json:"max_stake" validate:"gt=0"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold" validate:"gte=0,lte=100"`

	// SL/TP distance bounds in price points; a zero max leaves the side unbounded.
	StopLossPointsMin   float64 `yaml:"stop_loss_points_min" json:"stop_loss_points_min" validate:"gte=0"`
	StopLossPointsMax   float64 `yaml:"stop_loss_points_max" json:"stop_loss_points_max" validate:"gte=0"`
	TakeProfitPointsMin float64 `yaml:"take_profit_points_min" json:"take_profit_points_min" validate:"gte=0"`
	TakeProfitPointsMax float64 `yaml:"take_profit_points_max" json:"take_profit_points_max" validate:"gte=0"`
	RewardRisk          float64 `yaml:"reward_risk" json:"reward_risk" validate:"gt=0"`

	// ATR bounds as a fraction of price.
	MinATRPct float64 `yaml:"min_atr_pct" json:"min_atr_pct" validate:"gte=0"`
	MaxATRPct float64 `yaml:"max_atr_pct" json:"max_atr_pct" validate:"gtfield=MinATRPct"`

	RSIBuyMin  float64 `yaml:"rsi_buy_min" json:"rsi_buy_min" validate:"gte=0,lte=100"`
	RSIBuyMax  float64 `yaml:"rsi_buy_max" json:"rsi_buy_max" validate:"gtefield=RSIBuyMin,lte=100"`
	RSISellMin float64 `yaml:"rsi_sell_min" json:"rsi_sell_min" validate:"gte=0,lte=100"`
	RSISellMax float64 `yaml:"rsi_sell_max" json:"rsi_sell_max" validate:"gtefield=RSISellMin,lte=100"`
	ADXMin     float64 `yaml:"adx_min" json:"adx_min" validate:"gte=0,lte=100"`

	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct" json:"max_daily_loss_pct" validate:"gt=0,lte=100"`
	MaxSLHits       int     `yaml:"max_sl_hits" json:"max_sl_hits" validate:"gte=1"`
	MaxActiveTrades int     `yaml:"max_active_trades" json:"max_active_trades" validate:"gte=1"`

	CooldownSeconds       int `yaml:"cooldown_seconds" json:"cooldown_seconds" validate:"gte=0"`
	CooldownWinSeconds    int `yaml:"cooldown_win_seconds" json:"cooldown_win_seconds" validate:"gte=0"`
	CooldownLossSeconds   int `yaml:"cooldown_loss_seconds" json:"cooldown_loss_seconds" validate:"gte=0"`
	CooldownStreakSeconds int `yaml:"cooldown_streak_seconds" json:"cooldown_streak_seconds" validate:"gte=0"`

	BreakevenFraction    float64 `yaml:"breakeven_fraction" json:"breakeven_fraction" validate:"gt=0,lte=1"`
	TrailTriggerFraction float64 `yaml:"trail_trigger_fraction" json:"trail_trigger_fraction" validate:"gtefield=BreakevenFraction,lte=1"`
	TrailOffsetFraction  float64 `yaml:"trail_offset_fraction" json:"trail_offset_fraction" validate:"gt=0,lt=1"`
	ScalperExit          bool    `yaml:"scalper_exit" json:"scalper_exit"`
	SmartExit            bool    `yaml:"smart_exit" json:"smart_exit"`

	ContractSpecTTLSeconds int     `yaml:"contract_spec_ttl_seconds" json:"contract_spec_ttl_seconds" validate:"gte=0,lte=60"`
	Currency               string  `yaml:"currency" json:"currency" validate:"required,len=3"`
	Basis                  string  `yaml:"basis" json:"basis" validate:"oneof=stake payout"`
	Duration               int     `yaml:"duration" json:"duration" validate:"gt=0"`
	DurationUnit           string  `yaml:"duration_unit" json:"duration_unit" validate:"oneof=t s m h d"`
	Multiplier             int     `yaml:"multiplier" json:"multiplier" validate:"gt=0"`
	BuyPriceCeiling        float64 `yaml:"buy_price_ceiling" json:"buy_price_ceiling" validate:"gt=0"`
}

// DefaultSettings mirrors the values the bot ships with.
func DefaultSettings() Settings {
	return Settings{
		GridSize:               10,
		RiskPercent:            1.0,
		MaxStake:               50,
		ConfidenceThreshold:    60,
		RewardRisk:             1.4,
		MinATRPct:              0.0003,
		MaxATRPct:              0.01,
		RSIBuyMin:              45,
		RSIBuyMax:              75,
		RSISellMin:             25,
		RSISellMax:             55,
		ADXMin:                 15,
		MaxDailyLossPct:        5,
		MaxSLHits:              3,
		MaxActiveTrades:        5,
		CooldownSeconds:        60,
		CooldownWinSeconds:     60,
		CooldownLossSeconds:    120,
		CooldownStreakSeconds:  300,
		BreakevenFraction:      0.5,
		TrailTriggerFraction:   0.8,
		TrailOffsetFraction:    0.3,
		SmartExit:              true,
		ContractSpecTTLSeconds: 5,
		Currency:               "USD",
		Basis:                  "stake",
		Duration:               5,
		DurationUnit:           "t",
		Multiplier:             20,
		BuyPriceCeiling:        10000,
	}
}

// Validate checks field constraints.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if s.StopLossPointsMax > 0 && s.StopLossPointsMax < s.StopLossPointsMin {
		return errors.New("invalid settings: stop_loss_points_max below min")
	}
	if s.TakeProfitPointsMax > 0 && s.TakeProfitPointsMax < s.TakeProfitPointsMin {
		return errors.New("invalid settings: take_profit_points_max below min")
	}
	return nil
}

// Cooldown returns the default cooldown window.
func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

// ContractSpecTTL returns how long a fetched contract spec may be reused.
func (s Settings) ContractSpecTTL() time.Duration {
	return time.Duration(s.ContractSpecTTLSeconds) * time.Second
}

// LoadSettings overlays a YAML file onto DefaultSettings. An empty path
// returns the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(s, data)
}

// ParseSettings decodes YAML on top of base; keys missing from the document
// keep the base value.
func ParseSettings(base Settings, data []byte) (Settings, error) {
	out := base
	if err := yaml.Unmarshal(data, &out); err != nil {
		return base, fmt.Errorf("parse settings: %w", err)
	}
	if err := out.Validate(); err != nil {
		return base, err
	}
	return out, nil
}
