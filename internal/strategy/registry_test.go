package strategy

import (
	"testing"

	"deriv-core/internal/market"
)

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry(nil)
	tests := []struct {
		symbol string
		kind   Kind
		side   market.Side
	}{
		{"R_100", KindTrend, ""},
		{"1HZ10V", KindTrend, ""},
		{"frxEURUSD", KindTrend, ""},
		{"boom 300n", KindSpike, market.Sell},
		{"CRASH500", KindSpike, market.Buy},
		{"UNKNOWN", KindTrend, ""},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			p := r.Resolve(tt.symbol)
			if p.Kind != tt.kind || p.Side != tt.side {
				t.Fatalf("Resolve(%s)=%+v, expected %s/%q", tt.symbol, p, tt.kind, tt.side)
			}
		})
	}
	if got := Normalize(" boom 300n "); got != "BOOM_300N" {
		t.Fatalf("Normalize=%q", got)
	}
}

func TestRegistryOverrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
symbols:
  r_100:
    scalper_exit: true
  R_50:
    strategy: spike
    side: BUY
  BOOM500:
    strategy: trend
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	r := NewRegistry(cfg)

	if p := r.Resolve("R_100"); p.Kind != KindTrend || !p.ScalperExit {
		t.Fatalf("R_100=%+v, expected trend with scalper exit", p)
	}
	if p := r.Resolve("R_50"); p.Kind != KindSpike || p.Side != market.Buy {
		t.Fatalf("R_50=%+v, expected spike BUY", p)
	}
	if _, ok := r.Strategy("BOOM500").(Trend); !ok {
		t.Fatalf("BOOM500 override should build the trend strategy")
	}

	r.SetOverrides(nil)
	if p := r.Resolve("R_100"); p.ScalperExit {
		t.Fatalf("overrides not cleared")
	}
}

func TestParseConfigRejectsUnknownStrategy(t *testing.T) {
	if _, err := ParseConfig([]byte("symbols:\n  R_10:\n    strategy: martingale\n")); err == nil {
		t.Fatalf("expected an error for an unknown strategy")
	}
}
