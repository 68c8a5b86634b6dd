package strategy

import (
	"strings"
	"sync"

	"deriv-core/internal/market"
)

// Kind names a strategy implementation.
type Kind string

const (
	KindTrend Kind = "trend"
	KindSpike Kind = "spike"
)

// Profile is the resolved per-symbol strategy selection.
type Profile struct {
	Symbol      string      `json:"symbol"`
	Kind        Kind        `json:"strategy"`
	Side        market.Side `json:"side,omitempty"`
	ScalperExit bool        `json:"scalper_exit"`
}

// Normalize uppercases a symbol and replaces spaces with underscores.
func Normalize(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(symbol)), " ", "_")
}

// Registry maps symbols to strategies: built-in defaults overlaid with
// profile file entries.
type Registry struct {
	mu        sync.RWMutex
	overrides map[string]Config
}

func NewRegistry(overrides map[string]Config) *Registry {
	r := &Registry{}
	r.SetOverrides(overrides)
	return r
}

// SetOverrides swaps the profile entries, e.g. after a file reload.
func (r *Registry) SetOverrides(overrides map[string]Config) {
	norm := make(map[string]Config, len(overrides))
	for k, v := range overrides {
		norm[Normalize(k)] = v
	}
	r.mu.Lock()
	r.overrides = norm
	r.mu.Unlock()
}

// Resolve returns the profile for symbol. Unknown symbols trade trend.
func (r *Registry) Resolve(symbol string) Profile {
	sym := Normalize(symbol)
	p := defaultProfile(sym)

	r.mu.RLock()
	cfg, ok := r.overrides[sym]
	r.mu.RUnlock()
	if !ok {
		return p
	}
	if cfg.Strategy != "" {
		p.Kind = Kind(cfg.Strategy)
		p.Side = ""
		if p.Kind == KindSpike {
			p.Side = spikeSide(sym)
		}
	}
	if side := market.SideOf(cfg.Side); side != "" && p.Kind == KindSpike {
		p.Side = side
	}
	p.ScalperExit = cfg.ScalperExit
	return p
}

// Strategy builds the strategy for symbol.
func (r *Registry) Strategy(symbol string) Strategy {
	return New(r.Resolve(symbol))
}

// New instantiates the strategy a profile names.
func New(p Profile) Strategy {
	if p.Kind == KindSpike {
		return Spike{Side: p.Side}
	}
	return Trend{}
}

func defaultProfile(sym string) Profile {
	switch {
	case strings.HasPrefix(sym, "BOOM"), strings.HasPrefix(sym, "CRASH"):
		return Profile{Symbol: sym, Kind: KindSpike, Side: spikeSide(sym)}
	}
	return Profile{Symbol: sym, Kind: KindTrend}
}

// spikeSide trades against the spike: Boom spikes up so it sells, Crash
// spikes down so it buys.
func spikeSide(sym string) market.Side {
	if strings.HasPrefix(sym, "CRASH") {
		return market.Buy
	}
	return market.Sell
}
