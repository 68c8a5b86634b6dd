package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is one symbol entry of the strategy profile file.
type Config struct {
	Strategy    string `yaml:"strategy"`
	Side        string `yaml:"side"`
	ScalperExit bool   `yaml:"scalper_exit"`
}

// ConfigFile is the top-level YAML structure:
//
//	symbols:
//	  R_100: {strategy: trend, scalper_exit: true}
//	  BOOM500: {strategy: spike, side: SELL}
type ConfigFile struct {
	Symbols map[string]Config `yaml:"symbols"`
}

// LoadConfig reads symbol profiles from a YAML file. Keys are normalized.
func LoadConfig(path string) (map[string]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a profile document.
func ParseConfig(data []byte) (map[string]Config, error) {
	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse strategy profiles: %w", err)
	}
	out := make(map[string]Config, len(file.Symbols))
	for sym, cfg := range file.Symbols {
		switch Kind(cfg.Strategy) {
		case "", KindTrend, KindSpike:
		default:
			return nil, fmt.Errorf("symbol %s: unknown strategy %q", sym, cfg.Strategy)
		}
		out[Normalize(sym)] = cfg
	}
	return out, nil
}
