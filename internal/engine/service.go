// Package engine is the runtime context of the trading core. It owns every
// component, routes broker pushes into them and exposes a narrow Service to
// the API layer.
package engine

import (
	"context"

	"deriv-core/internal/position"
	"deriv-core/pkg/config"
)

// Service is what the API layer may do with the runtime.
type Service interface {
	Status(ctx context.Context) Status
	Positions() []position.Position
	Settings() config.Settings
	ApplySettings(ctx context.Context, p config.Patch) (config.Settings, error)
}
