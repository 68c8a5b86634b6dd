package engine

import (
	"time"

	"deriv-core/internal/balance"
	"deriv-core/internal/monitor"
	"deriv-core/internal/persistence"
	"deriv-core/internal/position"
	"deriv-core/internal/processor"
	"deriv-core/internal/safety"
	"deriv-core/pkg/db"
)

// Status is the runtime snapshot served on /status.
type Status struct {
	Connector         string               `json:"connector"`
	Connected         bool                 `json:"connected"`
	ExecutionEnabled  bool                 `json:"execution_enabled"`
	Balance           balance.Snapshot     `json:"balance"`
	Session           SessionStatus        `json:"session"`
	Risk              db.RiskState         `json:"risk"`
	CooldownRemaining float64              `json:"cooldown_remaining_seconds"`
	Positions         []position.Position  `json:"positions"`
	Symbols           []processor.Stats    `json:"symbols"`
	Safety            safety.State         `json:"safety"`
	OrderLatency      monitor.LatencyStats `json:"order_latency_ms"`
	AuditMirror       *persistence.Stats   `json:"audit_mirror,omitempty"`
	StartedAt         time.Time            `json:"started_at"`
	UptimeSeconds     float64              `json:"uptime_seconds"`
}

// SessionStatus adds the win rate to the session counters.
type SessionStatus struct {
	position.SessionStats
	WinRate float64 `json:"win_rate"`
}
