package risk

import (
	"sync"
	"time"

	"deriv-core/pkg/config"
)

// Windows are the outcome-specific cooldowns applied after a settlement.
type Windows struct {
	Win    time.Duration
	Loss   time.Duration
	Streak time.Duration
}

// WindowsFrom reads the outcome windows from settings.
func WindowsFrom(s config.Settings) Windows {
	return Windows{
		Win:    time.Duration(s.CooldownWinSeconds) * time.Second,
		Loss:   time.Duration(s.CooldownLossSeconds) * time.Second,
		Streak: time.Duration(s.CooldownStreakSeconds) * time.Second,
	}
}

// Cooldown enforces a minimum wait between executions. The active window is
// the default unless an outcome override was set after the last trade.
type Cooldown struct {
	mu       sync.Mutex
	def      time.Duration
	windows  Windows
	last     time.Time
	override time.Duration
	hasOver  bool
	now      func() time.Time
}

func NewCooldown(def time.Duration, w Windows) *Cooldown {
	return &Cooldown{def: def, windows: w, now: time.Now}
}

// WithClock swaps the time source.
func (c *Cooldown) WithClock(now func() time.Time) *Cooldown {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Update applies new windows without touching the last trade time.
func (c *Cooldown) Update(def time.Duration, w Windows) {
	c.mu.Lock()
	c.def = def
	c.windows = w
	c.mu.Unlock()
}

// CanTrade is false strictly before the window expires and true at or after.
func (c *Cooldown) CanTrade() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last.IsZero() {
		return true
	}
	return c.now().Sub(c.last) >= c.window()
}

// RecordTrade starts a new window and clears any override.
func (c *Cooldown) RecordTrade() {
	c.mu.Lock()
	c.last = c.now()
	c.hasOver = false
	c.mu.Unlock()
}

// SetNext overrides the window measured from the last trade.
func (c *Cooldown) SetNext(d time.Duration) {
	c.mu.Lock()
	c.override = d
	c.hasOver = true
	c.mu.Unlock()
}

// RecordOutcome picks the override for a settled trade. A streak of two or
// more losses takes the streak window.
func (c *Cooldown) RecordOutcome(won bool, consecutiveLosses int) time.Duration {
	c.mu.Lock()
	w := c.windows.Loss
	switch {
	case won:
		w = c.windows.Win
	case consecutiveLosses >= lossStreak:
		w = c.windows.Streak
	}
	c.mu.Unlock()
	c.SetNext(w)
	return w
}

// Remaining is the time left before the next trade is allowed.
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last.IsZero() {
		return 0
	}
	left := c.window() - c.now().Sub(c.last)
	if left < 0 {
		return 0
	}
	return left
}

func (c *Cooldown) window() time.Duration {
	if c.hasOver {
		return c.override
	}
	return c.def
}
