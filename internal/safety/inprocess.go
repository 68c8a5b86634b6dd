package safety

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"deriv-core/pkg/config"
)

// InProcess approves trades against the live settings.
type InProcess struct {
	mu       sync.RWMutex
	settings config.Settings
	started  time.Time
	running  bool
	now      func() time.Time

	ticks    atomic.Int64
	trades   atomic.Int64
	approved atomic.Int64
	rejected atomic.Int64
}

func NewInProcess() *InProcess {
	return &InProcess{now: time.Now}
}

func (e *InProcess) Name() string { return "in_process" }

// Init stores the settings and starts the uptime clock. Calling it again
// only replaces the settings.
func (e *InProcess) Init(_ context.Context, s config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
	if !e.running {
		e.running = true
		e.started = e.now()
	}
	return nil
}

func (e *InProcess) ProcessTick(_ context.Context, t Tick) (Verdict, error) {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		return Verdict{}, ErrNotInitialized
	}
	e.ticks.Add(1)
	if t.Price <= 0 {
		return Verdict{Action: "hold", Reason: "invalid price"}, nil
	}
	return Verdict{Action: "hold"}, nil
}

func (e *InProcess) ExecuteTrade(_ context.Context, p TradeParams) (Approval, error) {
	e.mu.RLock()
	s, running := e.settings, e.running
	e.mu.RUnlock()
	if !running {
		return Approval{}, ErrNotInitialized
	}
	e.trades.Add(1)

	a := Approval{Approved: true, Reason: "OK"}
	switch {
	case p.Stake <= 0:
		a = Approval{Reason: "stake must be positive"}
	case p.Stake > s.MaxStake:
		a = Approval{Reason: fmt.Sprintf("stake %.2f above max %.2f", p.Stake, s.MaxStake)}
	case p.OpenTrades >= s.MaxActiveTrades:
		a = Approval{Reason: fmt.Sprintf("open trades %d at max %d", p.OpenTrades, s.MaxActiveTrades)}
	case p.Confidence < s.ConfidenceThreshold:
		a = Approval{Reason: fmt.Sprintf("confidence %.1f below %.1f", p.Confidence, s.ConfidenceThreshold)}
	}
	if a.Approved {
		e.approved.Add(1)
	} else {
		e.rejected.Add(1)
	}
	return a, nil
}

func (e *InProcess) State(_ context.Context) (State, error) {
	e.mu.RLock()
	running, started := e.running, e.started
	e.mu.RUnlock()
	st := State{
		Engine:   e.Name(),
		Running:  running,
		Ticks:    e.ticks.Load(),
		Trades:   e.trades.Load(),
		Approved: e.approved.Load(),
		Rejected: e.rejected.Load(),
	}
	if running {
		st.UptimeSeconds = e.now().Sub(started).Seconds()
	}
	return st, nil
}
