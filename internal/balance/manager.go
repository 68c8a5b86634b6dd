package balance

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Snapshot is the account balance with the start-of-day reference used by
// the daily loss guard.
type Snapshot struct {
	Balance      float64   `json:"balance"`
	StartBalance float64   `json:"start_balance"`
	Currency     string    `json:"currency"`
	Date         string    `json:"date"`
	LastSync     time.Time `json:"last_sync"`
}

// Manager tracks the broker balance. The first balance seen each UTC day
// becomes that day's start balance.
type Manager struct {
	mu       sync.RWMutex
	balance  float64
	start    float64
	currency string
	date     string
	lastSync time.Time
	now      func() time.Time
	log      zerolog.Logger
}

// NewManager creates a new balance manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{now: time.Now, log: log.With().Str("component", "balance").Logger()}
}

// WithClock swaps the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

// Seed restores a persisted start balance. It is ignored when date is not
// the current day.
func (m *Manager) Seed(start float64, date string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if start <= 0 || date != m.today() {
		return
	}
	m.start = start
	m.date = date
	m.log.Info().Float64("start_balance", start).Str("date", date).Msg("start balance restored")
}

// Update records a pushed balance. It reports true when the update opened a
// new day and therefore set a new start balance.
func (m *Manager) Update(balance float64, currency string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balance = balance
	if currency != "" {
		m.currency = currency
	}
	m.lastSync = m.now()

	today := m.today()
	if m.date == today && m.start > 0 {
		return false
	}
	m.date = today
	m.start = balance
	m.log.Info().Float64("start_balance", balance).Str("date", today).Msg("start of day balance set")
	return true
}

// GetBalance returns current balance snapshot
func (m *Manager) GetBalance() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := m.start
	if m.date != m.today() {
		start = m.balance
	}
	return Snapshot{
		Balance:      m.balance,
		StartBalance: start,
		Currency:     m.currency,
		Date:         m.date,
		LastSync:     m.lastSync,
	}
}

func (m *Manager) today() string {
	return m.now().UTC().Format("2006-01-02")
}
