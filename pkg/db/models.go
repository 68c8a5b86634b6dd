package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// AuditRow mirrors one line of the JSON audit file.
type AuditRow struct {
	ID        string
	Event     string
	Symbol    string
	Payload   string
	CreatedAt time.Time
}

// TradeResult is a settled contract.
type TradeResult struct {
	ContractID string
	Symbol     string
	Side       string
	Strategy   string
	Stake      float64
	EntryPrice float64
	ExitPrice  float64
	Profit     float64
	Status     string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// RiskState is the persisted per-day risk accumulator.
type RiskState struct {
	Date              string
	StartBalance      float64
	DailyPnL          float64
	SLHits            int
	ConsecutiveLosses int
	Trades            int
	Wins              int
	Losses            int
	UpdatedAt         time.Time
}

// InsertAuditQuery is shared with the batch writer so mirrored rows use the
// same statement as direct inserts.
const InsertAuditQuery = `
	INSERT OR IGNORE INTO audit_log (id, event, symbol, payload, created_at)
	VALUES (?, ?, ?, ?, ?)`

// InsertAudit writes an audit row directly.
func (d *Database) InsertAudit(ctx context.Context, a AuditRow) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := d.DB.ExecContext(ctx, InsertAuditQuery, a.ID, a.Event, a.Symbol, a.Payload, a.CreatedAt)
	return err
}

// ListAudit returns the most recent audit rows, newest first.
func (d *Database) ListAudit(ctx context.Context, event string, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, event, COALESCE(symbol, ''), payload, created_at FROM audit_log`
	args := []any{}
	if event != "" {
		query += ` WHERE event = ?`
		args = append(args, event)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []AuditRow
	for rows.Next() {
		var a AuditRow
		if err := rows.Scan(&a.ID, &a.Event, &a.Symbol, &a.Payload, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// InsertTradeResult stores a settled contract. Re-inserting the same
// contract is a no-op so settlement replays stay harmless.
func (d *Database) InsertTradeResult(ctx context.Context, t TradeResult) error {
	if t.ClosedAt.IsZero() {
		t.ClosedAt = time.Now().UTC()
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO trade_results (
			contract_id, symbol, side, strategy, stake, entry_price, exit_price, profit, status, opened_at, closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ContractID, t.Symbol, t.Side, t.Strategy, t.Stake, t.EntryPrice, t.ExitPrice, t.Profit, t.Status, t.OpenedAt, t.ClosedAt,
	)
	return err
}

// ListTradeResults returns settled contracts closed on or after since.
func (d *Database) ListTradeResults(ctx context.Context, since time.Time) ([]TradeResult, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT contract_id, symbol, side, COALESCE(strategy, ''), stake, entry_price, exit_price, profit, status, opened_at, closed_at
		FROM trade_results WHERE closed_at >= ?
		ORDER BY closed_at ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []TradeResult
	for rows.Next() {
		var (
			t      TradeResult
			opened sql.NullTime
		)
		if err := rows.Scan(&t.ContractID, &t.Symbol, &t.Side, &t.Strategy, &t.Stake, &t.EntryPrice, &t.ExitPrice, &t.Profit, &t.Status, &opened, &t.ClosedAt); err != nil {
			return nil, err
		}
		if opened.Valid {
			t.OpenedAt = opened.Time
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// UpsertRiskState stores the risk counters for s.Date.
func (d *Database) UpsertRiskState(ctx context.Context, s RiskState) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO risk_state (date, start_balance, daily_pnl, sl_hits, consecutive_losses, trades, wins, losses, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			start_balance = excluded.start_balance,
			daily_pnl = excluded.daily_pnl,
			sl_hits = excluded.sl_hits,
			consecutive_losses = excluded.consecutive_losses,
			trades = excluded.trades,
			wins = excluded.wins,
			losses = excluded.losses,
			updated_at = excluded.updated_at
	`, s.Date, s.StartBalance, s.DailyPnL, s.SLHits, s.ConsecutiveLosses, s.Trades, s.Wins, s.Losses, s.UpdatedAt)
	return err
}

// GetRiskState loads the counters for date or returns ErrNotFound.
func (d *Database) GetRiskState(ctx context.Context, date string) (RiskState, error) {
	var s RiskState
	err := d.DB.QueryRowContext(ctx, `
		SELECT date, start_balance, daily_pnl, sl_hits, consecutive_losses, trades, wins, losses, updated_at
		FROM risk_state WHERE date = ?
	`, date).Scan(&s.Date, &s.StartBalance, &s.DailyPnL, &s.SLHits, &s.ConsecutiveLosses, &s.Trades, &s.Wins, &s.Losses, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RiskState{}, ErrNotFound
	}
	if err != nil {
		return RiskState{}, err
	}
	return s, nil
}
