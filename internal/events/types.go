package events

import "time"

// Event enumerates telemetry topics emitted by the trading core.
type Event string

const (
	EventTick           Event = "tick"
	EventLog            Event = "log"
	EventBalance        Event = "balance"
	EventPositions      Event = "positions"
	EventMarketStatus   Event = "market_status"
	EventSignalSkipped  Event = "signal_skipped"
	EventNotification   Event = "notification"
	EventTradeExecution Event = "trade_execution"
	EventConnectorState Event = "connector_state"
)

// ParseEvents maps topic names to events, dropping unknown ones.
func ParseEvents(names []string) []Event {
	known := map[Event]bool{
		EventTick: true, EventLog: true, EventBalance: true, EventPositions: true,
		EventMarketStatus: true, EventSignalSkipped: true, EventNotification: true,
		EventTradeExecution: true, EventConnectorState: true,
	}
	var out []Event
	for _, n := range names {
		if e := Event(n); known[e] {
			out = append(out, e)
		}
	}
	return out
}

type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

type Balance struct {
	Balance      float64 `json:"balance"`
	Currency     string  `json:"currency"`
	StartBalance float64 `json:"start_balance"`
}

// MarketStatus is published when a 1m candle closes.
type MarketStatus struct {
	Symbol     string  `json:"symbol"`
	Mode       string  `json:"mode"`
	Trend      string  `json:"trend"`
	MTFTrend   string  `json:"mtf_trend"`
	Volatility string  `json:"volatility"`
	RSI        float64 `json:"rsi"`
	Price      float64 `json:"price"`
}

type SignalSkipped struct {
	Symbol string `json:"symbol"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

type Notification struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type TradeExecution struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Result     string  `json:"result"`
	Stake      float64 `json:"stake"`
	ContractID int64   `json:"contract_id,omitempty"`
	AuditID    string  `json:"audit_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

type ConnectorState struct {
	State string `json:"state"`
}

// LogLine is a structured log record republished for the telemetry sink.
type LogLine struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}
