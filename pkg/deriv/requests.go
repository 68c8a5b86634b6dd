package deriv

import "strings"

// DefaultEndpoint is the public websocket API.
const DefaultEndpoint = "wss://ws.binaryws.com/websockets/v3"

// Request is an outbound JSON object. The client adds req_id.
type Request map[string]any

func Authorize(token string) Request { return Request{"authorize": token} }

func Ticks(symbol string) Request { return Request{"ticks": symbol, "subscribe": 1} }

func BalanceStream() Request { return Request{"balance": 1, "subscribe": 1} }

func PortfolioRequest() Request { return Request{"portfolio": 1} }

func OpenContracts() Request { return Request{"proposal_open_contract": 1, "subscribe": 1} }

func ContractsForRequest(symbol string) Request { return Request{"contracts_for": symbol} }

func Ping() Request { return Request{"ping": 1} }

// Buy executes a quoted proposal; price is the maximum the caller will pay.
func Buy(proposalID string, price float64) Request {
	return Request{"buy": proposalID, "price": price}
}

// Sell closes an open contract at market.
func Sell(contractID int64) Request {
	return Request{"sell": contractID, "price": 0}
}

// ProposalParams describes a price quote request. Multiplier contracts
// (MULTUP/MULTDOWN) send Multiplier and an optional limit order; everything
// else sends Duration/DurationUnit.
type ProposalParams struct {
	Symbol       string
	ContractType string
	Amount       float64
	Basis        string
	Currency     string
	Duration     int
	DurationUnit string
	Multiplier   int
	// Limit order amounts in account currency; zero omits the leg.
	StopLoss   float64
	TakeProfit float64
}

// IsMultiplier reports whether the contract type uses the multiplier path.
func IsMultiplier(contractType string) bool {
	return strings.HasPrefix(strings.ToUpper(contractType), "MULT")
}

// Proposal builds the quote request.
func Proposal(p ProposalParams) Request {
	req := Request{
		"proposal":      1,
		"subscribe":     1,
		"amount":        p.Amount,
		"basis":         p.Basis,
		"contract_type": p.ContractType,
		"currency":      p.Currency,
		"symbol":        p.Symbol,
	}
	if IsMultiplier(p.ContractType) {
		req["multiplier"] = p.Multiplier
		limit := map[string]any{}
		if p.StopLoss > 0 {
			limit["stop_loss"] = p.StopLoss
		}
		if p.TakeProfit > 0 {
			limit["take_profit"] = p.TakeProfit
		}
		if len(limit) > 0 {
			req["limit_order"] = limit
		}
		return req
	}
	req["duration"] = p.Duration
	req["duration_unit"] = p.DurationUnit
	return req
}

var requestKeys = []string{
	"authorize", "ticks", "balance", "portfolio", "proposal_open_contract",
	"contracts_for", "proposal", "buy", "sell", "ping", "forget", "forget_all",
}

// requestType names the call for logging and metrics.
func requestType(r Request) string {
	for _, k := range requestKeys {
		if _, ok := r[k]; ok {
			return k
		}
	}
	return "unknown"
}
