package deriv

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Response is a decoded inbound frame.
type Response struct {
	MsgType string
	ReqID   int64
	Error   *APIError
	Raw     json.RawMessage

	fields map[string]json.RawMessage
}

// Body returns the payload keyed by the message type.
func (r *Response) Body() json.RawMessage {
	if r == nil {
		return nil
	}
	return r.fields[r.MsgType]
}

// Decode unmarshals the payload keyed by the message type into v.
func (r *Response) Decode(v any) error {
	body := r.Body()
	if len(body) == 0 {
		return fmt.Errorf("deriv: %s response has no body", r.MsgType)
	}
	return json.Unmarshal(body, v)
}

func parseResponse(msg []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return nil, err
	}
	r := &Response{Raw: msg, fields: fields}
	if raw, ok := fields["msg_type"]; ok {
		_ = json.Unmarshal(raw, &r.MsgType)
	}
	if raw, ok := fields["error"]; ok && len(raw) > 0 && string(raw) != "null" {
		var apiErr APIError
		if err := json.Unmarshal(raw, &apiErr); err == nil {
			r.Error = &apiErr
		}
	}
	r.ReqID = correlationID(fields)
	return r, nil
}

// correlationID reads req_id from the top level or from echo_req, accepting
// numeric and string forms. Zero means uncorrelated.
func correlationID(fields map[string]json.RawMessage) int64 {
	if raw, ok := fields["req_id"]; ok {
		if id := parseReqID(raw); id > 0 {
			return id
		}
	}
	if raw, ok := fields["echo_req"]; ok {
		var echo map[string]json.RawMessage
		if err := json.Unmarshal(raw, &echo); err == nil {
			if id, ok := echo["req_id"]; ok {
				return parseReqID(id)
			}
		}
	}
	return 0
}

func parseReqID(raw json.RawMessage) int64 {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	return toInt64(v)
}

// Tick is a single price update.
type Tick struct {
	Symbol string
	Quote  float64
	Epoch  int64
	ID     string
}

// Time returns the tick timestamp.
func (t Tick) Time() time.Time { return time.Unix(t.Epoch, 0).UTC() }

func parseTick(raw json.RawMessage) (Tick, error) {
	var t struct {
		Symbol string `json:"symbol"`
		Quote  any    `json:"quote"`
		Epoch  any    `json:"epoch"`
		ID     string `json:"id"`
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tick{}, err
	}
	return Tick{Symbol: t.Symbol, Quote: toFloat(t.Quote), Epoch: toInt64(t.Epoch), ID: t.ID}, nil
}

// Balance is the account balance push.
type Balance struct {
	Balance  float64
	Currency string
	LoginID  string
}

func parseBalance(raw json.RawMessage) (Balance, error) {
	var b struct {
		Balance  any    `json:"balance"`
		Currency string `json:"currency"`
		LoginID  string `json:"loginid"`
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return Balance{}, err
	}
	return Balance{Balance: toFloat(b.Balance), Currency: b.Currency, LoginID: b.LoginID}, nil
}

// Account is an entry of the authorize account list.
type Account struct {
	LoginID   string
	Currency  string
	IsVirtual bool
}

// Authorization is the authorize response.
type Authorization struct {
	LoginID  string
	Currency string
	Balance  float64
	Accounts []Account
}

func parseAuthorization(raw json.RawMessage) (Authorization, error) {
	var a struct {
		LoginID     string `json:"loginid"`
		Currency    string `json:"currency"`
		Balance     any    `json:"balance"`
		AccountList []struct {
			LoginID   string `json:"loginid"`
			Currency  string `json:"currency"`
			IsVirtual any    `json:"is_virtual"`
		} `json:"account_list"`
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return Authorization{}, err
	}
	out := Authorization{LoginID: a.LoginID, Currency: a.Currency, Balance: toFloat(a.Balance)}
	for _, acc := range a.AccountList {
		out.Accounts = append(out.Accounts, Account{LoginID: acc.LoginID, Currency: acc.Currency, IsVirtual: toBool(acc.IsVirtual)})
	}
	return out, nil
}

// PortfolioContract is an open contract listed by the portfolio call.
type PortfolioContract struct {
	ContractID   int64
	Symbol       string
	ContractType string
	BuyPrice     float64
	Payout       float64
	PurchaseTime int64
	ExpiryTime   int64
}

func parsePortfolio(raw json.RawMessage) ([]PortfolioContract, error) {
	var p struct {
		Contracts []struct {
			ContractID   any    `json:"contract_id"`
			Symbol       string `json:"symbol"`
			Underlying   string `json:"underlying_symbol"`
			ContractType string `json:"contract_type"`
			BuyPrice     any    `json:"buy_price"`
			Payout       any    `json:"payout"`
			PurchaseTime any    `json:"purchase_time"`
			ExpiryTime   any    `json:"expiry_time"`
		} `json:"contracts"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	out := make([]PortfolioContract, 0, len(p.Contracts))
	for _, c := range p.Contracts {
		sym := c.Symbol
		if sym == "" {
			sym = c.Underlying
		}
		out = append(out, PortfolioContract{
			ContractID:   toInt64(c.ContractID),
			Symbol:       sym,
			ContractType: c.ContractType,
			BuyPrice:     toFloat(c.BuyPrice),
			Payout:       toFloat(c.Payout),
			PurchaseTime: toInt64(c.PurchaseTime),
			ExpiryTime:   toInt64(c.ExpiryTime),
		})
	}
	return out, nil
}

// OpenContract is a proposal_open_contract update.
type OpenContract struct {
	ContractID   int64
	Symbol       string
	ContractType string
	BuyPrice     float64
	EntrySpot    float64
	CurrentSpot  float64
	ExitSpot     float64
	Profit       float64
	SellPrice    float64
	Status       string
	IsSold       bool
	IsExpired    bool
	DateStart    int64
}

// Settled reports whether the contract reached a terminal state.
func (c OpenContract) Settled() bool {
	switch c.Status {
	case "won", "lost", "sold":
		return true
	}
	return c.IsSold || c.IsExpired
}

func parseOpenContract(raw json.RawMessage) (OpenContract, error) {
	var c struct {
		ContractID   any    `json:"contract_id"`
		Underlying   string `json:"underlying"`
		ContractType string `json:"contract_type"`
		BuyPrice     any    `json:"buy_price"`
		EntrySpot    any    `json:"entry_spot"`
		CurrentSpot  any    `json:"current_spot"`
		ExitTick     any    `json:"exit_tick"`
		Profit       any    `json:"profit"`
		SellPrice    any    `json:"sell_price"`
		Status       string `json:"status"`
		IsSold       any    `json:"is_sold"`
		IsExpired    any    `json:"is_expired"`
		DateStart    any    `json:"date_start"`
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return OpenContract{}, err
	}
	return OpenContract{
		ContractID:   toInt64(c.ContractID),
		Symbol:       c.Underlying,
		ContractType: c.ContractType,
		BuyPrice:     toFloat(c.BuyPrice),
		EntrySpot:    toFloat(c.EntrySpot),
		CurrentSpot:  toFloat(c.CurrentSpot),
		ExitSpot:     toFloat(c.ExitTick),
		Profit:       toFloat(c.Profit),
		SellPrice:    toFloat(c.SellPrice),
		Status:       strings.ToLower(c.Status),
		IsSold:       toBool(c.IsSold),
		IsExpired:    toBool(c.IsExpired),
		DateStart:    toInt64(c.DateStart),
	}, nil
}

// ContractSpec is one tradable entry of a contracts_for response. Limits
// are zero when the broker omits them.
type ContractSpec struct {
	ContractType     string
	ContractCategory string
	MinStake         float64
	MaxStake         float64
	Multipliers      []float64
}

func parseContractsFor(raw json.RawMessage) ([]ContractSpec, error) {
	var cf struct {
		Available []struct {
			ContractType       string `json:"contract_type"`
			ContractCategory   string `json:"contract_category"`
			MinStake           any    `json:"min_stake"`
			MinContractMeasure any    `json:"min_contract_measure"`
			MaxStake           any    `json:"max_stake"`
			MaxContractMeasure any    `json:"max_contract_measure"`
			Multipliers        []any  `json:"multiplier_range"`
		} `json:"available"`
	}
	if err := json.Unmarshal(raw, &cf); err != nil {
		return nil, err
	}
	out := make([]ContractSpec, 0, len(cf.Available))
	for _, a := range cf.Available {
		spec := ContractSpec{
			ContractType:     a.ContractType,
			ContractCategory: a.ContractCategory,
			MinStake:         firstPositive(a.MinStake, a.MinContractMeasure),
			MaxStake:         firstPositive(a.MaxStake, a.MaxContractMeasure),
		}
		for _, m := range a.Multipliers {
			spec.Multipliers = append(spec.Multipliers, toFloat(m))
		}
		out = append(out, spec)
	}
	return out, nil
}

// Quote is a proposal response.
type Quote struct {
	ID       string
	AskPrice float64
	Payout   float64
	Spot     float64
}

func parseQuote(raw json.RawMessage) (Quote, error) {
	var q struct {
		ID       string `json:"id"`
		AskPrice any    `json:"ask_price"`
		Payout   any    `json:"payout"`
		Spot     any    `json:"spot"`
	}
	if err := json.Unmarshal(raw, &q); err != nil {
		return Quote{}, err
	}
	return Quote{ID: q.ID, AskPrice: toFloat(q.AskPrice), Payout: toFloat(q.Payout), Spot: toFloat(q.Spot)}, nil
}

// BuyReceipt is the buy acknowledgment.
type BuyReceipt struct {
	ContractID    int64
	TransactionID int64
	BuyPrice      float64
	BalanceAfter  float64
	StartTime     int64
	Longcode      string
}

func parseBuyReceipt(raw json.RawMessage) (BuyReceipt, error) {
	var b struct {
		ContractID    any    `json:"contract_id"`
		TransactionID any    `json:"transaction_id"`
		BuyPrice      any    `json:"buy_price"`
		BalanceAfter  any    `json:"balance_after"`
		StartTime     any    `json:"start_time"`
		Longcode      string `json:"longcode"`
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return BuyReceipt{}, err
	}
	return BuyReceipt{
		ContractID:    toInt64(b.ContractID),
		TransactionID: toInt64(b.TransactionID),
		BuyPrice:      toFloat(b.BuyPrice),
		BalanceAfter:  toFloat(b.BalanceAfter),
		StartTime:     toInt64(b.StartTime),
		Longcode:      b.Longcode,
	}, nil
}

// SellReceipt is the sell acknowledgment.
type SellReceipt struct {
	ContractID    int64
	TransactionID int64
	SoldFor       float64
	BalanceAfter  float64
}

func parseSellReceipt(raw json.RawMessage) (SellReceipt, error) {
	var s struct {
		ContractID    any `json:"contract_id"`
		TransactionID any `json:"transaction_id"`
		SoldFor       any `json:"sold_for"`
		BalanceAfter  any `json:"balance_after"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return SellReceipt{}, err
	}
	return SellReceipt{
		ContractID:    toInt64(s.ContractID),
		TransactionID: toInt64(s.TransactionID),
		SoldFor:       toFloat(s.SoldFor),
		BalanceAfter:  toFloat(s.BalanceAfter),
	}, nil
}

func firstPositive(vals ...any) float64 {
	for _, v := range vals {
		if f := toFloat(v); f > 0 {
			return f
		}
	}
	return 0
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			f, _ := t.Float64()
			return int64(f)
		}
		return i
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		f, _ := strconv.ParseFloat(s, 64)
		return int64(f)
	default:
		return 0
	}
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	default:
		return toFloat(v) != 0
	}
}
