package execution

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"deriv-core/internal/market"
	"deriv-core/pkg/config"
	"deriv-core/pkg/deriv"
)

// Broker is the part of the connector the gateway trades through.
// *deriv.Client implements it, as does Paper.
type Broker interface {
	SpecFetcher
	Proposal(ctx context.Context, p deriv.ProposalParams) (deriv.Quote, *deriv.Response, error)
	Buy(ctx context.Context, proposalID string, price float64) (deriv.BuyReceipt, *deriv.Response, error)
	Sell(ctx context.Context, contractID int64) (deriv.SellReceipt, *deriv.Response, error)
}

// Order is a sized trade intent.
type Order struct {
	Symbol       string      `json:"symbol"`
	Side         market.Side `json:"action"`
	ContractType string      `json:"contract_type,omitempty"`
	Stake        float64     `json:"lots"`
	Price        float64     `json:"price"`
	SLDistance   float64     `json:"sl_distance"`
	TPDistance   float64     `json:"tp_distance"`
	Strategy     string      `json:"strategy"`
	Confidence   int         `json:"confidence"`
}

// Gateway re-validates every order against freshly fetched contract limits,
// quotes it, buys it and audits the attempt. Submissions are serialized; an
// order arriving while another is in flight is dropped.
type Gateway struct {
	broker Broker
	specs  *SpecCache
	audit  *AuditLog
	log    zerolog.Logger

	submit   sync.Mutex
	mu       sync.RWMutex
	settings config.Settings
}

// NewGateway wires a gateway. audit may be nil.
func NewGateway(broker Broker, s config.Settings, audit *AuditLog, log zerolog.Logger) *Gateway {
	log = log.With().Str("component", "gateway").Logger()
	return &Gateway{
		broker:   broker,
		specs:    NewSpecCache(broker, s.ContractSpecTTL(), log),
		audit:    audit,
		log:      log,
		settings: s,
	}
}

// UpdateSettings applies live settings to subsequent submissions.
func (g *Gateway) UpdateSettings(s config.Settings) {
	g.mu.Lock()
	g.settings = s
	g.mu.Unlock()
	g.specs.SetTTL(s.ContractSpecTTL())
}

func (g *Gateway) current() config.Settings {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings
}

// Submit runs the validate, quote, buy sequence for o.
func (g *Gateway) Submit(ctx context.Context, o Order) Result {
	if !g.submit.TryLock() {
		g.log.Warn().Str("symbol", o.Symbol).Str("side", string(o.Side)).Msg("submission in flight, order dropped")
		return Result{Kind: KindBusy, Symbol: o.Symbol, Reason: "submission in flight"}
	}
	defer g.submit.Unlock()

	s := g.current()
	log := g.log.With().Str("symbol", o.Symbol).Str("side", string(o.Side)).Logger()

	specs, err := g.specs.Get(ctx, o.Symbol)
	if err != nil {
		res := failure(classify(err), o.Symbol, err)
		res.AuditID = g.auditError(o.Symbol, "contracts_for", err)
		log.Error().Err(err).Str("kind", string(res.Kind)).Msg("contract spec fetch failed")
		return res
	}

	v, err := ValidateAndClamp(specs, ContractTypeFor(o.Side, o.ContractType), o.Stake, log)
	if err != nil {
		g.specs.Invalidate(o.Symbol)
		res := failure(KindValidationRejected, o.Symbol, err)
		res.AuditID = g.auditError(o.Symbol, "validate_and_clamp", err)
		log.Error().Err(err).Msg("order failed validation")
		return res
	}

	res := Result{Symbol: o.Symbol, ContractType: v.ContractType, Stake: v.AdjustedStake, Validation: &v}

	params := BuildProposal(s, o, v)
	quote, resp, err := g.broker.Proposal(ctx, params)
	if err != nil {
		return g.rejected(res, o, &v, resp, err, "proposal")
	}
	res.Quote = quote

	receipt, resp, err := g.broker.Buy(ctx, quote.ID, s.BuyPriceCeiling)
	if err != nil {
		return g.rejected(res, o, &v, resp, err, "buy")
	}
	res.Kind = KindOK
	res.Receipt = receipt
	res.AuditID = g.auditTrade(o, &v, responseOr(resp, receipt))

	log.Info().
		Int64("contract_id", receipt.ContractID).
		Str("contract_type", v.ContractType).
		Float64("stake", v.AdjustedStake).
		Float64("buy_price", receipt.BuyPrice).
		Msg("contract bought")
	return res
}

// Close sells an open contract at market.
func (g *Gateway) Close(ctx context.Context, symbol string, contractID int64, reason string) Result {
	sale, resp, err := g.broker.Sell(ctx, contractID)
	req := map[string]any{"contract_id": contractID, "reason": reason}
	if err != nil {
		res := failure(classify(err), symbol, err)
		if g.audit != nil {
			res.AuditID = g.audit.Close(symbol, req, responseOr(resp, map[string]string{"error": err.Error()}))
		}
		g.log.Error().Err(err).Str("symbol", symbol).Int64("contract_id", contractID).Msg("sell failed")
		return res
	}
	res := Result{Kind: KindOK, Symbol: symbol, Sale: sale}
	if g.audit != nil {
		res.AuditID = g.audit.Close(symbol, req, responseOr(resp, sale))
	}
	g.log.Info().Str("symbol", symbol).Int64("contract_id", contractID).Float64("sold_for", sale.SoldFor).Str("reason", reason).Msg("contract sold")
	return res
}

func (g *Gateway) rejected(res Result, o Order, v *Validation, resp *deriv.Response, err error, step string) Result {
	res.Kind = classify(err)
	res.Reason = err.Error()
	res.Err = err
	if res.Kind == KindBrokerRejected || res.Kind == KindValidationRejected {
		// The quote was refused against the cached limits; refetch next time.
		g.specs.Invalidate(o.Symbol)
	}
	res.AuditID = g.auditTrade(o, v, responseOr(resp, map[string]string{"error": err.Error(), "step": step}))
	g.log.Error().Err(err).Str("symbol", o.Symbol).Str("step", step).Str("kind", string(res.Kind)).Msg("order rejected")
	return res
}

func (g *Gateway) auditTrade(o Order, v *Validation, response any) string {
	if g.audit == nil {
		return ""
	}
	return g.audit.Trade(o.Symbol, o, v, response)
}

func (g *Gateway) auditError(symbol, step string, err error) string {
	if g.audit == nil {
		return ""
	}
	return g.audit.Error(symbol, step, err)
}

func responseOr(resp *deriv.Response, fallback any) any {
	if resp != nil && len(resp.Raw) > 0 {
		return resp.Raw
	}
	return fallback
}
