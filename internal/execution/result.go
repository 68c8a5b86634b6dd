package execution

import (
	"context"
	"errors"

	"deriv-core/pkg/deriv"
)

// Kind classifies the outcome of a gateway call.
type Kind string

const (
	KindOK                 Kind = "ok"
	KindValidationRejected Kind = "validation_rejected"
	KindBrokerRejected     Kind = "broker_rejected"
	KindTimeout            Kind = "timeout"
	KindConnection         Kind = "connection"
	// KindBusy means another submission was in flight; the order was dropped.
	KindBusy Kind = "busy"
)

// Result is returned by every gateway call. Failures are values, never
// panics.
type Result struct {
	Kind         Kind              `json:"kind"`
	Symbol       string            `json:"symbol"`
	ContractType string            `json:"contract_type,omitempty"`
	Stake        float64           `json:"stake"`
	Validation   *Validation       `json:"validation,omitempty"`
	Quote        deriv.Quote       `json:"quote"`
	Receipt      deriv.BuyReceipt  `json:"receipt"`
	Sale         deriv.SellReceipt `json:"sale"`
	AuditID      string            `json:"audit_id,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Err          error             `json:"-"`
}

// OK reports a successful call.
func (r Result) OK() bool { return r.Kind == KindOK }

func failure(kind Kind, symbol string, err error) Result {
	return Result{Kind: kind, Symbol: symbol, Reason: err.Error(), Err: err}
}

// classify maps connector errors onto result kinds.
func classify(err error) Kind {
	var apiErr *deriv.APIError
	switch {
	case errors.Is(err, deriv.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, deriv.ErrConnection), errors.Is(err, deriv.ErrClosed):
		return KindConnection
	case errors.Is(err, ErrNoContracts):
		return KindValidationRejected
	case errors.As(err, &apiErr):
		return KindBrokerRejected
	default:
		return KindBrokerRejected
	}
}
