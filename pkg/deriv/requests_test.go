package deriv

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProposalDurationContract(t *testing.T) {
	req := Proposal(ProposalParams{
		Symbol: "R_100", ContractType: "CALL", Amount: 1.5, Basis: "stake", Currency: "USD",
		Duration: 5, DurationUnit: "t", Multiplier: 20, StopLoss: 1, TakeProfit: 2,
	})
	require.Equal(t, 1, req["proposal"])
	require.Equal(t, 1, req["subscribe"])
	require.Equal(t, 5, req["duration"])
	require.Equal(t, "t", req["duration_unit"])
	require.NotContains(t, req, "multiplier")
	require.NotContains(t, req, "limit_order")
}

func TestProposalMultiplierContract(t *testing.T) {
	req := Proposal(ProposalParams{
		Symbol: "R_100", ContractType: "MULTUP", Amount: 2, Basis: "stake", Currency: "USD",
		Duration: 5, DurationUnit: "t", Multiplier: 40, StopLoss: 0.8, TakeProfit: 1.2,
	})
	require.Equal(t, 40, req["multiplier"])
	require.NotContains(t, req, "duration")
	require.Equal(t, map[string]any{"stop_loss": 0.8, "take_profit": 1.2}, req["limit_order"])
}

func TestTradeRequestsWireFormat(t *testing.T) {
	buy, err := json.Marshal(Buy("abc-123", 10000))
	require.NoError(t, err)
	require.JSONEq(t, `{"buy":"abc-123","price":10000}`, string(buy))

	sell, err := json.Marshal(Sell(987654321))
	require.NoError(t, err)
	require.JSONEq(t, `{"sell":987654321,"price":0}`, string(sell))

	ticks, err := json.Marshal(Ticks("R_100"))
	require.NoError(t, err)
	require.JSONEq(t, `{"ticks":"R_100","subscribe":1}`, string(ticks))
}

func TestRequestType(t *testing.T) {
	require.Equal(t, "proposal_open_contract", requestType(OpenContracts()))
	require.Equal(t, "balance", requestType(BalanceStream()))
	require.Equal(t, "contracts_for", requestType(ContractsForRequest("R_100")))
	require.Equal(t, "unknown", requestType(Request{"foo": 1}))
}
