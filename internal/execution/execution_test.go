package execution

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"deriv-core/internal/market"
	"deriv-core/pkg/config"
	"deriv-core/pkg/deriv"
)

type fakeBroker struct {
	mu        sync.Mutex
	specs     []deriv.ContractSpec
	specErr   error
	fetches   atomic.Int32
	proposals []deriv.ProposalParams
	buyErr    error
	hold      chan struct{}
	entered   chan struct{}
	sold      []int64
}

func (f *fakeBroker) ContractsFor(context.Context, string) ([]deriv.ContractSpec, error) {
	f.fetches.Add(1)
	if f.specErr != nil {
		return nil, f.specErr
	}
	return f.specs, nil
}

func (f *fakeBroker) Proposal(_ context.Context, p deriv.ProposalParams) (deriv.Quote, *deriv.Response, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	f.proposals = append(f.proposals, p)
	f.mu.Unlock()
	return deriv.Quote{ID: "q-1", AskPrice: p.Amount}, nil, nil
}

func (f *fakeBroker) Buy(context.Context, string, float64) (deriv.BuyReceipt, *deriv.Response, error) {
	if f.buyErr != nil {
		return deriv.BuyReceipt{}, nil, f.buyErr
	}
	return deriv.BuyReceipt{ContractID: 42, BuyPrice: 1, StartTime: 1700000000}, nil, nil
}

func (f *fakeBroker) Sell(_ context.Context, id int64) (deriv.SellReceipt, *deriv.Response, error) {
	f.mu.Lock()
	f.sold = append(f.sold, id)
	f.mu.Unlock()
	return deriv.SellReceipt{ContractID: id, SoldFor: 1.5}, nil, nil
}

func callPut(min, max float64) []deriv.ContractSpec {
	return []deriv.ContractSpec{
		{ContractType: "CALL", MinStake: min, MaxStake: max},
		{ContractType: "PUT", MinStake: min, MaxStake: max},
	}
}

func TestValidateAndClamp(t *testing.T) {
	tests := []struct {
		name         string
		specs        []deriv.ContractSpec
		contract     string
		stake        float64
		want         float64
		wantType     string
		wantFallback bool
	}{
		{name: "below minimum", specs: callPut(1, 100), contract: "CALL", stake: 0.35, want: 1, wantType: "CALL"},
		{name: "above maximum", specs: callPut(1, 100), contract: "PUT", stake: 250, want: 100, wantType: "PUT"},
		{name: "inside range rounded", specs: callPut(0.35, 100), contract: "CALL", stake: 1.234, want: 1.23, wantType: "CALL"},
		{name: "missing limits use defaults", specs: callPut(0, 0), contract: "CALL", stake: 0.1, want: 0.35, wantType: "CALL"},
		{name: "fallback to first entry", specs: callPut(0.5, 100), contract: "MULTUP", stake: 2, want: 2, wantType: "CALL", wantFallback: true},
		{name: "sub-cent maximum floors", specs: callPut(1, 99.999), contract: "CALL", stake: 250, want: 99.99, wantType: "CALL"},
		{name: "rounding past maximum floors", specs: callPut(1, 9.999), contract: "CALL", stake: 9.996, want: 9.99, wantType: "CALL"},
		{name: "sub-cent minimum ceils", specs: callPut(0.351, 100), contract: "PUT", stake: 0.1, want: 0.36, wantType: "PUT"},
		{name: "multiplier minimum", specs: []deriv.ContractSpec{{ContractType: "MULTUP", MinStake: 0.35, MaxStake: 100}}, contract: "MULTUP", stake: 0.5, want: 1, wantType: "MULTUP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ValidateAndClamp(tt.specs, tt.contract, tt.stake, zerolog.Nop())
			require.NoError(t, err)
			require.Equal(t, tt.want, v.AdjustedStake)
			require.Equal(t, tt.wantType, v.ContractType)
			require.Equal(t, tt.wantFallback, v.Fallback)
			require.Equal(t, tt.stake, v.OriginalStake)
		})
	}

	_, err := ValidateAndClamp(nil, "CALL", 1, zerolog.Nop())
	require.ErrorIs(t, err, ErrNoContracts)
}

func TestSpecCacheTTLAndSingleflight(t *testing.T) {
	fb := &fakeBroker{specs: callPut(1, 100)}
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	c := NewSpecCache(fb, 5*time.Second, zerolog.Nop()).WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := c.Get(ctx, "R_100")
	require.NoError(t, err)
	_, err = c.Get(ctx, "R_100")
	require.NoError(t, err)
	require.EqualValues(t, 1, fb.fetches.Load())

	now = now.Add(5 * time.Second)
	_, err = c.Get(ctx, "R_100")
	require.NoError(t, err)
	require.EqualValues(t, 2, fb.fetches.Load(), "expired specs must be refetched")

	c.SetTTL(0)
	_, _ = c.Get(ctx, "R_100")
	_, _ = c.Get(ctx, "R_100")
	require.EqualValues(t, 4, fb.fetches.Load(), "zero TTL fetches every time")
}

func newTestGateway(t *testing.T, fb *fakeBroker) (*Gateway, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	audit, err := OpenAudit(path, nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { audit.Shutdown() })
	return NewGateway(fb, config.DefaultSettings(), audit, zerolog.Nop()), path
}

func TestGatewayClampsToFreshMinimum(t *testing.T) {
	fb := &fakeBroker{specs: callPut(1, 100)}
	gw, path := newTestGateway(t, fb)

	res := gw.Submit(context.Background(), Order{Symbol: "R_100", Side: market.Buy, Stake: 0.35, Price: 100, Strategy: "trend", Confidence: 80})
	require.True(t, res.OK(), res.Reason)
	require.Equal(t, 1.0, res.Stake)
	require.EqualValues(t, 42, res.Receipt.ContractID)
	require.Len(t, fb.proposals, 1)
	require.Equal(t, 1.0, fb.proposals[0].Amount)
	require.Equal(t, "CALL", fb.proposals[0].ContractType)
	require.Equal(t, 5, fb.proposals[0].Duration)

	entries, err := LoadAudit(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, AuditTradeExecution, entries[0].Event)
	require.Equal(t, res.AuditID, entries[0].ID)
	require.NotNil(t, entries[0].Adjusted)
	require.Equal(t, 0.35, entries[0].Adjusted.OriginalStake)
	require.Equal(t, [2]float64{1, 100}, entries[0].Adjusted.Range)
}

func TestGatewayFailures(t *testing.T) {
	tests := []struct {
		name   string
		broker *fakeBroker
		want   Kind
		event  string
	}{
		{name: "spec timeout", broker: &fakeBroker{specErr: deriv.ErrTimeout}, want: KindTimeout, event: AuditError},
		{name: "connection lost", broker: &fakeBroker{specErr: deriv.ErrConnection}, want: KindConnection, event: AuditError},
		{name: "no contracts", broker: &fakeBroker{}, want: KindValidationRejected, event: AuditError},
		{
			name:   "buy rejected",
			broker: &fakeBroker{specs: callPut(0.35, 100), buyErr: &deriv.APIError{Code: "InsufficientBalance", Message: "no funds"}},
			want:   KindBrokerRejected,
			event:  AuditTradeExecution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, path := newTestGateway(t, tt.broker)
			res := gw.Submit(context.Background(), Order{Symbol: "R_50", Side: market.Sell, Stake: 2})
			require.Equal(t, tt.want, res.Kind)
			require.NotEmpty(t, res.Reason)
			require.Error(t, res.Err)

			entries, err := LoadAudit(path)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, tt.event, entries[0].Event)
		})
	}
}

func TestGatewayRefetchesSpecsAfterRejection(t *testing.T) {
	tests := []struct {
		name   string
		broker *fakeBroker
	}{
		{name: "no contracts listed", broker: &fakeBroker{}},
		{name: "buy rejected", broker: &fakeBroker{specs: callPut(0.35, 100), buyErr: &deriv.APIError{Code: "ContractBuyValidationError", Message: "stake above limit"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, _ := newTestGateway(t, tt.broker)
			for range 2 {
				res := gw.Submit(context.Background(), Order{Symbol: "R_100", Side: market.Buy, Stake: 2})
				require.False(t, res.OK())
			}
			require.EqualValues(t, 2, tt.broker.fetches.Load(), "rejected specs must not be reused")
		})
	}

	fb := &fakeBroker{specs: callPut(0.35, 100)}
	gw, _ := newTestGateway(t, fb)
	for range 2 {
		require.True(t, gw.Submit(context.Background(), Order{Symbol: "R_100", Side: market.Buy, Stake: 2}).OK())
	}
	require.EqualValues(t, 1, fb.fetches.Load(), "accepted specs are reused within the TTL")
}

func TestGatewaySerializesSubmissions(t *testing.T) {
	fb := &fakeBroker{specs: callPut(0.35, 100), hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	gw, _ := newTestGateway(t, fb)

	done := make(chan Result, 1)
	go func() { done <- gw.Submit(context.Background(), Order{Symbol: "R_100", Side: market.Buy, Stake: 1}) }()
	<-fb.entered

	second := gw.Submit(context.Background(), Order{Symbol: "R_100", Side: market.Buy, Stake: 1})
	require.Equal(t, KindBusy, second.Kind)

	close(fb.hold)
	first := <-done
	require.True(t, first.OK())
	require.Len(t, fb.proposals, 1)
}

func TestGatewayClose(t *testing.T) {
	fb := &fakeBroker{}
	gw, path := newTestGateway(t, fb)

	res := gw.Close(context.Background(), "R_100", 42, "take_profit")
	require.True(t, res.OK())
	require.Equal(t, []int64{42}, fb.sold)

	entries, err := LoadAudit(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, AuditTradeClose, entries[0].Event)
}

func TestBuildProposalMultiplierLimits(t *testing.T) {
	s := config.DefaultSettings()
	o := Order{Symbol: "R_100", Side: market.Buy, Price: 100, SLDistance: 0.5, TPDistance: 0.7}

	p := BuildProposal(s, o, Validation{ContractType: "MULTUP", AdjustedStake: 10})
	require.Equal(t, 20, p.Multiplier)
	require.Equal(t, 1.0, p.StopLoss)
	require.Equal(t, 1.4, p.TakeProfit)

	p = BuildProposal(s, o, Validation{ContractType: "CALL", AdjustedStake: 10})
	require.Zero(t, p.StopLoss)
	require.Equal(t, "t", p.DurationUnit)
}

func TestClassify(t *testing.T) {
	require.Equal(t, KindTimeout, classify(context.DeadlineExceeded))
	require.Equal(t, KindConnection, classify(deriv.ErrClosed))
	require.Equal(t, KindBrokerRejected, classify(&deriv.APIError{Code: "x"}))
	require.Equal(t, KindBrokerRejected, classify(errors.New("boom")))
}
