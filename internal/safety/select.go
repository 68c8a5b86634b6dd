package safety

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"deriv-core/pkg/config"
)

// Select picks the engine at startup. With an address it probes the native
// engine's state and initializes it; any failure falls back to the
// in-process engine. The returned engine also falls back per call.
func Select(ctx context.Context, addr string, s config.Settings, log zerolog.Logger, opts ...grpc.DialOption) (Engine, func() error) {
	local := NewInProcess()
	if err := local.Init(ctx, s); err != nil {
		log.Error().Err(err).Msg("in-process safety engine init failed")
	}
	noop := func() error { return nil }
	if addr == "" {
		log.Info().Str("engine", local.Name()).Msg("safety engine selected")
		return local, noop
	}

	native, err := NewNative(addr, log, opts...)
	if err != nil {
		log.Warn().Err(err).Msg("native safety engine unavailable, using in-process")
		return local, noop
	}
	if _, err := native.State(ctx); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("native safety engine probe failed, using in-process")
		_ = native.Close()
		return local, noop
	}
	if err := native.Init(ctx, s); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("native safety engine init failed, using in-process")
		_ = native.Close()
		return local, noop
	}
	log.Info().Str("engine", native.Name()).Str("addr", addr).Msg("safety engine selected")
	return &fallback{primary: native, local: local, log: log}, native.Close
}

// fallback answers from the local engine whenever the primary errors.
type fallback struct {
	primary Engine
	local   Engine
	log     zerolog.Logger
}

func (f *fallback) Name() string { return f.primary.Name() }

func (f *fallback) Init(ctx context.Context, s config.Settings) error {
	if err := f.local.Init(ctx, s); err != nil {
		return err
	}
	if err := f.primary.Init(ctx, s); err != nil {
		f.log.Warn().Err(err).Msg("native safety init failed")
	}
	return nil
}

func (f *fallback) ProcessTick(ctx context.Context, t Tick) (Verdict, error) {
	v, err := f.primary.ProcessTick(ctx, t)
	if err != nil {
		return f.local.ProcessTick(ctx, t)
	}
	return v, nil
}

func (f *fallback) ExecuteTrade(ctx context.Context, p TradeParams) (Approval, error) {
	a, err := f.primary.ExecuteTrade(ctx, p)
	if err != nil {
		f.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("native safety check failed, using in-process")
		return f.local.ExecuteTrade(ctx, p)
	}
	return a, nil
}

func (f *fallback) State(ctx context.Context) (State, error) {
	st, err := f.primary.State(ctx)
	if err != nil {
		return f.local.State(ctx)
	}
	return st, nil
}
