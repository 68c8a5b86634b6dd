package safety

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"deriv-core/pkg/config"
)

const callTimeout = 2 * time.Second

// Native delegates to an out-of-process safety engine over gRPC.
type Native struct {
	conn *grpc.ClientConn
	log  zerolog.Logger
}

func NewNative(addr string, log zerolog.Logger, opts ...grpc.DialOption) (*Native, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial safety engine %s: %w", addr, err)
	}
	return &Native{
		conn: conn,
		log:  log.With().Str("component", "safety_native").Str("addr", addr).Logger(),
	}, nil
}

func (n *Native) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

func (n *Native) Name() string { return "native" }

func (n *Native) Init(ctx context.Context, s config.Settings) error {
	return n.call(ctx, "Init", s, nil)
}

func (n *Native) ProcessTick(ctx context.Context, t Tick) (Verdict, error) {
	var v Verdict
	err := n.call(ctx, "ProcessTick", t, &v)
	return v, err
}

func (n *Native) ExecuteTrade(ctx context.Context, p TradeParams) (Approval, error) {
	var a Approval
	err := n.call(ctx, "ExecuteTrade", p, &a)
	return a, err
}

func (n *Native) State(ctx context.Context) (State, error) {
	var st State
	err := n.call(ctx, "GetState", struct{}{}, &st)
	return st, err
}

func (n *Native) call(ctx context.Context, name string, in, out any) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp := new(structpb.Struct)
	if err := n.conn.Invoke(ctx, method(name), req, resp); err != nil {
		return fmt.Errorf("safety %s: %w", name, err)
	}
	if out == nil {
		return nil
	}
	return fromStruct(resp, out)
}
