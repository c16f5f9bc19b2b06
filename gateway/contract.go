package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/octopus-network/relay-client/logger"
	"github.com/octopus-network/relay-client/observability"
	"github.com/octopus-network/relay-client/types"
)

type (
	// Viewer executes read-only function call of the contract.
	Viewer interface {
		CallFunction(ctx context.Context, contract types.AccountID, method string, args []byte) ([]byte, error)
	}

	/*
		Sender executes state changing function call on behalf of the signed-in
		account. Implementation must not retry the call.
	*/
	Sender interface {
		FunctionCall(ctx context.Context, contract types.AccountID, method string, args []byte, gas types.Gas, deposit types.Amount) ([]byte, error)
	}

	/*
		Contract is the gateway adapter for single contract account. It turns named
		view and change calls into blocking calls and owns no business logic.
	*/
	Contract struct {
		id     types.AccountID
		viewer Viewer
		sender Sender
		log    *slog.Logger
		mtr    func(ctx context.Context, kind, method string, start time.Time, err error)
	}

	Option func(*Contract)
)

func WithLogger(log *slog.Logger) Option {
	return func(c *Contract) {
		c.log = log
	}
}

func WithMeter(mtr metric.Meter) Option {
	return func(c *Contract) {
		c.mtr = callMetrics(mtr, c.id, c.log)
	}
}

/*
NewContract creates gateway for contract "id". Sender may be nil in which case
the contract is read-only (Change calls fail with transport error).
*/
func NewContract(id types.AccountID, viewer Viewer, sender Sender, opts ...Option) (*Contract, error) {
	if id == "" {
		return nil, fmt.Errorf("contract account id is empty")
	}
	if viewer == nil {
		return nil, fmt.Errorf("viewer is nil")
	}
	c := &Contract{
		id:     id,
		viewer: viewer,
		sender: sender,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.mtr = callMetrics(noop.NewMeterProvider().Meter(""), id, c.log)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Contract) ID() types.AccountID { return c.id }

/*
View calls read only contract method. Views never attach deposit or gas and
are safe to repeat.
*/
func (c *Contract) View(ctx context.Context, method string, args any) (_ json.RawMessage, err error) {
	defer func(start time.Time) { c.mtr(ctx, "view", method, start, err) }(time.Now())

	b, err := encodeArgs(args)
	if err != nil {
		return nil, &Error{Kind: KindContractRejection, Method: method, Msg: err.Error(), Err: err}
	}
	c.log.DebugContext(ctx, "view call", logger.Method(method), slog.String("contract", c.id.String()))
	rsp, err := c.viewer.CallFunction(ctx, c.id, method, b)
	if err != nil {
		return nil, asGatewayErr(method, err)
	}
	return rsp, nil
}

/*
Change executes state changing contract method with given gas budget and
attached deposit. Change is not idempotent and it's never retried.
*/
func (c *Contract) Change(ctx context.Context, method string, args any, gas types.Gas, deposit types.Amount) (_ json.RawMessage, err error) {
	defer func(start time.Time) { c.mtr(ctx, "change", method, start, err) }(time.Now())

	if c.sender == nil {
		return nil, transportErr(method, fmt.Errorf("contract %s gateway is read-only", c.id))
	}
	b, err := encodeArgs(args)
	if err != nil {
		return nil, &Error{Kind: KindContractRejection, Method: method, Msg: err.Error(), Err: err}
	}
	c.log.InfoContext(ctx, "change call", logger.Method(method), slog.String("contract", c.id.String()),
		slog.String("gas", gas.String()), slog.String("deposit", deposit.String()))
	rsp, err := c.sender.FunctionCall(ctx, c.id, method, b, gas, deposit)
	if err != nil {
		return nil, asGatewayErr(method, err)
	}
	return rsp, nil
}

func encodeArgs(args any) ([]byte, error) {
	if args == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding call arguments: %w", err)
	}
	return b, nil
}

func callMetrics(mtr metric.Meter, contract types.AccountID, log *slog.Logger) func(ctx context.Context, kind, method string, start time.Time, err error) {
	callCnt, err := mtr.Int64Counter("calls", metric.WithDescription("Number of contract calls"))
	if err != nil {
		log.Error("creating calls counter", logger.Error(err))
		return func(context.Context, string, string, time.Time, error) { /* NOP */ }
	}
	callDur, err := mtr.Float64Histogram("duration",
		metric.WithDescription("How long the contract call took"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4))
	if err != nil {
		log.Error("creating duration histogram", logger.Error(err))
		return func(context.Context, string, string, time.Time, error) { /* NOP */ }
	}

	return func(ctx context.Context, kind, method string, start time.Time, err error) {
		status := observability.ErrStatus(err)
		if ge, ok := err.(*Error); ok && ge.Kind == KindContractRejection {
			status = observability.Status("rejected")
		}
		attr := metric.WithAttributeSet(attribute.NewSet(
			attribute.String("kind", kind),
			observability.Contract(string(contract)),
			observability.Method(method),
			status,
		))
		callCnt.Add(ctx, 1, attr)
		callDur.Record(ctx, time.Since(start).Seconds(), attr)
	}
}
