package allowance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/octopus-network/relay-client/gateway"
	"github.com/octopus-network/relay-client/logger"
	"github.com/octopus-network/relay-client/types"
)

const ApproveGas types.Gas = 100_000_000_000_000

var (
	// ApproveDeposit is attached to the inc_allowance call.
	ApproveDeposit = types.Pow10(3, 22)

	/*
		MaxSentinel is the amount approved by Approve. It is a large fixed amount
		rather than the amount of the intended spend: one approval covers many
		stakes and the authorized spend may exceed what is actually used.
	*/
	MaxSentinel = types.MustParseAmount("999999999999999999999")
)

// State is the outcome of the allowance check.
type State struct {
	types.AllowanceState
	Sufficient bool
}

/*
Gate checks whether the spender contract is authorized to move the token of
the owner before value bearing action is offered.

Gate doesn't re-check the allowance after Approve, the caller must call Ensure
again to learn whether the gated action became available.
*/
type Gate struct {
	token   *gateway.Contract
	spender types.AccountID
	log     *slog.Logger
}

func NewGate(token *gateway.Contract, spender types.AccountID, log *slog.Logger) (*Gate, error) {
	if token == nil {
		return nil, errors.New("token contract gateway is nil")
	}
	if spender == "" {
		return nil, errors.New("spender account id is empty")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	return &Gate{token: token, spender: spender, log: log}, nil
}

func (g *Gate) Spender() types.AccountID { return g.spender }

/*
Ensure reads the current allowance of the "owner" for the spender. Any
nonzero allowance is considered sufficient.
*/
func (g *Gate) Ensure(ctx context.Context, owner types.AccountID) (State, error) {
	if owner == "" {
		return State{}, errors.New("owner account id is empty")
	}
	amount, err := gateway.Query[types.Amount](ctx, g.token, gateway.AllowanceRequest{OwnerID: owner, EscrowAccountID: g.spender})
	if err != nil {
		return State{}, fmt.Errorf("reading allowance: %w", err)
	}
	st := State{
		AllowanceState: types.AllowanceState{Owner: owner, Spender: g.spender, Amount: amount},
		Sufficient:     !amount.IsZero(),
	}
	g.log.DebugContext(ctx, fmt.Sprintf("allowance of %s for %s is %s", owner, g.spender, amount), logger.Account(string(owner)))
	return st, nil
}

/*
Approve authorizes the spender to move MaxSentinel amount of tokens on behalf
of the signed-in account.
*/
func (g *Gate) Approve(ctx context.Context) error {
	req := gateway.IncAllowanceRequest{EscrowAccountID: g.spender, Amount: MaxSentinel}
	if err := gateway.Submit(ctx, g.token, req, ApproveGas, ApproveDeposit); err != nil {
		return fmt.Errorf("approving allowance: %w", err)
	}
	g.log.InfoContext(ctx, fmt.Sprintf("approved %s to spend tokens", g.spender))
	return nil
}

// Balance returns token balance of the account.
func (g *Gate) Balance(ctx context.Context, owner types.AccountID) (types.Amount, error) {
	amount, err := gateway.Query[types.Amount](ctx, g.token, gateway.BalanceRequest{OwnerID: owner})
	if err != nil {
		return types.Amount{}, fmt.Errorf("reading balance: %w", err)
	}
	return amount, nil
}
