package allowance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/relay-client/gateway"
	"github.com/octopus-network/relay-client/internal/testutils/ledger"
	testlogger "github.com/octopus-network/relay-client/internal/testutils/logger"
	"github.com/octopus-network/relay-client/session"
	"github.com/octopus-network/relay-client/types"
)

const (
	relayID types.AccountID = "relay.testnet"
	tokenID types.AccountID = "oct.testnet"
	bob     types.AccountID = "bob.testnet"
)

func newTestGate(t *testing.T) (*Gate, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(relayID, tokenID, ledger.GenerationToken)
	sc, err := session.New(nil)
	require.NoError(t, err)
	require.NoError(t, sc.SignIn(bob))
	token, err := gateway.NewContract(tokenID, l, l.AsSender(sc))
	require.NoError(t, err)
	g, err := NewGate(token, relayID, testlogger.New(t))
	require.NoError(t, err)
	return g, l
}

func TestNewGate(t *testing.T) {
	log := testlogger.New(t)
	_, err := NewGate(nil, relayID, log)
	require.EqualError(t, err, "token contract gateway is nil")

	l := ledger.New(relayID, tokenID, ledger.GenerationToken)
	token, err := gateway.NewContract(tokenID, l, nil)
	require.NoError(t, err)
	_, err = NewGate(token, "", log)
	require.EqualError(t, err, "spender account id is empty")
	_, err = NewGate(token, relayID, nil)
	require.EqualError(t, err, "logger is nil")
}

func TestGate_Ensure(t *testing.T) {
	var testCases = []struct {
		allowance  types.Amount
		sufficient bool
	}{
		{allowance: types.Amount{}, sufficient: false},
		{allowance: types.NewAmount(1), sufficient: true},
		{allowance: types.NewAmount(100), sufficient: true},
		{allowance: MaxSentinel, sufficient: true},
	}

	for _, tc := range testCases {
		t.Run(tc.allowance.String(), func(t *testing.T) {
			g, l := newTestGate(t)
			l.SetAllowance(bob, tc.allowance)

			st, err := g.Ensure(context.Background(), bob)
			require.NoError(t, err)
			require.Equal(t, tc.sufficient, st.Sufficient)
			require.Equal(t, bob, st.Owner)
			require.Equal(t, relayID, st.Spender)
			require.Zero(t, tc.allowance.Cmp(st.Amount))
		})
	}
}

func TestGate_Ensure_errors(t *testing.T) {
	g, l := newTestGate(t)

	_, err := g.Ensure(context.Background(), "")
	require.EqualError(t, err, "owner account id is empty")

	l.SetHook("get_allowance", func(context.Context, []byte) error { return errors.New("connection reset") })
	_, err = g.Ensure(context.Background(), bob)
	require.ErrorIs(t, err, gateway.ErrTransport)
	require.ErrorContains(t, err, "reading allowance")
}

func TestGate_Approve(t *testing.T) {
	g, l := newTestGate(t)

	st, err := g.Ensure(context.Background(), bob)
	require.NoError(t, err)
	require.False(t, st.Sufficient)

	require.NoError(t, g.Approve(context.Background()))

	calls := l.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, tokenID, calls[0].Contract)
	require.Equal(t, "inc_allowance", calls[0].Method)
	require.Equal(t, bob, calls[0].Signer)
	require.Equal(t, ApproveGas, calls[0].Gas)
	require.Equal(t, "30000000000000000000000", calls[0].Deposit.String())
	var args map[string]string
	require.NoError(t, json.Unmarshal(calls[0].Args, &args))
	require.Equal(t, map[string]string{"escrow_account_id": "relay.testnet", "amount": "999999999999999999999"}, args)

	// the gate doesn't cache, next check sees the approval
	st, err = g.Ensure(context.Background(), bob)
	require.NoError(t, err)
	require.True(t, st.Sufficient)
}

func TestGate_Approve_rejected(t *testing.T) {
	g, l := newTestGate(t)
	l.SetHook("inc_allowance", func(context.Context, []byte) error {
		return &gateway.Error{Kind: gateway.KindContractRejection, Msg: "Smart contract panicked: The account is not registered"}
	})
	err := g.Approve(context.Background())
	require.ErrorIs(t, err, gateway.ErrContractRejection)
	require.ErrorContains(t, err, "The account is not registered")
}

func TestGate_Balance(t *testing.T) {
	g, l := newTestGate(t)
	l.SetBalance(bob, types.Pow10(5, 24))
	b, err := g.Balance(context.Background(), bob)
	require.NoError(t, err)
	require.Equal(t, "5000000000000000000000000", b.String())
}
