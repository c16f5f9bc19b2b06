package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/relay-client/gateway"
	"github.com/octopus-network/relay-client/internal/testutils/ledger"
	testlogger "github.com/octopus-network/relay-client/internal/testutils/logger"
	"github.com/octopus-network/relay-client/types"
)

const (
	relayID types.AccountID = "relay.testnet"
	tokenID types.AccountID = "oct.testnet"
)

func newTestReader(t *testing.T, mode types.BondMode, opts ...Option) (*Reader, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(relayID, tokenID, ledger.Generation(mode))
	relay, err := gateway.NewContract(relayID, l, nil)
	require.NoError(t, err)
	token, err := gateway.NewContract(tokenID, l, nil)
	require.NoError(t, err)
	r, err := NewReader(relay, mode, testlogger.New(t), append([]Option{WithTokenContract(token)}, opts...)...)
	require.NoError(t, err)
	return r, l
}

func addAppchains(l *ledger.Ledger, n int) {
	for i := 0; i < n; i++ {
		l.AddAppchain(ledger.Appchain{
			Name:    fmt.Sprintf("chain-%d", i),
			Founder: types.AccountID(fmt.Sprintf("founder%d.testnet", i)),
			Bond:    types.NewAmount(uint64(100 * (i + 1))),
			Validators: []ledger.Validator{
				{ID: "v", Account: "bob.testnet", Staked: types.NewAmount(10)},
			},
		})
	}
}

func TestNewReader(t *testing.T) {
	log := testlogger.New(t)
	_, err := NewReader(nil, types.BondModeToken, log)
	require.EqualError(t, err, "relay contract gateway is nil")

	relay, err := gateway.NewContract(relayID, ledger.New(relayID, tokenID, ledger.GenerationToken), nil)
	require.NoError(t, err)
	_, err = NewReader(relay, "foo", log)
	require.ErrorContains(t, err, `unknown bond mode "foo"`)
	_, err = NewReader(relay, types.BondModeToken, nil)
	require.EqualError(t, err, "logger is nil")
}

func TestReader_ListAppchains(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			r, l := newTestReader(t, types.BondModeToken)
			addAppchains(l, n)
			l.SetBalance(relayID, types.NewAmount(777))
			require.Nil(t, r.Snapshot())

			snap, err := r.ListAppchains(context.Background())
			require.NoError(t, err)
			require.Same(t, snap, r.Snapshot())
			require.EqualValues(t, n, snap.Overview.NumAppchains)
			require.Equal(t, fmt.Sprintf("%d", 10*n), snap.Overview.TotalStaked.String())
			require.Equal(t, "100", snap.Overview.MinimumStaking.String())
			require.Equal(t, "777", snap.Overview.RelayBalance.String())
			require.Len(t, snap.Appchains, n)
			for i, ac := range snap.Appchains {
				require.Equal(t, i, ac.ID)
				require.Equal(t, fmt.Sprintf("chain-%d", i), ac.Name)
				require.Equal(t, fmt.Sprintf("%d", 100*(i+1)), ac.BondAmount.String())
				require.True(t, ac.HasStakeFrom("bob.testnet"))
			}
		})
	}
}

func TestReader_ListAppchains_paged(t *testing.T) {
	r, l := newTestReader(t, types.BondModeToken, WithPageSize(2))
	addAppchains(l, 5)

	var calls atomic.Int32
	l.SetHook("get_appchains", func(context.Context, []byte) error {
		calls.Add(1)
		return nil
	})

	snap, err := r.ListAppchains(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
	require.Len(t, snap.Appchains, 5)
	for i, ac := range snap.Appchains {
		require.Equal(t, i, ac.ID)
		require.Equal(t, fmt.Sprintf("chain-%d", i), ac.Name)
	}
}

func TestReader_ListAppchains_failureKeepsSnapshot(t *testing.T) {
	r, l := newTestReader(t, types.BondModeToken)
	addAppchains(l, 2)

	snap, err := r.ListAppchains(context.Background())
	require.NoError(t, err)

	addAppchains(l, 1)
	for _, method := range []string{"get_num_appchains", "get_total_staked_balance", "get_minium_staking_amount", "get_balance", "get_appchains"} {
		t.Run(method, func(t *testing.T) {
			l.SetHook(method, func(context.Context, []byte) error { return errors.New("node is down") })
			defer l.SetHook(method, nil)

			s, err := r.ListAppchains(context.Background())
			require.ErrorIs(t, err, gateway.ErrTransport)
			require.ErrorContains(t, err, "node is down")
			require.Nil(t, s)
			require.Same(t, snap, r.Snapshot())
		})
	}

	require.NoError(t, r.Refresh(context.Background()))
	require.NotSame(t, snap, r.Snapshot())
	require.Len(t, r.Snapshot().Appchains, 3)
}

type stubViewer map[string]string

func (sv stubViewer) CallFunction(_ context.Context, _ types.AccountID, method string, _ []byte) ([]byte, error) {
	if rsp, ok := sv[method]; ok {
		return []byte(rsp), nil
	}
	return nil, &gateway.Error{Kind: gateway.KindContractRejection, Msg: "MethodNotFound"}
}

func TestReader_ListAppchains_countMismatch(t *testing.T) {
	relay, err := gateway.NewContract(relayID, stubViewer{
		"get_num_appchains":        `2`,
		"get_total_staked_balance": `"0"`,
		"get_appchains":            `[]`,
	}, nil)
	require.NoError(t, err)
	r, err := NewReader(relay, types.BondModeNative, testlogger.New(t))
	require.NoError(t, err)

	_, err = r.ListAppchains(context.Background())
	require.EqualError(t, err, "reading appchains: registry returned 0 appchains, expected 2")
	require.Nil(t, r.Snapshot())
}

func TestReader_ListAppchains_unknownShape(t *testing.T) {
	relay, err := gateway.NewContract(relayID, stubViewer{
		"get_num_appchains":        `1`,
		"get_total_staked_balance": `"0"`,
		"get_appchains":            `[{"appchain_name":"x","founder_id":"alice","bogus":1}]`,
	}, nil)
	require.NoError(t, err)
	r, err := NewReader(relay, types.BondModeNative, testlogger.New(t))
	require.NoError(t, err)

	_, err = r.ListAppchains(context.Background())
	require.ErrorIs(t, err, gateway.ErrContractRejection)
}

func TestReader_ListAppchains_olderFetchDoesNotOverwrite(t *testing.T) {
	r, l := newTestReader(t, types.BondModeToken)
	addAppchains(l, 1)

	release := make(chan struct{})
	blocked := make(chan struct{})
	var first atomic.Bool
	l.SetHook("get_appchains", func(context.Context, []byte) error {
		if first.CompareAndSwap(false, true) {
			close(blocked)
			<-release
		}
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var older *Snapshot
	go func() {
		defer wg.Done()
		var err error
		older, err = r.ListAppchains(context.Background())
		require.NoError(t, err)
	}()
	<-blocked

	addAppchains(l, 1)
	newer, err := r.ListAppchains(context.Background())
	require.NoError(t, err)
	require.Len(t, newer.Appchains, 2)

	close(release)
	wg.Wait()
	require.Len(t, older.Appchains, 1)
	require.Same(t, newer, r.Snapshot())
}

func TestReader_nativeMode(t *testing.T) {
	r, l := newTestReader(t, types.BondModeNative)
	addAppchains(l, 2)

	var gotArgs string
	l.SetHook("get_appchain", func(_ context.Context, args []byte) error {
		gotArgs = string(args)
		return nil
	})
	l.SetHook("get_minium_staking_amount", func(context.Context, []byte) error {
		return errors.New("must not be called in native mode")
	})

	snap, err := r.ListAppchains(context.Background())
	require.NoError(t, err)
	require.Nil(t, snap.Overview.MinimumStaking)
	require.Nil(t, snap.Overview.RelayBalance)
	require.Len(t, snap.Appchains, 2)
	require.Equal(t, "100", snap.Appchains[0].BondAmount.String())
	require.EqualValues(t, 1, snap.Appchains[0].NumValidators)

	ac, err := r.GetAppchain(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "chain-1", ac.Name)
	require.Equal(t, 1, ac.ID)
	require.Equal(t, `{"id":1}`, gotArgs)

	idx, err := r.GetCurrentValidatorSetIndex(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, idx)

	vals, err := r.GetValidators(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	require.Equal(t, types.AccountID("bob.testnet"), vals[0].AccountID)
	require.Equal(t, "10", vals[0].StakedAmount.String())

	vs, err := r.GetValidatorSet(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, vs.Validators, 1)
	_, err = r.GetValidatorSet(context.Background(), 1, 1)
	require.EqualError(t, err, "appchain 1 has no validator set epoch 1")
}

func TestReader_GetDetail(t *testing.T) {
	r, l := newTestReader(t, types.BondModeToken)
	addAppchains(l, 2)
	l.NextEpoch(1)
	l.NextEpoch(1)

	d := r.GetDetail(context.Background(), 1)
	require.NoError(t, d.AppchainErr)
	require.NoError(t, d.IndexErr)
	require.Equal(t, "chain-1", d.Appchain.Name)
	require.EqualValues(t, 2, d.ValidatorSetIndex)
	require.EqualValues(t, 2, d.Appchain.ValidatorSetIndex)

	t.Run("index read fails independently", func(t *testing.T) {
		l.SetHook("get_curr_validator_set_index", func(context.Context, []byte) error { return errors.New("timeout") })
		defer l.SetHook("get_curr_validator_set_index", nil)

		d := r.GetDetail(context.Background(), 1)
		require.NoError(t, d.AppchainErr)
		require.Equal(t, "chain-1", d.Appchain.Name)
		require.ErrorIs(t, d.IndexErr, gateway.ErrTransport)
	})

	t.Run("appchain read fails independently", func(t *testing.T) {
		l.SetHook("get_appchain", func(context.Context, []byte) error { return errors.New("timeout") })
		defer l.SetHook("get_appchain", nil)

		d := r.GetDetail(context.Background(), 1)
		require.ErrorIs(t, d.AppchainErr, gateway.ErrTransport)
		require.Nil(t, d.Appchain)
		require.NoError(t, d.IndexErr)
		require.EqualValues(t, 2, d.ValidatorSetIndex)
	})

	t.Run("unknown appchain", func(t *testing.T) {
		d := r.GetDetail(context.Background(), 9)
		require.ErrorIs(t, d.AppchainErr, gateway.ErrContractRejection)
		require.ErrorIs(t, d.IndexErr, gateway.ErrContractRejection)
	})

	t.Run("negative id", func(t *testing.T) {
		d := r.GetDetail(context.Background(), -1)
		require.EqualError(t, d.AppchainErr, "invalid appchain id -1")
		require.EqualError(t, d.IndexErr, "invalid appchain id -1")
	})
}

func TestReader_GetValidatorSet(t *testing.T) {
	r, l := newTestReader(t, types.BondModeToken)
	idx := l.AddAppchain(ledger.Appchain{Name: "a", Founder: "alice.testnet"})
	l.AddAppchain(ledger.Appchain{Name: "b", Founder: "alice.testnet", Validators: []ledger.Validator{{ID: "v1", Account: "carol.testnet", OcwID: "ocw1", Staked: types.NewAmount(5)}}})
	l.NextEpoch(1)

	vs, err := r.GetValidatorSet(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Equal(t, 1, vs.AppchainID)
	require.EqualValues(t, 0, vs.EpochIndex)
	require.Len(t, vs.Validators, 1)
	require.Equal(t, "ocw1", vs.Validators[0].OffchainWorkerID)
	require.Equal(t, "5", vs.Validators[0].Weight.String())

	vs, err = r.GetValidatorSet(context.Background(), idx, 0)
	require.NoError(t, err)
	require.Empty(t, vs.Validators)

	_, err = r.GetValidatorSet(context.Background(), 1, 5)
	require.ErrorIs(t, err, gateway.ErrContractRejection)
	require.ErrorContains(t, err, "Validator set not found")
}
