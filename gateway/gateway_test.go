package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/relay-client/types"
)

type viewerFunc func(ctx context.Context, contract types.AccountID, method string, args []byte) ([]byte, error)

func (f viewerFunc) CallFunction(ctx context.Context, contract types.AccountID, method string, args []byte) ([]byte, error) {
	return f(ctx, contract, method, args)
}

type senderFunc func(ctx context.Context, contract types.AccountID, method string, args []byte, gas types.Gas, deposit types.Amount) ([]byte, error)

func (f senderFunc) FunctionCall(ctx context.Context, contract types.AccountID, method string, args []byte, gas types.Gas, deposit types.Amount) ([]byte, error) {
	return f(ctx, contract, method, args, gas, deposit)
}

func TestNewContract(t *testing.T) {
	v := viewerFunc(func(context.Context, types.AccountID, string, []byte) ([]byte, error) { return nil, nil })

	c, err := NewContract("", v, nil)
	require.EqualError(t, err, "contract account id is empty")
	require.Nil(t, c)

	c, err = NewContract("relay.testnet", nil, nil)
	require.EqualError(t, err, "viewer is nil")
	require.Nil(t, c)

	c, err = NewContract("relay.testnet", v, nil)
	require.NoError(t, err)
	require.Equal(t, types.AccountID("relay.testnet"), c.ID())
}

func TestContract_View(t *testing.T) {
	t.Run("arguments are encoded as JSON", func(t *testing.T) {
		var gotContract types.AccountID
		var gotMethod string
		var gotArgs []byte
		v := viewerFunc(func(_ context.Context, contract types.AccountID, method string, args []byte) ([]byte, error) {
			gotContract, gotMethod, gotArgs = contract, method, args
			return []byte(`42`), nil
		})
		c, err := NewContract("relay.testnet", v, nil)
		require.NoError(t, err)

		rsp, err := c.View(context.Background(), "get_appchains", AppchainsRequest{FromIndex: 0, Limit: 3})
		require.NoError(t, err)
		require.Equal(t, "42", string(rsp))
		require.Equal(t, types.AccountID("relay.testnet"), gotContract)
		require.Equal(t, "get_appchains", gotMethod)
		require.JSONEq(t, `{"from_index":0,"limit":3}`, string(gotArgs))

		_, err = c.View(context.Background(), "get_num_appchains", nil)
		require.NoError(t, err)
		require.Equal(t, "{}", string(gotArgs))
	})

	t.Run("unknown error is classified as transport error", func(t *testing.T) {
		v := viewerFunc(func(context.Context, types.AccountID, string, []byte) ([]byte, error) {
			return nil, errors.New("connection refused")
		})
		c, err := NewContract("relay.testnet", v, nil)
		require.NoError(t, err)

		_, err = c.View(context.Background(), "get_num_appchains", nil)
		require.ErrorIs(t, err, ErrTransport)
		require.NotErrorIs(t, err, ErrContractRejection)
		require.EqualError(t, err, `transport error calling "get_num_appchains": connection refused`)
	})

	t.Run("rejection is passed through", func(t *testing.T) {
		v := viewerFunc(func(_ context.Context, _ types.AccountID, method string, _ []byte) ([]byte, error) {
			return nil, rejection("", "Smart contract panicked: index out of bounds")
		})
		c, err := NewContract("relay.testnet", v, nil)
		require.NoError(t, err)

		_, err = c.View(context.Background(), "get_appchain", nil)
		require.ErrorIs(t, err, ErrContractRejection)
		var ge *Error
		require.ErrorAs(t, err, &ge)
		require.Equal(t, "get_appchain", ge.Method)
		require.Equal(t, "Smart contract panicked: index out of bounds", ge.Msg)
	})
}

func TestContract_Change(t *testing.T) {
	t.Run("read-only contract", func(t *testing.T) {
		v := viewerFunc(func(context.Context, types.AccountID, string, []byte) ([]byte, error) { return nil, nil })
		c, err := NewContract("relay.testnet", v, nil)
		require.NoError(t, err)

		_, err = c.Change(context.Background(), "unstaking", UnstakingRequest{AppchainID: 1}, 1, types.Amount{})
		require.ErrorIs(t, err, ErrTransport)
		require.ErrorContains(t, err, "gateway is read-only")
	})

	t.Run("gas and deposit are passed to the sender", func(t *testing.T) {
		calls := 0
		s := senderFunc(func(_ context.Context, contract types.AccountID, method string, args []byte, gas types.Gas, deposit types.Amount) ([]byte, error) {
			calls++
			require.Equal(t, types.AccountID("relay.testnet"), contract)
			require.Equal(t, "staking_more", method)
			require.JSONEq(t, `{"appchain_id":2,"amount":"100"}`, string(args))
			require.EqualValues(t, 300_000_000_000_000, gas)
			require.Equal(t, "30000000000000000000000", deposit.String())
			return nil, nil
		})
		v := viewerFunc(func(context.Context, types.AccountID, string, []byte) ([]byte, error) { return nil, nil })
		c, err := NewContract("relay.testnet", v, s)
		require.NoError(t, err)

		err = Submit(context.Background(), c, StakingMoreRequest{AppchainID: 2, Amount: types.NewAmount(100)}, 300_000_000_000_000, types.Pow10(3, 22))
		require.NoError(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("failed change call is not retried", func(t *testing.T) {
		calls := 0
		s := senderFunc(func(context.Context, types.AccountID, string, []byte, types.Gas, types.Amount) ([]byte, error) {
			calls++
			return nil, errors.New("timeout")
		})
		v := viewerFunc(func(context.Context, types.AccountID, string, []byte) ([]byte, error) { return nil, nil })
		c, err := NewContract("relay.testnet", v, s)
		require.NoError(t, err)

		err = Submit(context.Background(), c, UnstakingRequest{AppchainID: 2}, 1, types.Amount{})
		require.ErrorIs(t, err, ErrTransport)
		require.Equal(t, 1, calls)
	})
}

func TestQuery_strictDecoding(t *testing.T) {
	newContract := func(t *testing.T, rsp string) *Contract {
		v := viewerFunc(func(context.Context, types.AccountID, string, []byte) ([]byte, error) { return []byte(rsp), nil })
		c, err := NewContract("relay.testnet", v, nil)
		require.NoError(t, err)
		return c
	}

	t.Run("number", func(t *testing.T) {
		n, err := Query[uint64](context.Background(), newContract(t, `3`), NumAppchainsRequest{})
		require.NoError(t, err)
		require.EqualValues(t, 3, n)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := Query[uint64](context.Background(), newContract(t, `"three"`), NumAppchainsRequest{})
		require.ErrorIs(t, err, ErrContractRejection)
		require.ErrorContains(t, err, "unexpected response shape")
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Query[AppchainRecord](context.Background(), newContract(t, `{"appchain_name":"foo","founder_id":"bob","color":"red"}`), AppchainRequest{AppchainID: 1})
		require.ErrorIs(t, err, ErrContractRejection)
		require.ErrorContains(t, err, `unknown field "color"`)
	})

	t.Run("failed validation", func(t *testing.T) {
		_, err := Query[AppchainRecords](context.Background(), newContract(t, `[{"appchain_name":"foo","founder_id":"bob"},{"appchain_name":"bar"}]`), AppchainsRequest{Limit: 2})
		require.ErrorIs(t, err, ErrContractRejection)
		require.ErrorContains(t, err, "appchain[1]: founder_id: required field is missing")
	})

	t.Run("trailing data", func(t *testing.T) {
		_, err := Query[uint64](context.Background(), newContract(t, `1 2`), NumAppchainsRequest{})
		require.ErrorIs(t, err, ErrContractRejection)
	})

	t.Run("amount", func(t *testing.T) {
		a, err := Query[types.Amount](context.Background(), newContract(t, `"999999999999999999999"`), AllowanceRequest{OwnerID: "bob", EscrowAccountID: "relay"})
		require.NoError(t, err)
		require.Equal(t, "999999999999999999999", a.String())
	})
}

func TestAppchainRequest_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(AppchainRequest{AppchainID: 7})
	require.NoError(t, err)
	require.JSONEq(t, `{"appchain_id":7}`, string(b))

	b, err = json.Marshal(AppchainRequest{AppchainID: 7, LegacyKey: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"id":7}`, string(b))
}

func TestRegisterAppchainRequest_bond(t *testing.T) {
	bond := types.NewAmount(100)
	b, err := json.Marshal(RegisterAppchainRequest{AppchainName: "foo", RuntimeURL: "u", RuntimeHash: "h", BondTokens: &bond})
	require.NoError(t, err)
	require.JSONEq(t, `{"appchain_name":"foo","runtime_url":"u","runtime_hash":"h","bond_tokens":"100"}`, string(b))

	b, err = json.Marshal(RegisterAppchainRequest{AppchainName: "foo", RuntimeURL: "u", RuntimeHash: "h", BondBalance: &bond})
	require.NoError(t, err)
	require.JSONEq(t, `{"appchain_name":"foo","runtime_url":"u","runtime_hash":"h","bond_balance":"100"}`, string(b))
}

func TestAppchainRecord_ToAppchain(t *testing.T) {
	var testCases = []struct {
		name  string
		in    string
		check func(t *testing.T, ac types.Appchain)
	}{
		{
			name: "native generation",
			in: `{"founder_id":"alice","appchain_name":"easydeal","runtime_url":"u","runtime_hash":"h","num_validators":1,"staked_balance":1000,"status":"Frozen",
				"validators":[{"appchain_id":0,"account_id":"bob","appchain_account":"5Gx","staked_balance":1000}]}`,
			check: func(t *testing.T, ac types.Appchain) {
				require.Equal(t, "easydeal", ac.Name)
				require.Equal(t, types.StatusFrozen, ac.Status)
				require.Equal(t, "1000", ac.BondAmount.String())
				require.EqualValues(t, 1, ac.NumValidators)
				require.Len(t, ac.StakeRecords, 1)
				v := ac.StakeRecords[0].Validator
				require.Equal(t, types.AccountID("bob"), v.AccountID)
				require.Equal(t, "5Gx", v.OffchainWorkerID)
				require.Equal(t, "1000", v.StakedAmount.String())
				require.Equal(t, "1000", v.Weight.String(), "weight is derived from stake")
				require.True(t, ac.HasStakeFrom("bob"))
			},
		},
		{
			name: "token generation",
			in: `{"id":3,"founder_id":"alice","appchain_name":"barnacle","runtime_url":"u","runtime_hash":"h","bond_tokens":"100","status":"Active","curr_validator_set_index":4,
				"stake_records":[{"validator":{"id":"v1","account_id":"carol","ocw_id":"ocw","staked_amount":"50","weight":"7"}}]}`,
			check: func(t *testing.T, ac types.Appchain) {
				require.Equal(t, "100", ac.BondAmount.String())
				require.EqualValues(t, 4, ac.ValidatorSetIndex)
				require.EqualValues(t, 1, ac.NumValidators)
				v := ac.StakeRecords[0].Validator
				require.Equal(t, "v1", v.ValidatorID)
				require.Equal(t, "ocw", v.OffchainWorkerID)
				require.Equal(t, "7", v.Weight.String())
				require.False(t, ac.HasStakeFrom("alice"))
			},
		},
		{
			name: "bond_balance and validator_set_index",
			in:   `{"founder_id":"alice","appchain_name":"x","runtime_url":"","runtime_hash":"","bond_balance":"5","validator_set_index":2,"curr_validator_set_index":9,"status":"InQueue"}`,
			check: func(t *testing.T, ac types.Appchain) {
				require.Equal(t, "5", ac.BondAmount.String())
				require.EqualValues(t, 2, ac.ValidatorSetIndex)
				require.Empty(t, ac.StakeRecords)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var r AppchainRecord
			require.NoError(t, decodeStrict("get_appchain", []byte(tc.in), &r))
			ac := r.ToAppchain(5)
			require.Equal(t, 5, ac.ID)
			tc.check(t, ac)
		})
	}
}

func TestErrorKind_String(t *testing.T) {
	require.Equal(t, "transport error", KindTransport.String())
	require.Equal(t, "contract rejection", KindContractRejection.String())
	require.Equal(t, "ErrorKind(9)", ErrorKind(9).String())
}
