package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/relay-client/internal/testutils/ledger"
	"github.com/octopus-network/relay-client/types"
)

func TestOpenStaking(t *testing.T) {
	staked := []ledger.Validator{{ID: "v", Account: bob, OcwID: "ocw", Staked: types.NewAmount(5)}}
	var testCases = []struct {
		name       string
		gen        ledger.Generation
		allowance  types.Amount
		validators []ledger.Validator
		actions    []ActionKind
	}{
		{name: "zero allowance", gen: ledger.GenerationToken, actions: []ActionKind{ActionApprove}},
		{name: "zero allowance, staked", gen: ledger.GenerationToken, validators: staked, actions: []ActionKind{ActionApprove}},
		{name: "approved, not staked", gen: ledger.GenerationToken, allowance: types.NewAmount(1), actions: []ActionKind{ActionStake}},
		{name: "approved, staked", gen: ledger.GenerationToken, allowance: types.NewAmount(1), validators: staked, actions: []ActionKind{ActionStakeMore, ActionUnstake}},
		{name: "native, not staked", gen: ledger.GenerationNative, actions: []ActionKind{ActionStake}},
		{name: "native, staked", gen: ledger.GenerationNative, validators: staked, actions: []ActionKind{ActionUnstake}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.gen)
			env.ledger.AddAppchain(ledger.Appchain{Name: "a", Founder: alice, Validators: tc.validators})
			env.ledger.SetAllowance(bob, tc.allowance)
			env.signIn(t, bob)

			s, err := env.orch.OpenStaking(context.Background(), 0)
			require.NoError(t, err)
			require.Equal(t, tc.actions, s.Actions)
			require.Equal(t, "a", s.Appchain.Name)
			if tc.gen == ledger.GenerationToken {
				require.NotNil(t, s.Allowance)
				require.Equal(t, !tc.allowance.IsZero(), s.Allowance.Sufficient)
			} else {
				require.Nil(t, s.Allowance)
			}
			if len(tc.validators) == 0 {
				require.False(t, s.Offers(ActionUnstake))
			}
			// opening the surface doesn't submit anything
			require.Empty(t, env.ledger.Calls())
		})
	}
}

func TestOpenStaking_errors(t *testing.T) {
	env := newTestEnv(t, ledger.GenerationToken)
	env.ledger.AddAppchain(ledger.Appchain{Name: "a", Founder: alice})

	_, err := env.orch.OpenStaking(context.Background(), 0)
	require.Equal(t, ReasonNotSignedIn, ReasonOf(err))

	env.signIn(t, bob)
	env.ledger.SetHook("get_allowance", func(context.Context, []byte) error { return errors.New("timeout") })
	_, err = env.orch.OpenStaking(context.Background(), 0)
	require.ErrorContains(t, err, "opening staking of appchain 0")
	require.ErrorContains(t, err, "timeout")
}

func TestOpenRegister(t *testing.T) {
	env := newTestEnv(t, ledger.GenerationToken)
	env.signIn(t, bob)

	s, err := env.orch.OpenRegister(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ActionKind{ActionApprove}, s.Actions)
	require.False(t, s.Offers(ActionRegister))

	require.NoError(t, env.orch.Approve(context.Background()))
	s, err = env.orch.OpenRegister(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ActionKind{ActionRegister}, s.Actions)
	require.Zero(t, s.Allowance.Amount.Cmp(types.MustParseAmount("999999999999999999999")))

	native := newTestEnv(t, ledger.GenerationNative)
	native.signIn(t, bob)
	s, err = native.orch.OpenRegister(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ActionKind{ActionRegister}, s.Actions)
	require.Nil(t, s.Allowance)
}

func TestRowActions(t *testing.T) {
	env := newTestEnv(t, ledger.GenerationToken)
	frozen := &types.Appchain{ID: 0, FounderID: alice, Status: types.StatusFrozen}
	queued := &types.Appchain{ID: 1, FounderID: alice, Status: types.StatusInQueue}

	require.Nil(t, env.orch.RowActions(frozen))

	env.signIn(t, alice)
	require.Equal(t, []ActionKind{ActionActivate}, env.orch.RowActions(frozen))
	require.Nil(t, env.orch.RowActions(queued))

	env.signIn(t, bob)
	require.Equal(t, []ActionKind{ActionStake}, env.orch.RowActions(frozen))
	require.Equal(t, []ActionKind{ActionStake}, env.orch.RowActions(queued))
	require.Nil(t, env.orch.RowActions(nil))
}

func TestActionKind_MarshalText(t *testing.T) {
	b, err := ActionStakeMore.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "stake-more", string(b))
	require.Equal(t, "action(42)", ActionKind(42).String())
}
