package orchestrator

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/octopus-network/relay-client/allowance"
	"github.com/octopus-network/relay-client/types"
)

type (
	/*
		StakingSurface is what the signed-in account can do on the appchain. When
		the allowance is not approved Approve is the only offered action.
	*/
	StakingSurface struct {
		Appchain *types.Appchain `json:"appchain"`
		// Allowance is nil in native bond mode.
		Allowance *allowance.State `json:"allowance,omitempty"`
		Actions   []ActionKind     `json:"actions"`
	}

	RegisterSurface struct {
		Allowance *allowance.State `json:"allowance,omitempty"`
		Actions   []ActionKind     `json:"actions"`
	}
)

func (s *StakingSurface) Offers(kind ActionKind) bool {
	return slices.Contains(s.Actions, kind)
}

func (s *RegisterSurface) Offers(kind ActionKind) bool {
	return slices.Contains(s.Actions, kind)
}

/*
OpenStaking reads the appchain and the allowance of the signed-in account
concurrently and decides which staking actions are offered.
*/
func (o *Orchestrator) OpenStaking(ctx context.Context, appchainID int) (*StakingSurface, error) {
	account, err := o.account(ActionStake)
	if err != nil {
		return nil, err
	}

	s := &StakingSurface{}
	var validators []types.Validator
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.Appchain, err = o.registry.GetAppchain(gctx, appchainID)
		return err
	})
	if o.mode == types.BondModeNative {
		// native generation doesn't include stakes in the appchain record
		g.Go(func() (err error) {
			validators, err = o.registry.GetValidators(gctx, appchainID)
			return err
		})
	} else {
		g.Go(func() error {
			st, err := o.gate.Ensure(gctx, account)
			if err != nil {
				return err
			}
			s.Allowance = &st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("opening staking of appchain %d: %w", appchainID, err)
	}
	if len(s.Appchain.StakeRecords) == 0 {
		for _, v := range validators {
			s.Appchain.StakeRecords = append(s.Appchain.StakeRecords, types.StakeRecord{Validator: v})
		}
	}

	switch {
	case s.Allowance != nil && !s.Allowance.Sufficient:
		s.Actions = []ActionKind{ActionApprove}
	case s.Appchain.HasStakeFrom(account):
		if o.Supports(ActionStakeMore) {
			s.Actions = append(s.Actions, ActionStakeMore)
		}
		s.Actions = append(s.Actions, ActionUnstake)
	default:
		s.Actions = []ActionKind{ActionStake}
	}
	return s, nil
}

// OpenRegister checks the allowance and offers Approve or Register.
func (o *Orchestrator) OpenRegister(ctx context.Context) (*RegisterSurface, error) {
	account, err := o.account(ActionRegister)
	if err != nil {
		return nil, err
	}
	if o.mode == types.BondModeNative {
		return &RegisterSurface{Actions: []ActionKind{ActionRegister}}, nil
	}
	st, err := o.gate.Ensure(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("opening register: %w", err)
	}
	s := &RegisterSurface{Allowance: &st, Actions: []ActionKind{ActionRegister}}
	if !st.Sufficient {
		s.Actions = []ActionKind{ActionApprove}
	}
	return s, nil
}

/*
RowActions returns the actions offered for an appchain row of the list. The
founder can activate a Frozen appchain, other signed-in accounts can open
staking. Nothing is offered when signed out.
*/
func (o *Orchestrator) RowActions(ac *types.Appchain) []ActionKind {
	account := o.identity.AccountID()
	if account == "" || ac == nil {
		return nil
	}
	if ac.IsFoundedBy(account) {
		if ac.Status == types.StatusFrozen {
			return []ActionKind{ActionActivate}
		}
		return nil
	}
	return []ActionKind{ActionStake}
}
