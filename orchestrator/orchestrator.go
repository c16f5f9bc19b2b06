package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/octopus-network/relay-client/allowance"
	"github.com/octopus-network/relay-client/gateway"
	"github.com/octopus-network/relay-client/logger"
	"github.com/octopus-network/relay-client/session"
	"github.com/octopus-network/relay-client/types"
)

// ActionGas is the gas budget attached to every relay change call.
const ActionGas types.Gas = 300_000_000_000_000

// TokenModeDeposit is attached to the value bearing calls in token bond mode.
var TokenModeDeposit = types.Pow10(3, 22)

type (
	Identity interface {
		AccountID() types.AccountID
	}

	Registry interface {
		GetAppchain(ctx context.Context, id int) (*types.Appchain, error)
		GetValidators(ctx context.Context, id int) ([]types.Validator, error)
		Refresh(ctx context.Context) error
	}

	AllowanceGate interface {
		Ensure(ctx context.Context, owner types.AccountID) (allowance.State, error)
		Approve(ctx context.Context) error
	}

	RegisterParams struct {
		Name        string
		RuntimeURL  string
		RuntimeHash string
		Bond        types.Amount
	}

	/*
		StakeParams of the Stake action. In native bond mode OcwID is sent as the
		appchain account of the validator and ValidatorID is not used.
	*/
	StakeParams struct {
		AppchainID  int
		ValidatorID string
		OcwID       string
		Amount      types.Amount
	}

	/*
		Orchestrator validates preconditions of the user initiated change actions,
		submits them through the relay gateway and refreshes the registry after
		every successful submission. Each action kind has its own Instance so
		re-submission of the same action is rejected while it is in flight.
	*/
	Orchestrator struct {
		relay     *gateway.Contract
		mode      types.BondMode
		identity  Identity
		registry  Registry
		gate      AllowanceGate
		log       *slog.Logger
		instances map[ActionKind]*Instance
	}

	Option func(*Orchestrator)

	submission struct {
		kind ActionKind
		// valueBearing submissions must pass the allowance gate in token mode.
		valueBearing bool
		// check is called after the instance entered Submitting state.
		check func(ctx context.Context, account types.AccountID) error
		send  func(ctx context.Context) error
		// registryUnchanged is set when the call doesn't change the relay registry
		registryUnchanged bool
	}
)

// WithAllowanceGate sets the gate for the value bearing actions, required in token bond mode.
func WithAllowanceGate(gate AllowanceGate) Option {
	return func(o *Orchestrator) {
		o.gate = gate
	}
}

func New(relay *gateway.Contract, mode types.BondMode, identity Identity, registry Registry, log *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if relay == nil {
		return nil, errors.New("relay contract gateway is nil")
	}
	if _, err := types.ParseBondMode(string(mode)); err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, errors.New("identity is nil")
	}
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	o := &Orchestrator{
		relay:     relay,
		mode:      mode,
		identity:  identity,
		registry:  registry,
		log:       log,
		instances: map[ActionKind]*Instance{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if mode == types.BondModeToken && o.gate == nil {
		return nil, errors.New("allowance gate is required in token bond mode")
	}
	for _, k := range []ActionKind{ActionRegister, ActionStake, ActionStakeMore, ActionUnstake, ActionActivate, ActionApprove} {
		o.instances[k] = newInstance(k)
	}
	return o, nil
}

func (o *Orchestrator) Mode() types.BondMode { return o.mode }

// Instance returns the state machine of the action kind.
func (o *Orchestrator) Instance(kind ActionKind) *Instance {
	return o.instances[kind]
}

// Supports returns false for actions the relay contract generation doesn't have.
func (o *Orchestrator) Supports(kind ActionKind) bool {
	switch kind {
	case ActionStakeMore, ActionApprove:
		return o.mode == types.BondModeToken
	default:
		_, ok := o.instances[kind]
		return ok
	}
}

func (o *Orchestrator) Register(ctx context.Context, p RegisterParams) error {
	if p.Name == "" {
		return precondition(ActionRegister, ReasonInvalidInput, "appchain name is empty")
	}
	if p.Bond.IsZero() {
		return precondition(ActionRegister, ReasonInvalidInput, "bond amount is zero")
	}
	req := gateway.RegisterAppchainRequest{
		AppchainName: p.Name,
		RuntimeURL:   p.RuntimeURL,
		RuntimeHash:  p.RuntimeHash,
	}
	deposit := TokenModeDeposit
	if o.mode == types.BondModeNative {
		req.BondBalance = &p.Bond
		deposit = p.Bond
	} else {
		req.BondTokens = &p.Bond
	}
	return o.submit(ctx, submission{
		kind:         ActionRegister,
		valueBearing: true,
		send: func(ctx context.Context) error {
			return gateway.Submit(ctx, o.relay, req, ActionGas, deposit)
		},
	})
}

func (o *Orchestrator) Stake(ctx context.Context, p StakeParams) error {
	if p.AppchainID < 0 {
		return precondition(ActionStake, ReasonInvalidInput, "invalid appchain id %d", p.AppchainID)
	}
	if p.Amount.IsZero() {
		return precondition(ActionStake, ReasonInvalidInput, "staking amount is zero")
	}

	var req gateway.Request
	deposit := TokenModeDeposit
	if o.mode == types.BondModeNative {
		if p.OcwID == "" {
			return precondition(ActionStake, ReasonInvalidInput, "appchain account is empty")
		}
		req = gateway.StakeToBeValidatorRequest{AppchainID: uint64(p.AppchainID), AppchainAccount: p.OcwID}
		deposit = p.Amount
	} else {
		if p.ValidatorID == "" {
			return precondition(ActionStake, ReasonInvalidInput, "validator id is empty")
		}
		req = gateway.StakingRequest{AppchainID: uint64(p.AppchainID), ValidatorID: p.ValidatorID, OcwID: p.OcwID, Amount: p.Amount}
	}
	return o.submit(ctx, submission{
		kind:         ActionStake,
		valueBearing: true,
		send: func(ctx context.Context) error {
			return gateway.Submit(ctx, o.relay, req, ActionGas, deposit)
		},
	})
}

func (o *Orchestrator) StakeMore(ctx context.Context, appchainID int, amount types.Amount) error {
	if !o.Supports(ActionStakeMore) {
		return precondition(ActionStakeMore, ReasonUnsupported, "not available in %s bond mode", o.mode)
	}
	if appchainID < 0 {
		return precondition(ActionStakeMore, ReasonInvalidInput, "invalid appchain id %d", appchainID)
	}
	if amount.IsZero() {
		return precondition(ActionStakeMore, ReasonInvalidInput, "staking amount is zero")
	}
	req := gateway.StakingMoreRequest{AppchainID: uint64(appchainID), Amount: amount}
	return o.submit(ctx, submission{
		kind:         ActionStakeMore,
		valueBearing: true,
		send: func(ctx context.Context) error {
			return gateway.Submit(ctx, o.relay, req, ActionGas, TokenModeDeposit)
		},
	})
}

func (o *Orchestrator) Unstake(ctx context.Context, appchainID int) error {
	if appchainID < 0 {
		return precondition(ActionUnstake, ReasonInvalidInput, "invalid appchain id %d", appchainID)
	}
	var req gateway.Request = gateway.UnstakingRequest{AppchainID: uint64(appchainID)}
	if o.mode == types.BondModeNative {
		req = gateway.UnstakeRequest{AppchainID: uint64(appchainID)}
	}
	return o.submit(ctx, submission{
		kind: ActionUnstake,
		send: func(ctx context.Context) error {
			return gateway.Submit(ctx, o.relay, req, ActionGas, types.Amount{})
		},
	})
}

/*
Activate activates the appchain. Only the founder can activate and only an
appchain in Frozen status, both are verified against a fresh read of the
appchain before the call is sent.
*/
func (o *Orchestrator) Activate(ctx context.Context, appchainID int) error {
	if appchainID < 0 {
		return precondition(ActionActivate, ReasonInvalidInput, "invalid appchain id %d", appchainID)
	}
	return o.submit(ctx, submission{
		kind: ActionActivate,
		check: func(ctx context.Context, account types.AccountID) error {
			ac, err := o.registry.GetAppchain(ctx, appchainID)
			if err != nil {
				return err
			}
			return activateCheck(ac, account)
		},
		send: func(ctx context.Context) error {
			return gateway.Submit(ctx, o.relay, gateway.ActiveAppchainRequest{AppchainID: uint64(appchainID)}, ActionGas, types.Amount{})
		},
	})
}

/*
Approve submits the allowance approval of the signed-in account. The gated
actions are not re-checked, caller must open the surface again to see whether
they became available.
*/
func (o *Orchestrator) Approve(ctx context.Context) error {
	if !o.Supports(ActionApprove) {
		return precondition(ActionApprove, ReasonUnsupported, "not available in %s bond mode", o.mode)
	}
	return o.submit(ctx, submission{
		kind: ActionApprove,
		send: o.gate.Approve,
		// allowance is state of the token contract
		registryUnchanged: true,
	})
}

func activateCheck(ac *types.Appchain, account types.AccountID) error {
	if !ac.IsFoundedBy(account) {
		return precondition(ActionActivate, ReasonNotFounder, "appchain %d is founded by %s", ac.ID, ac.FounderID)
	}
	if ac.Status != types.StatusFrozen {
		return precondition(ActionActivate, ReasonNotFrozen, "appchain %d is %s", ac.ID, ac.Status)
	}
	return nil
}

func (o *Orchestrator) account(kind ActionKind) (types.AccountID, error) {
	account := o.identity.AccountID()
	if account == "" {
		return "", &PreconditionError{Action: kind, Reason: ReasonNotSignedIn, Err: session.ErrNotSignedIn}
	}
	return account, nil
}

func (o *Orchestrator) submit(ctx context.Context, s submission) error {
	account, err := o.account(s.kind)
	if err != nil {
		return err
	}
	inst := o.instances[s.kind]
	if err := inst.begin(); err != nil {
		return err
	}

	if err := o.verify(ctx, account, s); err != nil {
		inst.abort(err)
		return err
	}

	if err := s.send(ctx); err != nil {
		inst.finish(err)
		o.log.WarnContext(ctx, fmt.Sprintf("%s failed", s.kind), logger.Account(string(account)), logger.Error(err))
		return fmt.Errorf("%s: %w", s.kind, err)
	}
	inst.finish(nil)
	o.log.InfoContext(ctx, fmt.Sprintf("%s succeeded", s.kind), logger.Account(string(account)))

	if s.registryUnchanged {
		return nil
	}
	// the snapshot ids are positions, any mutation may shift them
	if err := o.registry.Refresh(ctx); err != nil {
		o.log.WarnContext(ctx, fmt.Sprintf("refreshing registry after %s", s.kind), logger.Error(err))
	}
	return nil
}

func (o *Orchestrator) verify(ctx context.Context, account types.AccountID, s submission) error {
	if s.valueBearing && o.mode == types.BondModeToken {
		st, err := o.gate.Ensure(ctx, account)
		if err != nil {
			return fmt.Errorf("%s: %w", s.kind, err)
		}
		if !st.Sufficient {
			return precondition(s.kind, ReasonNeedsApproval, "%s has not approved %s to spend tokens", account, st.Spender)
		}
	}
	if s.check != nil {
		if err := s.check(ctx, account); err != nil {
			var pe *PreconditionError
			if errors.As(err, &pe) {
				return err
			}
			return fmt.Errorf("%s: %w", s.kind, err)
		}
	}
	return nil
}
