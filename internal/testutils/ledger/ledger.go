/*
Package ledger implements in-memory fake of the relay and token contracts,
it can be used as gateway.Viewer and gateway.Sender in tests.
*/
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/octopus-network/relay-client/gateway"
	"github.com/octopus-network/relay-client/types"
)

type Generation string

const (
	GenerationToken  Generation = "token"
	GenerationNative Generation = "native"
)

type (
	// Hook is called before the fake processes the call, it may block or
	// fail the call by returning non-nil error.
	Hook func(ctx context.Context, args []byte) error

	Call struct {
		Contract types.AccountID
		Method   string
		Args     json.RawMessage
		Signer   types.AccountID
		Gas      types.Gas
		Deposit  types.Amount
	}

	Appchain struct {
		Name        string
		Founder     types.AccountID
		RuntimeURL  string
		RuntimeHash string
		Bond        types.Amount
		Status      types.AppchainStatus
		Validators  []Validator
		// Epochs are snapshots of the validator set, there is always at
		// least one epoch.
		Epochs [][]Validator
	}

	Validator struct {
		ID      string
		Account types.AccountID
		OcwID   string
		Staked  types.Amount
	}

	Ledger struct {
		relay types.AccountID
		token types.AccountID
		gen   Generation

		mu             sync.Mutex
		appchains      []*Appchain
		allowances     map[types.AccountID]types.Amount
		balances       map[types.AccountID]types.Amount
		minimumStaking types.Amount
		hooks          map[string]Hook
		calls          []Call
	}
)

func New(relay, token types.AccountID, gen Generation) *Ledger {
	return &Ledger{
		relay:          relay,
		token:          token,
		gen:            gen,
		allowances:     map[types.AccountID]types.Amount{},
		balances:       map[types.AccountID]types.Amount{},
		minimumStaking: types.NewAmount(100),
		hooks:          map[string]Hook{},
	}
}

// SetHook installs hook for method, nil hook removes it.
func (l *Ledger) SetHook(method string, h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h == nil {
		delete(l.hooks, method)
		return
	}
	l.hooks[method] = h
}

// AddAppchain adds appchain into the relay contract state and returns its index.
func (l *Ledger) AddAppchain(ac Appchain) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ac.Status == "" {
		ac.Status = types.StatusInQueue
	}
	if len(ac.Epochs) == 0 {
		ac.Epochs = [][]Validator{slices.Clone(ac.Validators)}
	}
	l.appchains = append(l.appchains, &ac)
	return len(l.appchains) - 1
}

func (l *Ledger) SetStatus(idx int, status types.AppchainStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appchains[idx].Status = status
}

// NextEpoch snapshots current validators of the appchain as new epoch.
func (l *Ledger) NextEpoch(idx int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	ac := l.appchains[idx]
	ac.Epochs = append(ac.Epochs, slices.Clone(ac.Validators))
	return uint64(len(ac.Epochs) - 1)
}

func (l *Ledger) SetAllowance(owner types.AccountID, amount types.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[owner] = amount
}

func (l *Ledger) SetBalance(owner types.AccountID, amount types.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[owner] = amount
}

func (l *Ledger) Appchain(idx int) Appchain {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.appchains[idx]
}

// Calls returns change calls executed so far.
func (l *Ledger) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

func (l *Ledger) hook(method string) Hook {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hooks[method]
}

func (l *Ledger) CallFunction(ctx context.Context, contract types.AccountID, method string, args []byte) ([]byte, error) {
	if h := l.hook(method); h != nil {
		if err := h(ctx, args); err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var rsp any
	var err error
	switch contract {
	case l.relay:
		rsp, err = l.viewRelay(method, args)
	case l.token:
		rsp, err = l.viewToken(method, args)
	default:
		return nil, reject(method, fmt.Sprintf("account %s does not exist", contract))
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(rsp)
}

// AsSender returns gateway.Sender executing calls on behalf of "signer".
func (l *Ledger) AsSender(signer gateway.AccountSource) gateway.Sender {
	return &sender{l: l, signer: signer}
}

type sender struct {
	l      *Ledger
	signer gateway.AccountSource
}

func (s *sender) FunctionCall(ctx context.Context, contract types.AccountID, method string, args []byte, gas types.Gas, deposit types.Amount) ([]byte, error) {
	l := s.l
	if h := l.hook(method); h != nil {
		if err := h(ctx, args); err != nil {
			return nil, err
		}
	}
	signer := s.signer.AccountID()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, Call{Contract: contract, Method: method, Args: slices.Clone(args), Signer: signer, Gas: gas, Deposit: deposit})
	var err error
	switch contract {
	case l.relay:
		err = l.changeRelay(signer, method, args, deposit)
	case l.token:
		err = l.changeToken(signer, method, args)
	default:
		err = reject(method, fmt.Sprintf("account %s does not exist", contract))
	}
	if err != nil {
		return nil, err
	}
	return []byte("null"), nil
}

func reject(method, msg string) error {
	return &gateway.Error{Kind: gateway.KindContractRejection, Method: method, Msg: msg}
}

func decodeArgs(method string, args []byte, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return reject(method, fmt.Sprintf("Failed to deserialize input from JSON: %v", err))
	}
	return nil
}

func (l *Ledger) appchainAt(method string, id uint64) (*Appchain, error) {
	if id >= uint64(len(l.appchains)) {
		return nil, reject(method, "Smart contract panicked: Appchain not found")
	}
	return l.appchains[id], nil
}

func (l *Ledger) viewRelay(method string, args []byte) (any, error) {
	switch method {
	case "get_num_appchains":
		return len(l.appchains), nil
	case "get_total_staked_balance":
		total := types.Amount{}
		for _, ac := range l.appchains {
			for _, v := range ac.Validators {
				total, _ = total.Add(v.Staked)
			}
		}
		return total, nil
	case "get_minium_staking_amount":
		return l.minimumStaking, nil
	case "get_appchains":
		var req gateway.AppchainsRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return nil, err
		}
		res := []gateway.AppchainRecord{}
		for i := req.FromIndex; i < uint64(len(l.appchains)) && i < req.FromIndex+req.Limit; i++ {
			res = append(res, l.record(i))
		}
		return res, nil
	case "get_appchain":
		var req struct {
			ID         *uint64 `json:"id"`
			AppchainID *uint64 `json:"appchain_id"`
		}
		if err := decodeArgs(method, args, &req); err != nil {
			return nil, err
		}
		id := req.AppchainID
		if id == nil {
			id = req.ID
		}
		if id == nil {
			return nil, reject(method, "Failed to deserialize input from JSON: missing field `appchain_id`")
		}
		if _, err := l.appchainAt(method, *id); err != nil {
			return nil, err
		}
		return l.record(*id), nil
	case "get_appchain_validators":
		var req gateway.AppchainValidatorsRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return nil, err
		}
		ac, err := l.appchainAt(method, req.ID)
		if err != nil {
			return nil, err
		}
		return l.validatorRecords(req.ID, ac.Validators), nil
	case "get_curr_validator_set_index":
		var req gateway.CurrentValidatorSetIndexRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return nil, err
		}
		ac, err := l.appchainAt(method, req.AppchainID)
		if err != nil {
			return nil, err
		}
		return len(ac.Epochs) - 1, nil
	case "get_validator_set":
		var req gateway.ValidatorSetRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return nil, err
		}
		ac, err := l.appchainAt(method, req.AppchainID)
		if err != nil {
			return nil, err
		}
		if req.Index >= uint64(len(ac.Epochs)) {
			return nil, reject(method, "Smart contract panicked: Validator set not found")
		}
		return gateway.ValidatorSetRecord{
			AppchainID: &req.AppchainID,
			SeqNum:     &req.Index,
			Validators: l.validatorRecords(req.AppchainID, ac.Epochs[req.Index]),
		}, nil
	default:
		return nil, reject(method, fmt.Sprintf("MethodNotFound: %s", method))
	}
}

func (l *Ledger) record(idx uint64) gateway.AppchainRecord {
	ac := l.appchains[idx]
	bond := ac.Bond
	setIdx := uint64(len(ac.Epochs) - 1)
	numVals := uint64(len(ac.Validators))
	r := gateway.AppchainRecord{
		AppchainName: ac.Name,
		FounderID:    ac.Founder,
		RuntimeURL:   ac.RuntimeURL,
		RuntimeHash:  ac.RuntimeHash,
		Status:       ac.Status,
	}
	if l.gen == GenerationNative {
		r.StakedBalance = &bond
		r.NumValidators = &numVals
		return r
	}
	r.ID = &idx
	r.BondTokens = &bond
	r.ValidatorSetIndex = &setIdx
	for _, v := range l.validatorRecords(idx, ac.Validators) {
		r.StakeRecords = append(r.StakeRecords, gateway.StakeRecordWire{Validator: v})
	}
	return r
}

func (l *Ledger) validatorRecords(appchainID uint64, vals []Validator) []gateway.ValidatorRecord {
	res := make([]gateway.ValidatorRecord, len(vals))
	for i, v := range vals {
		staked := v.Staked
		if l.gen == GenerationNative {
			res[i] = gateway.ValidatorRecord{AppchainID: &appchainID, AccountID: v.Account, AppchainAcc: v.OcwID, StakedBalance: &staked}
			continue
		}
		res[i] = gateway.ValidatorRecord{ID: v.ID, AccountID: v.Account, OcwID: v.OcwID, StakedAmount: &staked}
	}
	return res
}

func (l *Ledger) viewToken(method string, args []byte) (any, error) {
	switch method {
	case "get_allowance":
		var req gateway.AllowanceRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return nil, err
		}
		if req.EscrowAccountID != l.relay {
			return types.Amount{}, nil
		}
		return l.allowances[req.OwnerID], nil
	case "get_balance":
		var req gateway.BalanceRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return nil, err
		}
		return l.balances[req.OwnerID], nil
	default:
		return nil, reject(method, fmt.Sprintf("MethodNotFound: %s", method))
	}
}

func (l *Ledger) changeToken(signer types.AccountID, method string, args []byte) error {
	switch method {
	case "inc_allowance":
		var req gateway.IncAllowanceRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return err
		}
		if req.EscrowAccountID == l.relay {
			sum, err := l.allowances[signer].Add(req.Amount)
			if err != nil {
				return reject(method, err.Error())
			}
			l.allowances[signer] = sum
		}
		return nil
	default:
		return reject(method, fmt.Sprintf("MethodNotFound: %s", method))
	}
}

func (l *Ledger) changeRelay(signer types.AccountID, method string, args []byte, deposit types.Amount) error {
	switch method {
	case "register_appchain":
		var req gateway.RegisterAppchainRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return err
		}
		ac := &Appchain{
			Name:        req.AppchainName,
			Founder:     signer,
			RuntimeURL:  req.RuntimeURL,
			RuntimeHash: req.RuntimeHash,
			Status:      types.StatusInQueue,
			Epochs:      [][]Validator{nil},
		}
		switch {
		case req.BondTokens != nil:
			if err := l.spend(method, signer, *req.BondTokens); err != nil {
				return err
			}
			ac.Bond = *req.BondTokens
		case req.BondBalance != nil:
			ac.Bond = *req.BondBalance
		default:
			ac.Bond = deposit
		}
		l.appchains = append(l.appchains, ac)
		return nil
	case "staking", "stake_to_be_validator":
		var req struct {
			AppchainID      uint64        `json:"appchain_id"`
			ID              string        `json:"id"`
			OcwID           string        `json:"ocw_id"`
			AppchainAccount string        `json:"appchain_account"`
			Amount          *types.Amount `json:"amount"`
		}
		if err := decodeArgs(method, args, &req); err != nil {
			return err
		}
		ac, err := l.appchainAt(method, req.AppchainID)
		if err != nil {
			return err
		}
		if slices.ContainsFunc(ac.Validators, func(v Validator) bool { return v.Account == signer }) {
			return reject(method, "Smart contract panicked: Already staked on this appchain")
		}
		v := Validator{ID: req.ID, Account: signer, OcwID: req.OcwID, Staked: deposit}
		if method == "stake_to_be_validator" {
			v.OcwID = req.AppchainAccount
		} else {
			if req.Amount == nil {
				return reject(method, "Failed to deserialize input from JSON: missing field `amount`")
			}
			if err := l.spend(method, signer, *req.Amount); err != nil {
				return err
			}
			v.Staked = *req.Amount
		}
		ac.Validators = append(ac.Validators, v)
		return nil
	case "staking_more":
		var req gateway.StakingMoreRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return err
		}
		ac, err := l.appchainAt(method, req.AppchainID)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(ac.Validators, func(v Validator) bool { return v.Account == signer })
		if i < 0 {
			return reject(method, "Smart contract panicked: Not a validator of this appchain")
		}
		if err := l.spend(method, signer, req.Amount); err != nil {
			return err
		}
		sum, err := ac.Validators[i].Staked.Add(req.Amount)
		if err != nil {
			return reject(method, err.Error())
		}
		ac.Validators[i].Staked = sum
		return nil
	case "unstaking", "unstake":
		var req gateway.UnstakeRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return err
		}
		ac, err := l.appchainAt(method, req.AppchainID)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(ac.Validators, func(v Validator) bool { return v.Account == signer })
		if i < 0 {
			return reject(method, "Smart contract panicked: Not a validator of this appchain")
		}
		ac.Validators = slices.Delete(ac.Validators, i, i+1)
		return nil
	case "active_appchain":
		var req gateway.ActiveAppchainRequest
		if err := decodeArgs(method, args, &req); err != nil {
			return err
		}
		ac, err := l.appchainAt(method, req.AppchainID)
		if err != nil {
			return err
		}
		if ac.Founder != signer {
			return reject(method, "Smart contract panicked: Only founder can activate the appchain")
		}
		if ac.Status != types.StatusFrozen {
			return reject(method, "Smart contract panicked: Appchain can't be activated")
		}
		ac.Status = types.StatusActive
		return nil
	default:
		return reject(method, fmt.Sprintf("MethodNotFound: %s", method))
	}
}

// spend checks that the relay has allowance to move tokens of the "owner".
func (l *Ledger) spend(method string, owner types.AccountID, amount types.Amount) error {
	if l.gen != GenerationToken {
		return nil
	}
	left, err := l.allowances[owner].Sub(amount)
	if err != nil {
		return reject(method, "Smart contract panicked: The allowance is not enough")
	}
	l.allowances[owner] = left
	return nil
}
