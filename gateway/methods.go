package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/octopus-network/relay-client/types"
)

/*
Request is one of the closed set of contract call variants below. Each
variant has fixed argument schema and names the method it is sent to.
*/
type Request interface {
	Method() string
}

// validator is implemented by responses which have additional constraints
// beyond what JSON decoding checks.
type validator interface {
	Validate() error
}

/*
Query sends view request "req" and decodes the response strictly into Resp:
unknown fields, wrong types and responses failing validation are reported
as contract rejection.
*/
func Query[Resp any](ctx context.Context, c *Contract, req Request) (Resp, error) {
	var r Resp
	data, err := c.View(ctx, req.Method(), req)
	if err != nil {
		return r, err
	}
	return r, decodeStrict(req.Method(), data, &r)
}

/*
Submit sends change request "req". The result of the call, if any, is
ignored; the caller re-reads the state it is interested in.
*/
func Submit(ctx context.Context, c *Contract, req Request, gas types.Gas, deposit types.Amount) error {
	_, err := c.Change(ctx, req.Method(), req, gas, deposit)
	return err
}

func decodeStrict(method string, data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &Error{Kind: KindContractRejection, Method: method, Msg: fmt.Sprintf("unexpected response shape: %v", err), Err: err}
	}
	if dec.More() {
		return rejection(method, "unexpected response shape: trailing data after response")
	}
	if vr, ok := v.(validator); ok {
		if err := vr.Validate(); err != nil {
			return &Error{Kind: KindContractRejection, Method: method, Msg: fmt.Sprintf("invalid response: %v", err), Err: err}
		}
	}
	return nil
}

// relay contract, view methods

type (
	NumAppchainsRequest struct{}

	TotalStakedBalanceRequest struct{}

	MinimumStakingAmountRequest struct{}

	AppchainsRequest struct {
		FromIndex uint64 `json:"from_index"`
		Limit     uint64 `json:"limit"`
	}

	/*
		AppchainRequest fetches single appchain. Older contract generation names
		the argument "id", newer one "appchain_id".
	*/
	AppchainRequest struct {
		AppchainID uint64
		LegacyKey  bool
	}

	AppchainValidatorsRequest struct {
		ID uint64 `json:"id"`
	}

	ValidatorSetRequest struct {
		AppchainID uint64 `json:"appchain_id"`
		Index      uint64 `json:"index"`
	}

	CurrentValidatorSetIndexRequest struct {
		AppchainID uint64 `json:"appchain_id"`
	}
)

func (NumAppchainsRequest) Method() string             { return "get_num_appchains" }
func (TotalStakedBalanceRequest) Method() string       { return "get_total_staked_balance" }
func (MinimumStakingAmountRequest) Method() string     { return "get_minium_staking_amount" }
func (AppchainsRequest) Method() string                { return "get_appchains" }
func (AppchainRequest) Method() string                 { return "get_appchain" }
func (AppchainValidatorsRequest) Method() string       { return "get_appchain_validators" }
func (ValidatorSetRequest) Method() string             { return "get_validator_set" }
func (CurrentValidatorSetIndexRequest) Method() string { return "get_curr_validator_set_index" }

func (r AppchainRequest) MarshalJSON() ([]byte, error) {
	if r.LegacyKey {
		return json.Marshal(struct {
			ID uint64 `json:"id"`
		}{r.AppchainID})
	}
	return json.Marshal(struct {
		AppchainID uint64 `json:"appchain_id"`
	}{r.AppchainID})
}

// relay contract, change methods

type (
	/*
		RegisterAppchainRequest registers new appchain. In token bond mode the bond
		is sent as "bond_tokens", in native mode as "bond_balance" (and attached
		as deposit).
	*/
	RegisterAppchainRequest struct {
		AppchainName string        `json:"appchain_name"`
		RuntimeURL   string        `json:"runtime_url"`
		RuntimeHash  string        `json:"runtime_hash"`
		BondTokens   *types.Amount `json:"bond_tokens,omitempty"`
		BondBalance  *types.Amount `json:"bond_balance,omitempty"`
	}

	StakingRequest struct {
		AppchainID  uint64       `json:"appchain_id"`
		ValidatorID string       `json:"id"`
		OcwID       string       `json:"ocw_id,omitempty"`
		Amount      types.Amount `json:"amount"`
	}

	StakeToBeValidatorRequest struct {
		AppchainID      uint64 `json:"appchain_id"`
		AppchainAccount string `json:"appchain_account"`
	}

	StakingMoreRequest struct {
		AppchainID uint64       `json:"appchain_id"`
		Amount     types.Amount `json:"amount"`
	}

	UnstakingRequest struct {
		AppchainID uint64 `json:"appchain_id"`
	}

	UnstakeRequest struct {
		AppchainID uint64 `json:"appchain_id"`
	}

	ActiveAppchainRequest struct {
		AppchainID uint64 `json:"appchain_id"`
	}
)

func (RegisterAppchainRequest) Method() string   { return "register_appchain" }
func (StakingRequest) Method() string            { return "staking" }
func (StakeToBeValidatorRequest) Method() string { return "stake_to_be_validator" }
func (StakingMoreRequest) Method() string        { return "staking_more" }
func (UnstakingRequest) Method() string          { return "unstaking" }
func (UnstakeRequest) Method() string            { return "unstake" }
func (ActiveAppchainRequest) Method() string     { return "active_appchain" }

// token contract

type (
	AllowanceRequest struct {
		OwnerID         types.AccountID `json:"owner_id"`
		EscrowAccountID types.AccountID `json:"escrow_account_id"`
	}

	IncAllowanceRequest struct {
		EscrowAccountID types.AccountID `json:"escrow_account_id"`
		Amount          types.Amount    `json:"amount"`
	}

	BalanceRequest struct {
		OwnerID types.AccountID `json:"owner_id"`
	}
)

func (AllowanceRequest) Method() string    { return "get_allowance" }
func (IncAllowanceRequest) Method() string { return "inc_allowance" }
func (BalanceRequest) Method() string      { return "get_balance" }

var errMissingField = errors.New("required field is missing")
