package gateway

import (
	"fmt"

	"github.com/octopus-network/relay-client/types"
)

/*
AppchainRecord is the appchain as returned by get_appchain and get_appchains.
Contract generations differ in naming of some fields, all known names are
accepted and normalised by ToAppchain.
*/
type AppchainRecord struct {
	ID                    *uint64              `json:"id,omitempty"`
	AppchainName          string               `json:"appchain_name"`
	FounderID             types.AccountID      `json:"founder_id"`
	RuntimeURL            string               `json:"runtime_url"`
	RuntimeHash           string               `json:"runtime_hash"`
	ChainSpecURL          string               `json:"chain_spec_url,omitempty"`
	ChainSpecHash         string               `json:"chain_spec_hash,omitempty"`
	BondTokens            *types.Amount        `json:"bond_tokens,omitempty"`
	BondBalance           *types.Amount        `json:"bond_balance,omitempty"`
	StakedBalance         *types.Amount        `json:"staked_balance,omitempty"`
	Status                types.AppchainStatus `json:"status"`
	ValidatorSetIndex     *uint64              `json:"validator_set_index,omitempty"`
	CurrValidatorSetIndex *uint64              `json:"curr_validator_set_index,omitempty"`
	BlockHeight           *uint64              `json:"block_height,omitempty"`
	NumValidators         *uint64              `json:"num_validators,omitempty"`
	Validators            []ValidatorRecord    `json:"validators,omitempty"`
	StakeRecords          []StakeRecordWire    `json:"stake_records,omitempty"`
}

type ValidatorRecord struct {
	ID            string          `json:"id,omitempty"`
	AppchainID    *uint64         `json:"appchain_id,omitempty"`
	ValidatorID   string          `json:"validator_id,omitempty"`
	AccountID     types.AccountID `json:"account_id"`
	OcwID         string          `json:"ocw_id,omitempty"`
	AppchainAcc   string          `json:"appchain_account,omitempty"`
	Weight        *types.Amount   `json:"weight,omitempty"`
	StakedAmount  *types.Amount   `json:"staked_amount,omitempty"`
	StakedBalance *types.Amount   `json:"staked_balance,omitempty"`
	Amount        *types.Amount   `json:"amount,omitempty"`
	BlockHeight   *uint64         `json:"block_height,omitempty"`
	Delegations   []any           `json:"delegations,omitempty"`
}

type StakeRecordWire struct {
	Validator ValidatorRecord `json:"validator"`
}

// AppchainRecords is the response of get_appchains.
type AppchainRecords []AppchainRecord

// ValidatorRecords is the response of get_appchain_validators.
type ValidatorRecords []ValidatorRecord

type ValidatorSetRecord struct {
	AppchainID *uint64           `json:"appchain_id,omitempty"`
	SeqNum     *uint64           `json:"seq_num,omitempty"`
	SetID      *uint64           `json:"set_id,omitempty"`
	Index      *uint64           `json:"index,omitempty"`
	Validators []ValidatorRecord `json:"validators"`
}

func (r *AppchainRecord) Validate() error {
	if r.AppchainName == "" {
		return fmt.Errorf("appchain_name: %w", errMissingField)
	}
	if r.FounderID == "" {
		return fmt.Errorf("founder_id: %w", errMissingField)
	}
	for i := range r.Validators {
		if err := r.Validators[i].Validate(); err != nil {
			return fmt.Errorf("validator[%d]: %w", i, err)
		}
	}
	for i := range r.StakeRecords {
		if err := r.StakeRecords[i].Validator.Validate(); err != nil {
			return fmt.Errorf("stake_records[%d]: %w", i, err)
		}
	}
	return nil
}

func (r *ValidatorRecord) Validate() error {
	if r.AccountID == "" {
		return fmt.Errorf("account_id: %w", errMissingField)
	}
	return nil
}

func (r AppchainRecords) Validate() error {
	for i := range r {
		if err := r[i].Validate(); err != nil {
			return fmt.Errorf("appchain[%d]: %w", i, err)
		}
	}
	return nil
}

func (r ValidatorRecords) Validate() error {
	for i := range r {
		if err := r[i].Validate(); err != nil {
			return fmt.Errorf("validator[%d]: %w", i, err)
		}
	}
	return nil
}

func (r *ValidatorSetRecord) Validate() error {
	for i := range r.Validators {
		if err := r.Validators[i].Validate(); err != nil {
			return fmt.Errorf("validator[%d]: %w", i, err)
		}
	}
	return nil
}

/*
ToAppchain converts the wire record into the internal record, "id" is the
position of the record in the list it was fetched with.
*/
func (r *AppchainRecord) ToAppchain(id int) types.Appchain {
	ac := types.Appchain{
		ID:          id,
		Name:        r.AppchainName,
		FounderID:   r.FounderID,
		RuntimeURL:  r.RuntimeURL,
		RuntimeHash: r.RuntimeHash,
		Status:      r.Status,
	}
	switch {
	case r.BondTokens != nil:
		ac.BondAmount = *r.BondTokens
	case r.BondBalance != nil:
		ac.BondAmount = *r.BondBalance
	case r.StakedBalance != nil:
		ac.BondAmount = *r.StakedBalance
	}
	switch {
	case r.ValidatorSetIndex != nil:
		ac.ValidatorSetIndex = *r.ValidatorSetIndex
	case r.CurrValidatorSetIndex != nil:
		ac.ValidatorSetIndex = *r.CurrValidatorSetIndex
	}

	vals := r.Validators
	if len(vals) == 0 {
		for _, sr := range r.StakeRecords {
			vals = append(vals, sr.Validator)
		}
	}
	if len(vals) > 0 {
		ac.StakeRecords = make([]types.StakeRecord, len(vals))
		for i := range vals {
			ac.StakeRecords[i] = types.StakeRecord{Validator: vals[i].ToValidator()}
		}
	}
	ac.NumValidators = uint64(len(ac.StakeRecords))
	if r.NumValidators != nil {
		ac.NumValidators = *r.NumValidators
	}
	return ac
}

/*
ToValidator converts validator record into internal one. When the ledger
doesn't report weight it is derived as the staked amount.
*/
func (r *ValidatorRecord) ToValidator() types.Validator {
	v := types.Validator{
		ValidatorID:      r.ValidatorID,
		AccountID:        r.AccountID,
		OffchainWorkerID: r.OcwID,
	}
	if v.ValidatorID == "" {
		v.ValidatorID = r.ID
	}
	if v.OffchainWorkerID == "" {
		v.OffchainWorkerID = r.AppchainAcc
	}
	switch {
	case r.StakedAmount != nil:
		v.StakedAmount = *r.StakedAmount
	case r.StakedBalance != nil:
		v.StakedAmount = *r.StakedBalance
	case r.Amount != nil:
		v.StakedAmount = *r.Amount
	}
	if r.Weight != nil {
		v.Weight = *r.Weight
	} else {
		v.Weight = v.StakedAmount
	}
	return v
}

func (r *ValidatorSetRecord) ToEpoch(appchainID int, epoch uint64) types.ValidatorSetEpoch {
	vs := types.ValidatorSetEpoch{
		AppchainID: appchainID,
		EpochIndex: epoch,
		Validators: make([]types.Validator, len(r.Validators)),
	}
	for i := range r.Validators {
		vs.Validators[i] = r.Validators[i].ToValidator()
	}
	return vs
}
