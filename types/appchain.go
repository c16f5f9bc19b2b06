package types

import (
	"fmt"
	"slices"
)

// AccountID identifies ledger account, ie "alice.testnet".
type AccountID string

func (id AccountID) String() string { return string(id) }

type AppchainStatus string

const (
	StatusInQueue    AppchainStatus = "InQueue"
	StatusOnVote     AppchainStatus = "OnVote"
	StatusRegistered AppchainStatus = "Registered"
	StatusFrozen     AppchainStatus = "Frozen"
	StatusBroken     AppchainStatus = "Broken"
	StatusActive     AppchainStatus = "Active"
)

/*
Appchain is the client side view of an appchain registered in the relay
contract.

ID is NOT assigned by the ledger, it is the zero based position of the record
in the last full list fetch. It is stable only within one registry snapshot
and must not be persisted across registry mutations.
*/
type Appchain struct {
	ID                int            `json:"id"`
	Name              string         `json:"appchain_name"`
	FounderID         AccountID      `json:"founder_id"`
	RuntimeURL        string         `json:"runtime_url"`
	RuntimeHash       string         `json:"runtime_hash"`
	BondAmount        Amount         `json:"bond_amount"`
	Status            AppchainStatus `json:"status"`
	ValidatorSetIndex uint64         `json:"validator_set_index"`
	NumValidators     uint64         `json:"num_validators"`
	StakeRecords      []StakeRecord  `json:"stake_records"`
}

// StakeRecord is used only to test whether an account has staked on the appchain.
type StakeRecord struct {
	Validator Validator `json:"validator"`
}

type Validator struct {
	ValidatorID      string    `json:"validator_id,omitempty"`
	AccountID        AccountID `json:"account_id"`
	OffchainWorkerID string    `json:"ocw_id,omitempty"`
	StakedAmount     Amount    `json:"staked_amount"`
	// Weight is epoch scoped.
	Weight Amount `json:"weight"`
}

/*
ValidatorSetEpoch is the validator set of an appchain at given epoch. Epoch
indexes are contiguous from 0 to the current index of the appchain.
*/
type ValidatorSetEpoch struct {
	AppchainID int         `json:"appchain_id"`
	EpochIndex uint64      `json:"epoch_index"`
	Validators []Validator `json:"validators"`
}

// AllowanceState is transient, re-derived every time gated action is opened.
type AllowanceState struct {
	Owner   AccountID `json:"owner_id"`
	Spender AccountID `json:"escrow_account_id"`
	Amount  Amount    `json:"amount"`
}

// HasStakeFrom returns true when "account" already holds a stake on the appchain.
func (a *Appchain) HasStakeFrom(account AccountID) bool {
	if a == nil || account == "" {
		return false
	}
	return slices.ContainsFunc(a.StakeRecords, func(sr StakeRecord) bool {
		return sr.Validator.AccountID == account
	})
}

func (a *Appchain) IsFoundedBy(account AccountID) bool {
	return a != nil && account != "" && a.FounderID == account
}

/*
BondMode tells how the relay contract generation bonds stake: with external
fungible token (allowance must be approved first) or with the native
currency of the ledger attached as deposit.
*/
type BondMode string

const (
	BondModeToken  BondMode = "token"
	BondModeNative BondMode = "native"
)

func ParseBondMode(s string) (BondMode, error) {
	switch m := BondMode(s); m {
	case BondModeToken, BondModeNative:
		return m, nil
	default:
		return "", fmt.Errorf("unknown bond mode %q, expected %q or %q", s, BondModeToken, BondModeNative)
	}
}
