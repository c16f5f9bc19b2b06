package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/octopus-network/relay-client/poller"
	"github.com/octopus-network/relay-client/registry"
	"github.com/octopus-network/relay-client/types"
)

type (
	RegistryReader interface {
		Snapshot() *registry.Snapshot
		ListAppchains(ctx context.Context) (*registry.Snapshot, error)
		Refresh(ctx context.Context) error
		GetDetail(ctx context.Context, id int) registry.Detail
		GetValidators(ctx context.Context, id int) ([]types.Validator, error)
		GetValidatorSet(ctx context.Context, id int, epoch uint64) (*types.ValidatorSetEpoch, error)
	}

	HeightReader interface {
		Height() (poller.Observation, bool)
		Stale(now time.Time, maxAge time.Duration) bool
	}

	// RelayAPI is the "relay" JSON-RPC namespace, read only view of the registry.
	RelayAPI struct {
		registry RegistryReader
		height   HeightReader
		opts     *Options
	}

	AppchainDetail struct {
		Appchain          *types.Appchain `json:"appchain,omitempty"`
		AppchainError     string          `json:"appchain_error,omitempty"`
		ValidatorSetIndex uint64          `json:"validator_set_index"`
		IndexError        string          `json:"index_error,omitempty"`
	}

	BlockHeight struct {
		poller.Observation
		Stale bool `json:"stale"`
	}
)

var errNoHeight = errors.New("block height has not been observed yet")

func NewRelayAPI(reg RegistryReader, height HeightReader, opts ...Option) *RelayAPI {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &RelayAPI{registry: reg, height: height, opts: o}
}

// snapshot returns the published snapshot, fetching it when there is none yet.
func (a *RelayAPI) snapshot(ctx context.Context) (*registry.Snapshot, error) {
	if snap := a.registry.Snapshot(); snap != nil {
		return snap, nil
	}
	return a.registry.ListAppchains(ctx)
}

// GetOverview returns the registry overview of the current snapshot.
func (a *RelayAPI) GetOverview(ctx context.Context) (*registry.Overview, error) {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &snap.Overview, nil
}

// GetAppchains returns all the appchains of the current snapshot.
func (a *RelayAPI) GetAppchains(ctx context.Context) ([]types.Appchain, error) {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Appchains, nil
}

// GetAppchain reads the appchain and its current validator set index.
func (a *RelayAPI) GetAppchain(ctx context.Context, id int) (*AppchainDetail, error) {
	d := a.registry.GetDetail(ctx, id)
	if d.AppchainErr != nil && d.IndexErr != nil {
		return nil, d.AppchainErr
	}
	rsp := &AppchainDetail{Appchain: d.Appchain, ValidatorSetIndex: d.ValidatorSetIndex}
	if d.AppchainErr != nil {
		rsp.AppchainError = d.AppchainErr.Error()
	}
	if d.IndexErr != nil {
		rsp.IndexError = d.IndexErr.Error()
	}
	return rsp, nil
}

func (a *RelayAPI) GetValidators(ctx context.Context, id int) ([]types.Validator, error) {
	return a.registry.GetValidators(ctx, id)
}

func (a *RelayAPI) GetValidatorSet(ctx context.Context, id int, epoch uint64) (*types.ValidatorSetEpoch, error) {
	return a.registry.GetValidatorSet(ctx, id, epoch)
}

// GetBlockHeight returns the last block height observed by the poller.
func (a *RelayAPI) GetBlockHeight() (*BlockHeight, error) {
	if a.height == nil {
		return nil, errors.New("block height poller is disabled")
	}
	obs, ok := a.height.Height()
	if !ok {
		return nil, errNoHeight
	}
	return &BlockHeight{Observation: obs, Stale: a.height.Stale(time.Now(), a.opts.maxHeightAge)}, nil
}

// Refresh reloads the registry snapshot and returns the number of appchains.
func (a *RelayAPI) Refresh(ctx context.Context) (uint64, error) {
	if err := a.registry.Refresh(ctx); err != nil {
		return 0, fmt.Errorf("refreshing registry: %w", err)
	}
	return a.registry.Snapshot().Overview.NumAppchains, nil
}
