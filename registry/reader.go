package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/octopus-network/relay-client/gateway"
	"github.com/octopus-network/relay-client/logger"
	"github.com/octopus-network/relay-client/types"
)

type (
	// Overview is the registry wide summary fetched with every list read.
	Overview struct {
		NumAppchains   uint64        `json:"num_appchains"`
		TotalStaked    types.Amount  `json:"total_staked_balance"`
		MinimumStaking *types.Amount `json:"minimum_staking_amount,omitempty"`
		RelayBalance   *types.Amount `json:"relay_token_balance,omitempty"` // token balance of the relay contract
	}

	/*
		Snapshot is the result of one complete list fetch. Snapshot is never
		modified after it has been published, ids of the appchains are positions
		in the Appchains slice.
	*/
	Snapshot struct {
		Overview  Overview         `json:"overview"`
		Appchains []types.Appchain `json:"appchains"`
		FetchedAt time.Time        `json:"fetched_at"`
	}

	// Detail is the result of GetDetail, both reads fail independently.
	Detail struct {
		Appchain          *types.Appchain
		AppchainErr       error
		ValidatorSetIndex uint64
		IndexErr          error
	}

	Reader struct {
		relay    *gateway.Contract
		token    *gateway.Contract
		mode     types.BondMode
		pageSize uint64
		log      *slog.Logger

		mu        sync.RWMutex
		snapshot  *Snapshot
		fetchSeq  uint64 // sequence number of the last started fetch
		published uint64 // sequence number of the fetch which produced the snapshot
	}

	Option func(*Reader)
)

/*
WithPageSize makes the reader fetch the list in pages of "n" records instead
of one get_appchains call. Zero means single call.
*/
func WithPageSize(n uint64) Option {
	return func(r *Reader) {
		r.pageSize = n
	}
}

// WithTokenContract enables reading token balance of the relay in the overview.
func WithTokenContract(token *gateway.Contract) Option {
	return func(r *Reader) {
		r.token = token
	}
}

func NewReader(relay *gateway.Contract, mode types.BondMode, log *slog.Logger, opts ...Option) (*Reader, error) {
	if relay == nil {
		return nil, errors.New("relay contract gateway is nil")
	}
	if _, err := types.ParseBondMode(string(mode)); err != nil {
		return nil, err
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	r := &Reader{relay: relay, mode: mode, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Snapshot returns the last published snapshot, nil if none has been fetched yet.
func (r *Reader) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

/*
ListAppchains reads the overview and all the appchains of the registry. The
overview reads are issued concurrently, the list is fetched after the count is
known. On success the result is published as the current snapshot, on error
the previously published snapshot stays in place.
*/
func (r *Reader) ListAppchains(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	r.fetchSeq++
	seq := r.fetchSeq
	r.mu.Unlock()

	ov, err := r.readOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading registry overview: %w", err)
	}
	recs, err := r.readAppchains(ctx, ov.NumAppchains)
	if err != nil {
		return nil, fmt.Errorf("reading appchains: %w", err)
	}

	snap := &Snapshot{
		Overview:  ov,
		Appchains: make([]types.Appchain, len(recs)),
		FetchedAt: time.Now(),
	}
	for i := range recs {
		snap.Appchains[i] = recs[i].ToAppchain(i)
	}

	r.mu.Lock()
	if seq > r.published {
		r.snapshot = snap
		r.published = seq
	}
	r.mu.Unlock()
	r.log.DebugContext(ctx, fmt.Sprintf("fetched %d appchains", len(snap.Appchains)))
	return snap, nil
}

/*
Refresh invalidates the current snapshot by fetching a new one. Until the
new snapshot is complete readers keep seeing the old one.
*/
func (r *Reader) Refresh(ctx context.Context) error {
	_, err := r.ListAppchains(ctx)
	return err
}

func (r *Reader) readOverview(ctx context.Context) (Overview, error) {
	var ov Overview
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ov.NumAppchains, err = gateway.Query[uint64](ctx, r.relay, gateway.NumAppchainsRequest{})
		return err
	})
	g.Go(func() (err error) {
		ov.TotalStaked, err = gateway.Query[types.Amount](ctx, r.relay, gateway.TotalStakedBalanceRequest{})
		return err
	})
	if r.mode == types.BondModeToken {
		g.Go(func() error {
			amount, err := gateway.Query[types.Amount](ctx, r.relay, gateway.MinimumStakingAmountRequest{})
			ov.MinimumStaking = &amount
			return err
		})
		if r.token != nil {
			g.Go(func() error {
				amount, err := gateway.Query[types.Amount](ctx, r.token, gateway.BalanceRequest{OwnerID: r.relay.ID()})
				ov.RelayBalance = &amount
				return err
			})
		}
	}
	return ov, g.Wait()
}

func (r *Reader) readAppchains(ctx context.Context, n uint64) (gateway.AppchainRecords, error) {
	if n == 0 {
		return gateway.AppchainRecords{}, nil
	}
	limit := n
	if r.pageSize > 0 && r.pageSize < n {
		limit = r.pageSize
	}

	recs := make(gateway.AppchainRecords, 0, n)
	for from := uint64(0); from < n; {
		page, err := gateway.Query[gateway.AppchainRecords](ctx, r.relay, gateway.AppchainsRequest{FromIndex: from, Limit: min(limit, n-from)})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return nil, fmt.Errorf("registry returned %d appchains, expected %d", len(recs), n)
		}
		recs = append(recs, page...)
		from += uint64(len(page))
	}
	if uint64(len(recs)) != n {
		return nil, fmt.Errorf("registry returned %d appchains, expected %d", len(recs), n)
	}
	return recs, nil
}

/*
GetAppchain reads single appchain. The id of the returned record is "id".
*/
func (r *Reader) GetAppchain(ctx context.Context, id int) (*types.Appchain, error) {
	if id < 0 {
		return nil, fmt.Errorf("invalid appchain id %d", id)
	}
	req := gateway.AppchainRequest{AppchainID: uint64(id), LegacyKey: r.mode == types.BondModeNative}
	rec, err := gateway.Query[gateway.AppchainRecord](ctx, r.relay, req)
	if err != nil {
		return nil, fmt.Errorf("reading appchain %d: %w", id, err)
	}
	ac := rec.ToAppchain(id)
	return &ac, nil
}

/*
GetCurrentValidatorSetIndex returns the index of the latest validator set
epoch of the appchain. Native bond mode contract has no epochs, the only
set is epoch 0.
*/
func (r *Reader) GetCurrentValidatorSetIndex(ctx context.Context, id int) (uint64, error) {
	if id < 0 {
		return 0, fmt.Errorf("invalid appchain id %d", id)
	}
	if r.mode == types.BondModeNative {
		return 0, nil
	}
	idx, err := gateway.Query[uint64](ctx, r.relay, gateway.CurrentValidatorSetIndexRequest{AppchainID: uint64(id)})
	if err != nil {
		return 0, fmt.Errorf("reading current validator set index of appchain %d: %w", id, err)
	}
	return idx, nil
}

/*
GetDetail reads the appchain and its current validator set index
concurrently, errors are reported independently.
*/
func (r *Reader) GetDetail(ctx context.Context, id int) Detail {
	var d Detail
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.Appchain, d.AppchainErr = r.GetAppchain(ctx, id)
	}()
	go func() {
		defer wg.Done()
		d.ValidatorSetIndex, d.IndexErr = r.GetCurrentValidatorSetIndex(ctx, id)
	}()
	wg.Wait()
	if d.AppchainErr != nil {
		r.log.WarnContext(ctx, "reading appchain detail", logger.AppchainID(id), logger.Error(d.AppchainErr))
	}
	if d.IndexErr != nil {
		r.log.WarnContext(ctx, "reading validator set index", logger.AppchainID(id), logger.Error(d.IndexErr))
	}
	return d
}

// GetValidators returns current validators of the appchain.
func (r *Reader) GetValidators(ctx context.Context, id int) ([]types.Validator, error) {
	if id < 0 {
		return nil, fmt.Errorf("invalid appchain id %d", id)
	}
	recs, err := gateway.Query[gateway.ValidatorRecords](ctx, r.relay, gateway.AppchainValidatorsRequest{ID: uint64(id)})
	if err != nil {
		return nil, fmt.Errorf("reading validators of appchain %d: %w", id, err)
	}
	vals := make([]types.Validator, len(recs))
	for i := range recs {
		vals[i] = recs[i].ToValidator()
	}
	return vals, nil
}

/*
GetValidatorSet returns the validator set of the appchain at given epoch.
In native bond mode epoch 0 is answered with the current validators.
*/
func (r *Reader) GetValidatorSet(ctx context.Context, id int, epoch uint64) (*types.ValidatorSetEpoch, error) {
	if id < 0 {
		return nil, fmt.Errorf("invalid appchain id %d", id)
	}
	if r.mode == types.BondModeNative {
		if epoch != 0 {
			return nil, fmt.Errorf("appchain %d has no validator set epoch %d", id, epoch)
		}
		vals, err := r.GetValidators(ctx, id)
		if err != nil {
			return nil, err
		}
		return &types.ValidatorSetEpoch{AppchainID: id, EpochIndex: 0, Validators: vals}, nil
	}

	rec, err := gateway.Query[gateway.ValidatorSetRecord](ctx, r.relay, gateway.ValidatorSetRequest{AppchainID: uint64(id), Index: epoch})
	if err != nil {
		return nil, fmt.Errorf("reading validator set %d of appchain %d: %w", epoch, id, err)
	}
	vs := rec.ToEpoch(id, epoch)
	return &vs, nil
}
