package validatorset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/octopus-network/relay-client/logger"
	"github.com/octopus-network/relay-client/types"
)

// Source of the validator set data, implemented by registry.Reader.
type Source interface {
	GetCurrentValidatorSetIndex(ctx context.Context, id int) (uint64, error)
	GetValidatorSet(ctx context.Context, id int, epoch uint64) (*types.ValidatorSetEpoch, error)
}

// View is the state of the navigator as seen by the consumer.
type View struct {
	Selected   bool
	AppchainID int
	Cursor     uint64
	Max        uint64
	// Set is the displayed validator set. While the epoch Cursor is loading
	// it's the set of the previous cursor (nil after Select).
	Set *types.ValidatorSetEpoch
	// Err is the error of loading the epoch Cursor.
	Err     error
	Loading bool
}

func (v View) CanPrev() bool { return v.Selected && v.Cursor > 0 }
func (v View) CanNext() bool { return v.Selected && v.Cursor < v.Max }

/*
Navigator tracks epoch cursor of the selected appchain. Every cursor change
loads the validator set of the new epoch asynchronously, only the response of
the most recently issued load is applied, so the set of the current selection
and cursor wins no matter in which order the responses arrive.
*/
type Navigator struct {
	src Source
	log *slog.Logger

	mu       sync.Mutex
	view     View
	selSeq   uint64 // incremented by every Select
	loadSeq  uint64 // incremented by every load, responses of older loads are discarded
	ctx      context.Context
	onChange []func(View)

	loads sync.WaitGroup
}

func NewNavigator(src Source, log *slog.Logger) (*Navigator, error) {
	if src == nil {
		return nil, errors.New("validator set source is nil")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	return &Navigator{src: src, log: log, ctx: context.Background()}, nil
}

// OnChange registers callback which is called every time the view changes.
func (n *Navigator) OnChange(f func(View)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = append(n.onChange, f)
}

// Displayed returns the current view.
func (n *Navigator) Displayed() View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.view
}

/*
Select makes "id" the selected appchain: reads its current validator set index
and moves the cursor to it (ie the latest epoch is displayed by default).
The context is used for the loads of the selection.
*/
func (n *Navigator) Select(ctx context.Context, id int) error {
	n.mu.Lock()
	n.selSeq++
	seq := n.selSeq
	n.mu.Unlock()

	latest, err := n.src.GetCurrentValidatorSetIndex(ctx, id)
	if err != nil {
		return fmt.Errorf("selecting appchain %d: %w", id, err)
	}

	n.mu.Lock()
	if seq != n.selSeq {
		n.mu.Unlock()
		return nil
	}
	n.ctx = ctx
	n.view = View{Selected: true, AppchainID: id, Cursor: latest, Max: latest}
	n.startLoad()
	n.mu.Unlock()
	n.notify()
	return nil
}

// Prev moves the cursor to the previous epoch, returns false (and does
// nothing) when the cursor is already at epoch 0.
func (n *Navigator) Prev() bool {
	n.mu.Lock()
	if !n.view.CanPrev() {
		n.mu.Unlock()
		return false
	}
	n.view.Cursor--
	n.startLoad()
	n.mu.Unlock()
	n.notify()
	return true
}

// Next moves the cursor to the next epoch, returns false (and does nothing)
// when the cursor is already at the latest epoch.
func (n *Navigator) Next() bool {
	n.mu.Lock()
	if !n.view.CanNext() {
		n.mu.Unlock()
		return false
	}
	n.view.Cursor++
	n.startLoad()
	n.mu.Unlock()
	n.notify()
	return true
}

// Wait blocks until all in-flight loads have finished.
func (n *Navigator) Wait() {
	n.loads.Wait()
}

// startLoad must be called holding the lock.
func (n *Navigator) startLoad() {
	n.view.Err = nil
	n.view.Loading = true
	n.loadSeq++
	seq, id, cursor, ctx := n.loadSeq, n.view.AppchainID, n.view.Cursor, n.ctx

	n.loads.Add(1)
	go func() {
		defer n.loads.Done()
		vs, err := n.src.GetValidatorSet(ctx, id, cursor)

		n.mu.Lock()
		if seq != n.loadSeq {
			n.mu.Unlock()
			n.log.DebugContext(ctx, fmt.Sprintf("discarding stale validator set response, cursor %d", cursor), logger.AppchainID(id), logger.Epoch(cursor))
			return
		}
		n.view.Set, n.view.Err, n.view.Loading = vs, err, false
		n.mu.Unlock()

		if err != nil {
			n.log.WarnContext(ctx, "loading validator set", logger.AppchainID(id), logger.Epoch(cursor), logger.Error(err))
		}
		n.notify()
	}()
}

func (n *Navigator) notify() {
	n.mu.Lock()
	v := n.view
	subs := n.onChange
	n.mu.Unlock()
	for _, f := range subs {
		f(v)
	}
}
