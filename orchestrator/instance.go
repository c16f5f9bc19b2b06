package orchestrator

import (
	"errors"
	"fmt"
	"sync"
)

type ActionKind int

const (
	ActionRegister ActionKind = iota
	ActionStake
	ActionStakeMore
	ActionUnstake
	ActionActivate
	// ActionApprove is the allowance approval sub-flow of the value bearing actions.
	ActionApprove
)

func (k ActionKind) String() string {
	switch k {
	case ActionRegister:
		return "register"
	case ActionStake:
		return "stake"
	case ActionStakeMore:
		return "stake-more"
	case ActionUnstake:
		return "unstake"
	case ActionActivate:
		return "activate"
	case ActionApprove:
		return "approve"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrInFlight = errors.New("action is already being submitted")

/*
Instance is the submission state machine of one action kind:

	Idle -> Submitting -> Succeeded
	              \-> Failed -> Idle

A new submission is accepted in any state but Submitting. Failed is
transitional, observers see it before the instance settles back to Idle.
*/
type Instance struct {
	kind ActionKind

	mu           sync.Mutex
	state        State
	lastErr      error
	onTransition []func(kind ActionKind, from, to State)
}

func newInstance(kind ActionKind) *Instance {
	return &Instance{kind: kind}
}

func (i *Instance) Kind() ActionKind { return i.kind }

// State returns the current state and the error of the last failed submission.
func (i *Instance) State() (State, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state, i.lastErr
}

// OnTransition registers callback which is called on every state change.
func (i *Instance) OnTransition(f func(kind ActionKind, from, to State)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onTransition = append(i.onTransition, f)
}

func (i *Instance) begin() error {
	i.mu.Lock()
	if i.state == StateSubmitting {
		i.mu.Unlock()
		return fmt.Errorf("%s: %w", i.kind, ErrInFlight)
	}
	from := i.state
	i.state = StateSubmitting
	i.lastErr = nil
	subs := i.onTransition
	i.mu.Unlock()

	i.notify(subs, from, StateSubmitting)
	return nil
}

// abort returns the instance to Idle without attempting the submission.
func (i *Instance) abort(err error) {
	i.mu.Lock()
	i.state = StateIdle
	i.lastErr = err
	subs := i.onTransition
	i.mu.Unlock()

	i.notify(subs, StateSubmitting, StateIdle)
}

func (i *Instance) finish(err error) {
	i.mu.Lock()
	subs := i.onTransition
	if err == nil {
		i.state = StateSucceeded
		i.mu.Unlock()
		i.notify(subs, StateSubmitting, StateSucceeded)
		return
	}
	i.state = StateIdle
	i.lastErr = err
	i.mu.Unlock()

	i.notify(subs, StateSubmitting, StateFailed)
	i.notify(subs, StateFailed, StateIdle)
}

func (i *Instance) notify(subs []func(ActionKind, State, State), from, to State) {
	for _, f := range subs {
		f(i.kind, from, to)
	}
}

func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
