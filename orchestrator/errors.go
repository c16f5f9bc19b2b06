package orchestrator

import (
	"errors"
	"fmt"
)

var ErrPrecondition = errors.New("precondition not met")

type Reason string

const (
	ReasonNotSignedIn   Reason = "NotSignedIn"
	ReasonNeedsApproval Reason = "NeedsApproval"
	ReasonNotFounder    Reason = "NotFounder"
	ReasonNotFrozen     Reason = "NotFrozen"
	ReasonUnsupported   Reason = "Unsupported"
	ReasonInvalidInput  Reason = "InvalidInput"
)

/*
PreconditionError is returned when the action can't be offered in the current
state. The action is never sent to the ledger when it fails with
PreconditionError.
*/
type PreconditionError struct {
	Action ActionKind
	Reason Reason
	Msg    string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s: %s", e.Action, ErrPrecondition, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s: %s", e.Action, ErrPrecondition, e.Reason, e.Msg)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

func (e *PreconditionError) Unwrap() error { return e.Err }

func precondition(kind ActionKind, reason Reason, format string, a ...any) *PreconditionError {
	return &PreconditionError{Action: kind, Reason: reason, Msg: fmt.Sprintf(format, a...)}
}

// ReasonOf returns the reason of the precondition failure, empty string when
// "err" is not a precondition failure.
func ReasonOf(err error) Reason {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}
