package gateway

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// KindTransport - the call didn't reach the contract or the response was
	// lost (network, RPC node failure).
	KindTransport ErrorKind = iota + 1
	// KindContractRejection - the call was executed but reverted or returned
	// something which doesn't match the expected response schema.
	KindContractRejection
)

var (
	ErrTransport         = errors.New("transport error")
	ErrContractRejection = errors.New("contract rejection")
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport error"
	case KindContractRejection:
		return "contract rejection"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

/*
Error is returned by every failed gateway call. Msg is the raw message of the
transport or the contract, the gateway doesn't interpret it.

Use errors.Is with ErrTransport or ErrContractRejection to test for the kind.
*/
type Error struct {
	Kind   ErrorKind
	Method string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s calling %q: %s", e.Kind, e.Method, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrContractRejection:
		return e.Kind == KindContractRejection
	}
	return false
}

func transportErr(method string, err error) *Error {
	return &Error{Kind: KindTransport, Method: method, Msg: err.Error(), Err: err}
}

func rejection(method, msg string) *Error {
	return &Error{Kind: KindContractRejection, Method: method, Msg: msg}
}

/*
asGatewayErr makes sure "err" is *Error, errors of unknown origin are
classified as transport errors.
*/
func asGatewayErr(method string, err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		if ge.Method == "" {
			ge.Method = method
		}
		return ge
	}
	return transportErr(method, err)
}
