package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

/*
Amount is a token amount in base units. Ledger balances are u128 so the
value doesn't fit into uint64, it's backed by 256 bit unsigned integer.

In JSON the amount is accepted either as decimal string (the way the ledger
encodes U128) or as JSON number without fraction; it's always marshaled as
decimal string.
*/
type Amount struct {
	i uint256.Int
}

var errNegativeAmount = errors.New("amount must not be negative")

func NewAmount(v uint64) Amount {
	var a Amount
	a.i.SetUint64(v)
	return a
}

// ParseAmount parses decimal string representation of the amount.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if s == "" {
		return a, errors.New("amount is empty")
	}
	if s[0] == '-' {
		return a, errNegativeAmount
	}
	if err := a.i.SetFromDecimal(s); err != nil {
		return a, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return a, nil
}

// MustParseAmount is like ParseAmount but panics on error, meant for constants.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

/*
Pow10 returns m*10^exp, ie Pow10(3, 22) is the 3e22 deposit used by
most change calls.
*/
func Pow10(m uint64, exp uint) Amount {
	var a Amount
	a.i.Exp(uint256.NewInt(10), uint256.NewInt(uint64(exp)))
	a.i.Mul(&a.i, uint256.NewInt(m))
	return a
}

func (a Amount) IsZero() bool { return a.i.IsZero() }

func (a Amount) Cmp(b Amount) int { return a.i.Cmp(&b.i) }

func (a Amount) Add(b Amount) (Amount, error) {
	var r Amount
	if _, overflow := r.i.AddOverflow(&a.i, &b.i); overflow {
		return r, fmt.Errorf("adding %s to %s overflows", b, a)
	}
	return r, nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	var r Amount
	if _, underflow := r.i.SubOverflow(&a.i, &b.i); underflow {
		return r, fmt.Errorf("subtracting %s from %s underflows", b, a)
	}
	return r, nil
}

func (a Amount) String() string {
	return a.i.ToBig().String()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("amount must not be null")
	}
	var s string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		// JSON number, only integers are valid amounts
		if bytes.ContainsAny(data, ".eE") {
			return fmt.Errorf("amount must be an integer, got %s", data)
		}
		s = string(data)
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	v, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

/*
Gas is the execution fee ceiling attached to a change call. Encoded as
decimal string in JSON as the value may exceed the safe integer range of
JavaScript based wallets.
*/
type Gas uint64

func (g Gas) String() string { return strconv.FormatUint(uint64(g), 10) }

func (g Gas) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(g.String())), nil
}

func (g *Gas) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid gas value %s: %w", data, err)
	}
	*g = Gas(v)
	return nil
}
