package cmd

import (
	"github.com/octopus-network/relay-client/types"
)

// amountFlag "amount" cli flag, implements github.com/spf13/pflag/flag.go#Value interface
type amountFlag struct {
	types.Amount
}

// Set parses the decimal string of the smallest token unit
func (a *amountFlag) Set(v string) error {
	amount, err := types.ParseAmount(v)
	if err != nil {
		return err
	}
	a.Amount = amount
	return nil
}

// Type used to show the type value in the help contex
func (a *amountFlag) Type() string {
	return "amount"
}
