package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octopus-network/relay-client/validatorset"
)

func newValidatorsCmd(config *baseConfiguration) *cobra.Command {
	var back uint64
	var current bool
	var cmd = &cobra.Command{
		Use:   "validators <appchain id>",
		Short: "shows the validator set of the appchain",
		Long:  "shows the validator set of the latest epoch of the appchain, use --back to step to the earlier epochs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppchainID(args[0])
			if err != nil {
				return err
			}
			rt, err := config.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if current {
				vals, err := rt.registry.GetValidators(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("reading validators of appchain %d: %w", id, err)
				}
				for _, v := range vals {
					consoleWriter.Line(formatValidator(v))
				}
				return nil
			}

			nav, err := validatorset.NewNavigator(rt.registry, config.log)
			if err != nil {
				return err
			}
			if err := nav.Select(cmd.Context(), id); err != nil {
				return err
			}
			for i := uint64(0); i < back; i++ {
				if !nav.Prev() {
					break
				}
			}
			nav.Wait()

			view := nav.Displayed()
			if view.Err != nil {
				return fmt.Errorf("loading validator set of epoch %d: %w", view.Cursor, view.Err)
			}
			consoleWriter.Linef("Epoch %d of %d", view.Cursor, view.Max)
			if view.Set == nil {
				return nil
			}
			for _, v := range view.Set.Validators {
				consoleWriter.Line(formatValidator(v))
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&back, "back", 0, "number of epochs to step back from the latest one")
	cmd.Flags().BoolVar(&current, "current", false, "show the current validators with the staked amounts instead of the epoch set")
	return cmd
}
