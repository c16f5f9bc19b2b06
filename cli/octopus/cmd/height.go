package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newHeightCmd(config *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "height",
		Short: "prints the latest final block height of the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.height == nil {
				return errors.New("block height source is not configured")
			}
			h, err := rt.height.BlockHeight(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading block height: %w", err)
			}
			consoleWriter.Linef("%d", h)
			return nil
		},
	}
}
