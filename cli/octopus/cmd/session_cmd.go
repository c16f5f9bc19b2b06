package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/octopus-network/relay-client/types"
)

func newLoginCmd(config *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "login <account id>",
		Short: "signs in the account, change calls are signed by the wallet on behalf of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.session.SignIn(types.AccountID(args[0])); err != nil {
				return fmt.Errorf("signing in: %w", err)
			}
			consoleWriter.Linef("Signed in as %s", rt.session.AccountID())
			return nil
		},
	}
}

func newLogoutCmd(config *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "signs out the current account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.session.SignOut(); err != nil {
				return fmt.Errorf("signing out: %w", err)
			}
			consoleWriter.Line("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(config *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "prints the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if !rt.session.IsSignedIn() {
				consoleWriter.Line("Not signed in")
				return nil
			}
			consoleWriter.Linef("%s (signed in at %s)", rt.session.AccountID(), rt.session.SignedInAt().Format(time.RFC3339))
			return nil
		},
	}
}
