package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octopus-network/relay-client/orchestrator"
	"github.com/octopus-network/relay-client/session"
)

// runAction wires the runtime and runs the change action "f" of "kind".
func runAction(cmd *cobra.Command, config *baseConfiguration, kind orchestrator.ActionKind, f func(ctx context.Context, rt *runtime) error) error {
	rt, err := config.newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if !rt.orch.Supports(kind) {
		return fmt.Errorf("%s is not supported in %s bond mode", kind, rt.mode)
	}
	if err := f(cmd.Context(), rt); err != nil {
		if orchestrator.ReasonOf(err) == orchestrator.ReasonNeedsApproval {
			consoleWriter.Line("Run \"octopus approve\" to authorize the relay contract to spend your tokens.")
		}
		return err
	}
	consoleWriter.Linef("%s succeeded", kind)
	return nil
}

func newRegisterCmd(config *baseConfiguration) *cobra.Command {
	var p orchestrator.RegisterParams
	var bond amountFlag
	var cmd = &cobra.Command{
		Use:   "register",
		Short: "registers a new appchain, the signed-in account becomes the founder",
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Bond = bond.Amount
			return runAction(cmd, config, orchestrator.ActionRegister, func(ctx context.Context, rt *runtime) error {
				surface, err := rt.orch.OpenRegister(ctx)
				if err != nil {
					return err
				}
				if surface.Allowance != nil {
					consoleWriter.Linef("Allowance: %s", surface.Allowance.Amount)
				}
				if !surface.Offers(orchestrator.ActionRegister) {
					return &orchestrator.PreconditionError{
						Action: orchestrator.ActionRegister,
						Reason: orchestrator.ReasonNeedsApproval,
						Msg:    "relay contract is not approved to spend the bond",
					}
				}
				return rt.orch.Register(ctx, p)
			})
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "name of the appchain")
	cmd.Flags().StringVar(&p.RuntimeURL, "runtime-url", "", "URL of the appchain runtime")
	cmd.Flags().StringVar(&p.RuntimeHash, "runtime-hash", "", "hash of the appchain runtime")
	cmd.Flags().Var(&bond, "bond", "bond amount in the smallest unit")
	mustMarkRequired(cmd, "name", "bond")
	return cmd
}

func newStakeCmd(config *baseConfiguration) *cobra.Command {
	var p orchestrator.StakeParams
	var amount amountFlag
	var cmd = &cobra.Command{
		Use:   "stake <appchain id>",
		Short: "stakes to the appchain to become its validator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppchainID(args[0])
			if err != nil {
				return err
			}
			p.AppchainID = id
			p.Amount = amount.Amount
			return runAction(cmd, config, orchestrator.ActionStake, func(ctx context.Context, rt *runtime) error {
				return rt.orch.Stake(ctx, p)
			})
		},
	}
	cmd.Flags().StringVar(&p.ValidatorID, "validator-id", "", "validator id of the appchain node (token bond mode)")
	cmd.Flags().StringVar(&p.OcwID, "ocw-id", "", "offchain worker id, in native bond mode the appchain account of the validator")
	cmd.Flags().Var(&amount, "amount", "staking amount in the smallest unit")
	mustMarkRequired(cmd, "amount")
	return cmd
}

func newStakeMoreCmd(config *baseConfiguration) *cobra.Command {
	var amount amountFlag
	var cmd = &cobra.Command{
		Use:   "stake-more <appchain id>",
		Short: "increases the stake of the signed-in account on the appchain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppchainID(args[0])
			if err != nil {
				return err
			}
			return runAction(cmd, config, orchestrator.ActionStakeMore, func(ctx context.Context, rt *runtime) error {
				return rt.orch.StakeMore(ctx, id, amount.Amount)
			})
		},
	}
	cmd.Flags().Var(&amount, "amount", "additional staking amount in the smallest unit")
	mustMarkRequired(cmd, "amount")
	return cmd
}

func newUnstakeCmd(config *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "unstake <appchain id>",
		Short: "withdraws the stake of the signed-in account from the appchain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppchainID(args[0])
			if err != nil {
				return err
			}
			return runAction(cmd, config, orchestrator.ActionUnstake, func(ctx context.Context, rt *runtime) error {
				return rt.orch.Unstake(ctx, id)
			})
		},
	}
}

func newActivateCmd(config *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <appchain id>",
		Short: "activates the frozen appchain founded by the signed-in account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppchainID(args[0])
			if err != nil {
				return err
			}
			return runAction(cmd, config, orchestrator.ActionActivate, func(ctx context.Context, rt *runtime) error {
				return rt.orch.Activate(ctx, id)
			})
		},
	}
}

func newApproveCmd(config *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "approve",
		Short: "authorizes the relay contract to spend the bond tokens of the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, config, orchestrator.ActionApprove, func(ctx context.Context, rt *runtime) error {
				return rt.orch.Approve(ctx)
			})
		},
	}
}

func newAllowanceCmd(config *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "allowance",
		Short: "shows the token allowance and balance of the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.gate == nil {
				return fmt.Errorf("allowance is not used in %s bond mode", rt.mode)
			}
			owner := rt.session.AccountID()
			if owner == "" {
				return session.ErrNotSignedIn
			}
			st, err := rt.gate.Ensure(cmd.Context(), owner)
			if err != nil {
				return err
			}
			balance, err := rt.gate.Balance(cmd.Context(), owner)
			if err != nil {
				return err
			}
			consoleWriter.Linef("Spender: %s", st.Spender)
			consoleWriter.Linef("Allowance: %s", st.Amount)
			consoleWriter.Linef("Approved: %t", st.Sufficient)
			consoleWriter.Linef("Balance: %s", balance)
			return nil
		},
	}
}

func mustMarkRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
