package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/octopus-network/relay-client/orchestrator"
	"github.com/octopus-network/relay-client/types"
)

func newAppchainsCmd(config *baseConfiguration) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "appchains",
		Short: "lists and inspects the appchains of the relay contract",
		Run: func(cmd *cobra.Command, args []string) {
			consoleWriter.Line("Error: must specify a subcommand")
		},
	}
	cmd.AddCommand(newAppchainsListCmd(config))
	cmd.AddCommand(newAppchainsShowCmd(config))
	return cmd
}

func newAppchainsListCmd(config *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "lists all registered appchains and the registry overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			snap, err := rt.registry.ListAppchains(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing appchains: %w", err)
			}
			ov := snap.Overview
			consoleWriter.Linef("Appchains: %d", ov.NumAppchains)
			consoleWriter.Linef("Total staked: %s", ov.TotalStaked)
			if ov.MinimumStaking != nil {
				consoleWriter.Linef("Minimum staking: %s", ov.MinimumStaking)
			}
			if ov.RelayBalance != nil {
				consoleWriter.Linef("Relay token balance: %s", ov.RelayBalance)
			}
			for i := range snap.Appchains {
				ac := &snap.Appchains[i]
				consoleWriter.Linef("#%d %s founder=%s status=%s bond=%s validators=%d%s",
					ac.ID, ac.Name, ac.FounderID, ac.Status, ac.BondAmount, ac.NumValidators,
					formatActions(rt.orch.RowActions(ac)))
			}
			return nil
		},
	}
}

func newAppchainsShowCmd(config *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "show <appchain id>",
		Short: "shows the appchain and its current validator set index",
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

			d := rt.registry.GetDetail(cmd.Context(), id)
			if d.AppchainErr != nil && d.IndexErr != nil {
				return fmt.Errorf("reading appchain %d: %w", id, d.AppchainErr)
			}
			if d.AppchainErr != nil {
				consoleWriter.Linef("Appchain: error: %v", d.AppchainErr)
			} else {
				ac := d.Appchain
				consoleWriter.Linef("Appchain #%d %s", ac.ID, ac.Name)
				consoleWriter.Linef("Founder: %s", ac.FounderID)
				consoleWriter.Linef("Status: %s", ac.Status)
				consoleWriter.Linef("Runtime: %s (%s)", ac.RuntimeURL, ac.RuntimeHash)
				consoleWriter.Linef("Bond: %s", ac.BondAmount)
				consoleWriter.Linef("Validators: %d", ac.NumValidators)
			}
			if d.IndexErr != nil {
				consoleWriter.Linef("Validator set index: error: %v", d.IndexErr)
			} else {
				consoleWriter.Linef("Validator set index: %d", d.ValidatorSetIndex)
			}
			if d.Appchain == nil || !rt.session.IsSignedIn() {
				return nil
			}
			if actions := rt.orch.RowActions(d.Appchain); len(actions) > 0 {
				consoleWriter.Linef("Actions: %s", joinActions(actions))
			}
			if d.Appchain.IsFoundedBy(rt.session.AccountID()) {
				return nil
			}
			surface, err := rt.orch.OpenStaking(cmd.Context(), id)
			if err != nil {
				return err
			}
			if surface.Allowance != nil {
				consoleWriter.Linef("Allowance: %s", surface.Allowance.Amount)
			}
			consoleWriter.Linef("Staking actions: %s", joinActions(surface.Actions))
			return nil
		},
	}
}

func parseAppchainID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid appchain id %q", s)
	}
	return id, nil
}

func joinActions(actions []orchestrator.ActionKind) string {
	s := make([]string, len(actions))
	for i, a := range actions {
		s[i] = a.String()
	}
	return strings.Join(s, ", ")
}

func formatActions(actions []orchestrator.ActionKind) string {
	if len(actions) == 0 {
		return ""
	}
	return " [" + joinActions(actions) + "]"
}

func formatValidator(v types.Validator) string {
	var sb strings.Builder
	sb.WriteString(string(v.AccountID))
	if v.ValidatorID != "" {
		sb.WriteString(" id=" + v.ValidatorID)
	}
	if v.OffchainWorkerID != "" {
		sb.WriteString(" ocw=" + v.OffchainWorkerID)
	}
	sb.WriteString(" staked=" + v.StakedAmount.String())
	sb.WriteString(" weight=" + v.Weight.String())
	return sb.String()
}
