package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/octopus-network/relay-client/observability"
)

type (
	octopusApp struct {
		baseCmd    *cobra.Command
		baseConfig *baseConfiguration
	}
)

// New creates a new relay client application
func New(logF LoggerFactory) *octopusApp {
	baseCmd, baseConfig := newBaseCmd(logF)
	return &octopusApp{baseCmd, baseConfig}
}

/*
WithClients makes the application use "clients" instead of the ones built
from the node and wallet URLs.
*/
func (a *octopusApp) WithClients(clients *Clients) *octopusApp {
	a.baseConfig.clients = clients
	return a
}

// Execute adds all child commands and runs the application
func (a *octopusApp) Execute(ctx context.Context) (err error) {
	defer func() {
		if a.baseConfig.observe != nil {
			err = errors.Join(err, a.baseConfig.observe.Shutdown())
		}
	}()

	return a.addAndExecuteCommand(ctx)
}

func (a *octopusApp) addAndExecuteCommand(ctx context.Context) error {
	for _, newCmd := range []func(*baseConfiguration) *cobra.Command{
		newAppchainsCmd,
		newValidatorsCmd,
		newRegisterCmd,
		newStakeCmd,
		newStakeMoreCmd,
		newUnstakeCmd,
		newActivateCmd,
		newApproveCmd,
		newAllowanceCmd,
		newLoginCmd,
		newLogoutCmd,
		newWhoamiCmd,
		newHeightCmd,
		newServeCmd,
	} {
		a.baseCmd.AddCommand(newCmd(a.baseConfig))
	}
	return a.baseCmd.ExecuteContext(ctx)
}

func newBaseCmd(logF LoggerFactory) (*cobra.Command, *baseConfiguration) {
	config := &baseConfiguration{loggerBuilder: logF}
	baseCmd := &cobra.Command{
		Use:           "octopus",
		Short:         "The Octopus relay client",
		Long:          `The Octopus relay client lists the appchains registered in the relay contract and submits the register, staking and activation actions.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// subcommands must not define PersistentPreRunE, it would replace this one
			if err := initializeConfig(cmd, config); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}
	config.addConfigurationFlags(baseCmd)

	return baseCmd, config
}

func initializeConfig(cmd *cobra.Command, config *baseConfiguration) error {
	if err := config.initializeConfig(cmd); err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	if err := config.initLogger(cmd); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	metrics, err := cmd.Flags().GetString(keyMetrics)
	if err != nil {
		return fmt.Errorf("reading flag %q: %w", keyMetrics, err)
	}
	obs, err := observability.New(metrics, config.log)
	if err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	config.observe = obs
	return nil
}

/*
initializeConfig applies the values of the config file and the environment to
the flags of "cmd" not set on the command line. Environment variable of a flag
is the upper-cased flag name, dashes replaced with underscores, prefixed with
OCT_, e.g. --node-url binds to OCT_NODE_URL.
*/
func (config *baseConfiguration) initializeConfig(cmd *cobra.Command) error {
	config.initConfigFileLocation()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if config.configFileExists() {
		// config.props is "key=value" per line
		v.SetConfigFile(config.CfgFile)
		v.SetConfigType("properties")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", config.CfgFile, err)
		}
	}

	return applyViperValues(cmd.Flags(), v)
}

func applyViperValues(flags *pflag.FlagSet, v *viper.Viper) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		// home and config locate the config file, these are resolved before viper is set up
		if f.Changed || f.Name == keyHome || f.Name == keyConfig || !v.IsSet(f.Name) {
			return
		}
		if err := flags.Set(f.Name, fmt.Sprint(v.Get(f.Name))); err != nil {
			errs = append(errs, fmt.Errorf("setting flag %q value: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
