package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/octopus-network/relay-client/logger"
	"github.com/octopus-network/relay-client/observability"
	"github.com/octopus-network/relay-client/types"
)

type (
	LoggerFactory func(cfg *logger.LogConfiguration) (*slog.Logger, error)

	baseConfiguration struct {
		// The client home directory
		HomeDir string
		// Configuration file URL. If it's relative, then it's relative from the HomeDir.
		CfgFile string
		// Logger configuration file URL.
		LogCfgFile string

		NodeURL       string
		WalletURL     string
		RelayContract string
		TokenContract string
		BondMode      string
		RateLimit     float64
		PageSize      uint64

		loggerBuilder LoggerFactory
		log           *slog.Logger
		observe       *observability.Observability
		clients       *Clients
	}
)

const (
	// The prefix for configuration keys inside environment.
	envPrefix = "OCT"
	// The default name for config file.
	defaultConfigFile = "config.props"
	// the default client directory.
	defaultOctopusDir = ".octopus"
	// The default logger configuration file name.
	defaultLoggerConfigFile = "logger-config.yaml"
	// The session database file name.
	sessionDBFile = "session.db"
	// The configuration key for home directory.
	keyHome = "home"
	// The configuration key for config file name.
	keyConfig = "config"
	// Enables or disables metrics collection
	keyMetrics = "metrics"

	flagNameLoggerCfgFile = "logger-config"
	flagNameLogOutputFile = "log-file"
	flagNameLogLevel      = "log-level"
	flagNameLogFormat     = "log-format"

	flagNameNodeURL       = "node-url"
	flagNameWalletURL     = "wallet-url"
	flagNameRelayContract = "relay-contract"
	flagNameTokenContract = "token-contract"
	flagNameBondMode      = "bond-mode"
	flagNameRateLimit     = "rpc-rate-limit"
	flagNamePageSize      = "page-size"

	defaultNodeURL       = "https://rpc.testnet.near.org"
	defaultWalletURL     = "http://localhost:3030"
	defaultRelayContract = "dev-oct-relay.testnet"
	defaultTokenContract = "dev-oct-token.testnet"
)

func (r *baseConfiguration) addConfigurationFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&r.HomeDir, keyHome, "", fmt.Sprintf("set the OCT_HOME for this invocation (default is %s)", octopusHomeDir()))
	cmd.PersistentFlags().StringVar(&r.CfgFile, keyConfig, "", fmt.Sprintf("config file URL (default is $OCT_HOME/%s)", defaultConfigFile))

	cmd.PersistentFlags().String(keyMetrics, "", "metrics exporter, disabled when not set. One of: stdout, prometheus")

	cmd.PersistentFlags().StringVar(&r.LogCfgFile, flagNameLoggerCfgFile, defaultLoggerConfigFile, "logger config file URL. Considered absolute if starts with '/'. Otherwise relative from $OCT_HOME.")
	// do not set default values for these flags as then we can easily determine whether to load the value from cfg file or not
	cmd.PersistentFlags().String(flagNameLogOutputFile, "", "log file path or one of the special values: stdout, stderr, discard")
	cmd.PersistentFlags().String(flagNameLogLevel, "", "logging level, one of: DEBUG, INFO, WARN, ERROR")
	cmd.PersistentFlags().String(flagNameLogFormat, "", "log format, one of: text, json, console, wallet, ecs")

	cmd.PersistentFlags().StringVar(&r.NodeURL, flagNameNodeURL, defaultNodeURL, "ledger node JSON-RPC URL")
	cmd.PersistentFlags().StringVar(&r.WalletURL, flagNameWalletURL, defaultWalletURL, "wallet service URL, change calls are signed by the wallet")
	cmd.PersistentFlags().StringVar(&r.RelayContract, flagNameRelayContract, defaultRelayContract, "account id of the relay contract")
	cmd.PersistentFlags().StringVar(&r.TokenContract, flagNameTokenContract, defaultTokenContract, "account id of the bond token contract")
	cmd.PersistentFlags().StringVar(&r.BondMode, flagNameBondMode, string(types.BondModeToken), fmt.Sprintf("bond mode of the relay contract generation, one of: %s, %s", types.BondModeToken, types.BondModeNative))
	cmd.PersistentFlags().Float64Var(&r.RateLimit, flagNameRateLimit, 10, "maximum number of node requests per second, zero means no limit")
	cmd.PersistentFlags().Uint64Var(&r.PageSize, flagNamePageSize, 0, "number of appchains fetched per request, zero fetches the whole list at once")
}

/*
initConfigFileLocation resolves the home directory and the config file, in
order of precedence: command line flag, environment, default.
*/
func (r *baseConfiguration) initConfigFileLocation() {
	r.HomeDir = firstNonEmpty(r.HomeDir, os.Getenv(envKey(keyHome)), octopusHomeDir())
	r.CfgFile = firstNonEmpty(r.CfgFile, os.Getenv(envKey(keyConfig)), defaultConfigFile)
	if !filepath.IsAbs(r.CfgFile) {
		r.CfgFile = filepath.Join(r.HomeDir, r.CfgFile)
	}
}

// LoggerCfgFilename returns the logger config file, relative paths are resolved from the home directory.
func (r *baseConfiguration) LoggerCfgFilename() string {
	if filepath.IsAbs(r.LogCfgFile) {
		return r.LogCfgFile
	}
	return filepath.Join(r.HomeDir, r.LogCfgFile)
}

func (r *baseConfiguration) configFileExists() bool {
	_, err := os.Stat(r.CfgFile)
	return err == nil
}

func (r *baseConfiguration) sessionDBPath() string {
	return filepath.Join(r.HomeDir, sessionDBFile)
}

func (r *baseConfiguration) bondMode() (types.BondMode, error) {
	return types.ParseBondMode(r.BondMode)
}

/*
readLoggerConfig decodes the logger config file. Missing file is an error
only when it's not the default one.
*/
func (r *baseConfiguration) readLoggerConfig() (*logger.LogConfiguration, error) {
	cfg := &logger.LogConfiguration{}
	filename := filepath.Clean(r.LoggerCfgFilename())
	f, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && filename == filepath.Join(r.HomeDir, defaultLoggerConfigFile) {
			return cfg, nil
		}
		return nil, fmt.Errorf("opening logger configuration file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding logger configuration (%s): %w", filename, err)
	}
	return cfg, nil
}

// initLogger builds the logger from the logger config file and the log flags of "cmd".
func (r *baseConfiguration) initLogger(cmd *cobra.Command) error {
	cfg, err := r.readLoggerConfig()
	if err != nil {
		return err
	}

	// flags override values loaded from cfg file, hence these flags have no defaults
	for name, field := range map[string]*string{
		flagNameLogLevel:      &cfg.Level,
		flagNameLogFormat:     &cfg.Format,
		flagNameLogOutputFile: &cfg.OutputPath,
	} {
		if !cmd.Flags().Changed(name) {
			continue
		}
		v, err := cmd.Flags().GetString(name)
		if err != nil {
			return fmt.Errorf("reading flag %q: %w", name, err)
		}
		*field = v
	}

	if r.log, err = r.loggerBuilder(cfg); err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envKey(key string) string {
	return strings.ToUpper(envPrefix + "_" + key)
}

func octopusHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		panic("default user home dir not defined: " + err.Error())
	}
	return filepath.Join(dir, defaultOctopusDir)
}
