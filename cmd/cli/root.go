// Package cli provides the command-line interface for netprobe.
// It implements the Cobra-based command tree for one-off discovery,
// scheduled discovery, prober information and stored run history.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/logging"
)

const (
	defaultConfigFile = "netprobe.yaml"
	envPrefix         = "NETPROBE"
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netprobe",
	Short: "Multi-phase network discovery",
	Long: `Netprobe discovers the devices on an IPv4 network by combining the
ARP neighbor table, an nmap port and service scan and SNMP polling, and
reports one consolidated record per device.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./netprobe.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig locates the config file and enables NETPROBE_* environment
// overrides.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("netprobe")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	initLogging()
}

// getConfigFilePath returns the config file in use.
func getConfigFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return defaultConfigFile
}

// loadConfig loads the config file and applies environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides maps the NETPROBE_* variables that make sense for
// unattended runs onto the loaded configuration.
func applyEnvOverrides(cfg *config.Config) {
	if v := viper.GetString("network"); v != "" {
		cfg.Discovery.Network = v
	}
	if v := viper.GetStringSlice("exclusions"); len(v) > 0 {
		cfg.Discovery.Exclusions = v
	}
	if v := viper.GetStringSlice("snmp_communities"); len(v) > 0 {
		cfg.SNMP.Communities = v
	}
	if v := viper.GetString("db_host"); v != "" {
		cfg.Database.Host = v
	}
	if v := viper.GetString("db_password"); v != "" {
		cfg.Database.Password = v
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.Logging.Level = logging.LogLevel(v)
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	logConfig := logging.DefaultConfig()
	if cfg, err := config.Load(getConfigFilePath()); err == nil {
		logConfig = cfg.Logging
	}
	if verbose {
		logConfig.Level = logging.LevelDebug
	}
	if v := viper.GetString("log_level"); v != "" && !verbose {
		logConfig.Level = logging.LogLevel(v)
	}
	logConfig.AddSource = logConfig.Level == logging.LevelDebug

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}
