package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stowage",
	Short: "Inspect and exercise stowage dependency containers",
	Long: `Stowage resolves components of a dependency container on demand from
ordered component directories, staged providers, manual registration files
and imported containers, and freezes the container once finalized.

Quick Start:
  stowage list                    List every key after finalization
  stowage resolve KEY             Resolve a single key lazily
  stowage finalize                Report keys per source
  stowage watch                   Map file changes onto identifiers
  stowage validate                Check the configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .stowage.yml, can also use STOWAGE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. STOWAGE_CONFIG_FILE environment variable
//  3. .stowage.yml in the current directory
//
// Every key can also be overridden with a STOWAGE_ variable, for example
// STOWAGE_NAME or STOWAGE_LOG_LEVEL.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("STOWAGE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stowage")
	}

	viper.SetEnvPrefix("STOWAGE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or malformed file falls back to defaults.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
