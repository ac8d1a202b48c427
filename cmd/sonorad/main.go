package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/sonora/internal/logging"
)

var (
	// Version is set at build time via -ldflags.
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:     "sonorad",
		Short:   "Self-hosted music library server",
		Version: Version,
		Long: `sonorad scans a music library into a catalog, enriches artists and
albums against external metadata providers, keeps the library
organized on disk, and serves the result over HTTP with byte-range and
transcoded streaming.`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose (debug) logging")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err == nil {
		logging.InfoLog("using config file: %s", viper.ConfigFileUsed())
	}

	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		logging.SetLevel("debug")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
