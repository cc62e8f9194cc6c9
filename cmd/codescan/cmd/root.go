// Package cmd implements the codescan command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ayusman/codescan/internal/config"
	"github.com/ayusman/codescan/internal/log"
)

var (
	version = "dev"

	// cfgFile is the --config flag.
	cfgFile string
	// globalConfig is loaded before every subcommand runs.
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "codescan",
	Short: "Camera barcode and QR code scanner",
	Long: `codescan drives a camera capture session that recognizes barcodes and
QR codes, records every scanned code and runs plugin actions bound to
symbologies.

Examples:
  codescan serve
  codescan serve --addr :9090 --camera front
  codescan tray
  codescan devices --json
  codescan config`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader().LoadWithFile(cfgFile)
		if err != nil {
			return err
		}
		globalConfig = cfg
		log.Init(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for tests.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is codescan.yaml in ., $HOME/.codescan, /etc/codescan)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("data-dir", config.DefaultDataDir(), "directory for the database and plugins")

	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("data_dir", flags.Lookup("data-dir"))

	rootCmd.AddCommand(serveCmd, trayCmd, devicesCmd, configCmd)
}
