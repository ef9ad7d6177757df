// Package cmd provides the CLI commands for sessiongate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/sessiongate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sessiongate",
	Short: "sessiongate - session-guarded product API",
	Long: `sessiongate serves a small product catalog behind cookie sessions.

Every protected call checks that the caller is logged in and that the login
is younger than the configured timeout. Expired sessions are invalidated and
answered with a localized 401.

Quick start:
  1. Hash a password: sessiongate hash-password 's3cret'
  2. Add it under auth.users in sessiongate.yaml
  3. Run: sessiongate start

Configuration:
  Config is loaded from sessiongate.yaml in the current directory,
  $HOME/.sessiongate/, or /etc/sessiongate/.

  Environment variables can override config values with the SESSIONGATE_ prefix.
  Example: SESSIONGATE_SESSION_TIMEOUT_MS=60000

Commands:
  start          Start the API server
  hash-password  Generate an Argon2id hash for a user password
  version        Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sessiongate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
