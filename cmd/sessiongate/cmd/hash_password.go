package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/account"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Generate an Argon2id hash for a user password",
	Long: `Generate an Argon2id hash of a password for use in config.

The output is a PHC string ("$argon2id$v=19$...") which can be directly
used in the auth.users.password_hash field.

Example:
  sessiongate hash-password "correct horse battery staple"

Security note: The password will appear in shell history.
Consider clearing history after use or using environment variable:
  sessiongate hash-password "$MY_PASSWORD"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := account.HashPassword(args[0])
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
